package domain

// ObservationSource tells where an observation came from.
type ObservationSource string

const (
	SourceWebhook ObservationSource = "webhook"
	SourcePoll    ObservationSource = "poll"
)

// Observation is a normalized data point about a ticket. Empty fields were
// not asserted by the source.
type Observation struct {
	TicketID string
	Status   string
	Assignee string
	Note     string
	Author   string
	ActionID string
	Source   ObservationSource
	// WebhookSeq is the ticket's TicketState.WebhookSeq when a poll started
	// its fetch. Unused for webhook observations.
	WebhookSeq uint64
}
