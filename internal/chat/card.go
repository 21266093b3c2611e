package chat

// Form input ids of the ticket card. The description id is kept in Dutch
// because existing card templates and their submissions use it.
const (
	InputEmail       = "email"
	InputDescription = "omschrijving"
	InputSubject     = "onderwerp"
)

// TicketFormCard is the adaptive card asking for the data needed to raise a
// ticket.
func TicketFormCard() map[string]any {
	return map[string]any{
		"type":    "AdaptiveCard",
		"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
		"version": "1.3",
		"body": []map[string]any{
			{"type": "TextBlock", "text": "Create a ticket", "weight": "Bolder", "size": "Medium"},
			{"type": "Input.Text", "id": InputEmail, "label": "Your email address", "style": "Email", "isRequired": true},
			{"type": "Input.Text", "id": InputSubject, "label": "Subject"},
			{"type": "Input.Text", "id": InputDescription, "label": "Describe the problem", "isMultiline": true, "isRequired": true},
		},
		"actions": []map[string]any{
			{"type": "Action.Submit", "title": "Submit"},
		},
	}
}
