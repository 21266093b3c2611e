package domain

// ChatMessage is a message fetched from the chat platform.
type ChatMessage struct {
	ID          string
	RoomID      string
	PersonEmail string
	PersonName  string
	Text        string
}

// FormSubmission holds the inputs of a submitted card form.
type FormSubmission struct {
	ID          string
	RoomID      string
	PersonEmail string
	Inputs      map[string]string
}
