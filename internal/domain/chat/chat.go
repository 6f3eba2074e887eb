package chat

import "context"

// Kind classifies an inbound event from the chat channel.
type Kind string

const (
	KindText   Kind = "TEXT"
	KindPhoto  Kind = "PHOTO"
	KindButton Kind = "BUTTON"
)

// Event is a single inbound interaction from one user.
// For KindText the payload is the message text, for KindButton the
// callback data, for KindPhoto an opaque reference to the uploaded file.
type Event struct {
	UserID  int64
	Kind    Kind
	Payload string
}

// Button is one pressable option attached to an outbound message.
type Button struct {
	Label string
	Data  string
}

// Keyboard is rendered as rows of buttons under an outbound message.
type Keyboard [][]Button

// Gateway delivers outbound messages. The transport behind it (polling,
// webhooks, test doubles) is not the core's concern.
type Gateway interface {
	Send(ctx context.Context, userID int64, text string, keyboard Keyboard) error
}

// Row is a convenience for building single-row keyboards.
func Row(buttons ...Button) Keyboard {
	return Keyboard{buttons}
}
