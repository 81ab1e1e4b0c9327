// Package bot implements the ordering dialogue: a per-user state machine that
// turns one normalized inbound Event into the replies to send, plus the
// dispatcher that feeds it one event per user at a time.
package bot

import (
	"github.com/tbourn/go-delivery-bot/internal/callback"
	"github.com/tbourn/go-delivery-bot/internal/keyboard"
	"github.com/tbourn/go-delivery-bot/internal/session"
)

// ParseMarkdown is the only parse mode the bot emits.
const ParseMarkdown = "Markdown"

// Contact is a phone contact shared through the contact-request button.
type Contact struct {
	PhoneNumber string
	UserID      int64
}

// Event is an inbound update, built once by the transport.
type Event struct {
	UserID    int64
	ChatID    int64
	MessageID int

	Username  string
	FirstName string
	LastName  string

	Text        string
	Command     string // without the leading slash
	CommandArgs string

	Location *session.Location
	Contact  *Contact

	// Callback is the decoded inline-button payload; CallbackID is the id
	// the transport must acknowledge.
	Callback   *callback.Data
	CallbackID string
}

// Kind classifies the event for metrics and logs.
func (e Event) Kind() string {
	switch {
	case e.Callback != nil:
		return "callback"
	case e.Command != "":
		return "command"
	case e.Location != nil:
		return "location"
	case e.Contact != nil:
		return "contact"
	default:
		return "message"
	}
}

// Document is a file attachment.
type Document struct {
	Name string
	Data []byte
}

// Reply is one outbound action. Exactly one of the following applies, checked
// in this order: DeleteMessageID deletes a message, EditMessageID replaces
// the inline keyboard of a message, Document sends a file, PhotoURL sends a
// photo with Text as caption, otherwise Text is sent as a message.
type Reply struct {
	ChatID    int64
	Text      string
	ParseMode string

	Keyboard       *keyboard.Keyboard
	Inline         *keyboard.Inline
	RemoveKeyboard bool

	PhotoURL        string
	Document        *Document
	EditMessageID   int
	DeleteMessageID int

	// Bulk marks broadcast replies, which are sent without the per-event
	// deadline.
	Bulk bool
}
