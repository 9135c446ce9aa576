// Package chat holds the front-end neutral shapes exchanged between the
// messaging transport and the bot logic.
package chat

import (
	"context"
	"errors"
	"strings"
)

// ErrRecipientUnreachable is returned by a Messenger when the chat blocked
// the bot or no longer exists.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

// EventKind distinguishes commands from inline keyboard callbacks.
type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventCallback
	EventText
)

// Event is one inbound interaction.
type Event struct {
	Kind      EventKind
	UserID    int64
	ChatID    int64
	MessageID int
	FirstName string
	Username  string
	IsBot     bool
	// Command is set for EventCommand, without the leading slash.
	Command string
	// Text holds command arguments or the plain message text.
	Text string
	// Token is the raw callback data for EventCallback.
	Token string
	// ReplyTo is set when the message answers another one.
	ReplyTo *Reply
}

// Reply identifies the message an inbound text answers.
type Reply struct {
	MessageID int
	FromID    int64
	Text      string
}

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Keyboard is a list of button rows.
type Keyboard [][]Button

// Row builds a keyboard row.
func Row(buttons ...Button) []Button { return buttons }

// Photo is an image attachment, either in-memory or on disk.
type Photo struct {
	Name  string
	Bytes []byte
	Path  string
}

// Message is one outbound message. With Photo set Text is the caption.
type Message struct {
	ChatID   int64
	Text     string
	Photo    *Photo
	Keyboard Keyboard
	Markdown bool
}

// Messenger is the outbound side of the messaging front end.
type Messenger interface {
	Send(ctx context.Context, msg Message) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	ClearKeyboard(ctx context.Context, chatID int64, messageID int) error
	Delete(ctx context.Context, chatID int64, messageID int) error
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// EscapeMarkdown makes s safe to interpolate into a Markdown message.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
