// Package telegram connects the bot logic to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bark-labs/offerbot/internal/chat"
)

// API is the subset of *tgbotapi.BotAPI the adapter calls.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ chat.Messenger = (*Messenger)(nil)

// Messenger implements chat.Messenger on top of the Bot API.
type Messenger struct {
	api API
}

// NewMessenger wraps api.
func NewMessenger(api API) *Messenger {
	return &Messenger{api: api}
}

// Send posts a text or photo message and returns its id.
func (m *Messenger) Send(ctx context.Context, msg chat.Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var c tgbotapi.Chattable
	if msg.Photo != nil {
		photo := tgbotapi.NewPhoto(msg.ChatID, photoFile(msg.Photo))
		photo.Caption = msg.Text
		if msg.Markdown {
			photo.ParseMode = tgbotapi.ModeMarkdown
		}
		if len(msg.Keyboard) > 0 {
			photo.ReplyMarkup = markup(msg.Keyboard)
		}
		c = photo
	} else {
		text := tgbotapi.NewMessage(msg.ChatID, msg.Text)
		if msg.Markdown {
			text.ParseMode = tgbotapi.ModeMarkdown
		}
		if len(msg.Keyboard) > 0 {
			text.ReplyMarkup = markup(msg.Keyboard)
		}
		c = text
	}
	sent, err := m.api.Send(c)
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

// EditText replaces the text and keyboard of a message.
func (m *Messenger) EditText(ctx context.Context, chatID int64, messageID int, text string, kb chat.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var edit tgbotapi.EditMessageTextConfig
	if len(kb) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup(kb))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	edit.ParseMode = tgbotapi.ModeMarkdown
	_, err := m.api.Request(edit)
	return classify(err)
}

// ClearKeyboard strips the inline keyboard from a message.
func (m *Messenger) ClearKeyboard(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	_, err := m.api.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, empty))
	return classify(err)
}

// Delete removes a message.
func (m *Messenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return classify(err)
}

// AnswerCallback acknowledges a callback query so the client stops its spinner.
func (m *Messenger) AnswerCallback(id string) error {
	_, err := m.api.Request(tgbotapi.NewCallback(id, ""))
	return classify(err)
}

func photoFile(p *chat.Photo) tgbotapi.RequestFileData {
	if len(p.Bytes) > 0 {
		name := p.Name
		if name == "" {
			name = "photo.png"
		}
		return tgbotapi.FileBytes{Name: name, Bytes: p.Bytes}
	}
	return tgbotapi.FilePath(p.Path)
}

func markup(kb chat.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// recipientGone lists the 400 descriptions that mean the chat itself is
// invalid. Other 400s, such as Markdown parse errors, are about the message.
var recipientGone = []string{"chat not found", "user is deactivated", "peer_id_invalid"}

// classify maps "bot was blocked" and "chat not found" style API errors to
// chat.ErrRecipientUnreachable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", chat.ErrRecipientUnreachable, apiErr.Message)
	case http.StatusBadRequest:
		desc := strings.ToLower(apiErr.Message)
		for _, gone := range recipientGone {
			if strings.Contains(desc, gone) {
				return fmt.Errorf("%w: %s", chat.ErrRecipientUnreachable, apiErr.Message)
			}
		}
	}
	return err
}
