package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bark-labs/offerbot/internal/chat"
	"github.com/bark-labs/offerbot/internal/config"
)

// WebhookPath is the ingress route; the secret segment is appended.
const WebhookPath = "/telegram/webhook/"

// Connect logs in with the configured token.
func Connect(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	log.Printf("authorized on account %s", api.Self.UserName)
	return api, nil
}

// Bot receives updates and runs each one on its own goroutine so that a
// slow redemption never holds up other chats.
type Bot struct {
	api         *tgbotapi.BotAPI
	messenger   *Messenger
	dispatcher  *Dispatcher
	pollTimeout time.Duration

	wg sync.WaitGroup
}

// NewBot builds a Bot.
func NewBot(api *tgbotapi.BotAPI, messenger *Messenger, dispatcher *Dispatcher, pollTimeout time.Duration) *Bot {
	return &Bot{api: api, messenger: messenger, dispatcher: dispatcher, pollTimeout: pollTimeout}
}

// Poll long-polls getUpdates until ctx is cancelled.
func (b *Bot) Poll(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout / time.Second)
	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// RegisterWebhook points Telegram at baseURL + WebhookPath + secret.
func (b *Bot) RegisterWebhook(baseURL, secret string) error {
	wh, err := tgbotapi.NewWebhook(strings.TrimRight(baseURL, "/") + WebhookPath + secret)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// HandleUpdate dispatches one update asynchronously. Updates that carry no
// user interaction are dropped.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ev, ok := toEvent(update)
	if !ok {
		return
	}
	if update.CallbackQuery != nil {
		if err := b.messenger.AnswerCallback(update.CallbackQuery.ID); err != nil {
			log.Printf("answer callback %s: %v", update.CallbackQuery.ID, err)
		}
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.dispatcher.Dispatch(ctx, ev); err != nil {
			log.Printf("update %d from %d: %v", update.UpdateID, ev.UserID, err)
		}
	}()
}

// Wait blocks until every in-flight update has been handled.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func toEvent(update tgbotapi.Update) (chat.Event, bool) {
	if q := update.CallbackQuery; q != nil {
		if q.From == nil {
			return chat.Event{}, false
		}
		ev := chat.Event{
			Kind:      chat.EventCallback,
			UserID:    q.From.ID,
			ChatID:    q.From.ID,
			FirstName: q.From.FirstName,
			Username:  q.From.UserName,
			IsBot:     q.From.IsBot,
			Token:     q.Data,
		}
		if q.Message != nil {
			ev.MessageID = q.Message.MessageID
			if q.Message.Chat != nil {
				ev.ChatID = q.Message.Chat.ID
			}
		}
		return ev, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return chat.Event{}, false
	}
	ev := chat.Event{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		FirstName: msg.From.FirstName,
		Username:  msg.From.UserName,
		IsBot:     msg.From.IsBot,
	}
	if msg.IsCommand() {
		ev.Kind = chat.EventCommand
		ev.Command = strings.ToLower(msg.Command())
		ev.Text = msg.CommandArguments()
		return ev, true
	}
	ev.Kind = chat.EventText
	ev.Text = msg.Text
	if r := msg.ReplyToMessage; r != nil {
		ev.ReplyTo = &chat.Reply{MessageID: r.MessageID, Text: r.Text}
		if r.From != nil {
			ev.ReplyTo.FromID = r.From.ID
		}
	}
	return ev, true
}
