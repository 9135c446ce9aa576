package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/bark-labs/offerbot/internal/chat"
	"github.com/bark-labs/offerbot/internal/config"
	"github.com/bark-labs/offerbot/internal/model"
)

// BroadcastPrompt is the bot message an admin replies to with the broadcast text.
const BroadcastPrompt = "Reply to this message to send a broadcast"

// Workflow serves the coupon screens.
type Workflow interface {
	Start(ctx context.Context, ev chat.Event) error
	HandleCallback(ctx context.Context, ev chat.Event) error
}

// Users records chat users on first contact.
type Users interface {
	Ensure(ctx context.Context, id int64, firstName, username string) (bool, error)
}

// Broadcaster fans a message out to every known user.
type Broadcaster interface {
	Broadcast(ctx context.Context, senderID int64, body string) (*model.BroadcastReport, error)
}

// Maintenance reads and flips the maintenance switch.
type Maintenance interface {
	Status(ctx context.Context) (model.Maintenance, error)
	Set(ctx context.Context, enabled bool) (model.Maintenance, error)
}

// Renderer looks up message templates by name.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// Promocodes hands out random promocodes.
type Promocodes interface {
	Code() string
}

// Options wires a Dispatcher.
type Options struct {
	Config      *config.Config
	BotID       int64
	Messenger   chat.Messenger
	Templates   Renderer
	Workflow    Workflow
	Users       Users
	Broadcaster Broadcaster
	Maintenance Maintenance
	Promocodes  Promocodes
}

// Dispatcher routes chat events to their handlers after the common guard.
type Dispatcher struct {
	opts Options
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	return &Dispatcher{opts: opts}
}

type access int

const (
	anyone access = iota
	adminsOnly
)

// Dispatch handles one event. It is safe to call from many goroutines.
func (d *Dispatcher) Dispatch(ctx context.Context, ev chat.Event) error {
	switch ev.Kind {
	case chat.EventCallback:
		log.Printf("[%d] %s => %s", ev.ChatID, ev.FirstName, ev.Token)
	default:
		log.Printf("[%d] %s: %s", ev.UserID, ev.FirstName, rawText(ev))
	}

	if ev.IsBot {
		return nil
	}
	if _, err := d.opts.Users.Ensure(ctx, ev.UserID, ev.FirstName, ev.Username); err != nil {
		log.Printf("register user %d: %v", ev.UserID, err)
	}

	switch ev.Kind {
	case chat.EventCallback:
		if !d.allowed(ctx, ev, anyone) {
			return nil
		}
		return d.opts.Workflow.HandleCallback(ctx, ev)
	case chat.EventCommand:
		return d.command(ctx, ev)
	case chat.EventText:
		if ev.ReplyTo != nil {
			return d.broadcastReply(ctx, ev)
		}
	}
	return nil
}

func (d *Dispatcher) command(ctx context.Context, ev chat.Event) error {
	switch ev.Command {
	case "start":
		if !d.allowed(ctx, ev, anyone) {
			return nil
		}
		return d.opts.Workflow.Start(ctx, ev)
	case "promo":
		if !d.allowed(ctx, ev, anyone) {
			return nil
		}
		return d.promo(ctx, ev)
	case "broadcast":
		if !d.allowed(ctx, ev, adminsOnly) {
			return nil
		}
		return d.reply(ctx, ev, BroadcastPrompt)
	case "send":
		if !d.allowed(ctx, ev, adminsOnly) {
			return nil
		}
		return d.send(ctx, ev)
	case "maintenance":
		if !d.allowed(ctx, ev, adminsOnly) {
			return nil
		}
		return d.maintenance(ctx, ev)
	}
	return nil
}

// allowed applies the maintenance gate and the admin restriction. Blocked
// non-admins get the maintenance notice; non-admins calling admin commands
// get nothing.
func (d *Dispatcher) allowed(ctx context.Context, ev chat.Event, level access) bool {
	admin := d.opts.Config.IsAdmin(ev.UserID)
	if !admin {
		m, err := d.opts.Maintenance.Status(ctx)
		if err != nil {
			log.Printf("read maintenance state: %v", err)
		} else if m.Enabled {
			d.replyMaintenance(ctx, ev, m)
			return false
		}
	}
	return level == anyone || admin
}

func (d *Dispatcher) replyMaintenance(ctx context.Context, ev chat.Event, m model.Maintenance) {
	body, err := d.opts.Templates.Render(config.TemplateMaintenance, struct{ Since string }{
		Since: m.Since.Local().Format("2006-01-02 15:04"),
	})
	if err != nil {
		log.Printf("render maintenance notice: %v", err)
		return
	}
	if err := d.reply(ctx, ev, body); err != nil {
		log.Printf("send maintenance notice to %d: %v", ev.ChatID, err)
	}
}

func (d *Dispatcher) promo(ctx context.Context, ev chat.Event) error {
	body, err := d.opts.Templates.Render(config.TemplatePromo, struct{ Code string }{Code: d.opts.Promocodes.Code()})
	if err != nil {
		return err
	}
	_, err = d.opts.Messenger.Send(ctx, chat.Message{ChatID: ev.ChatID, Text: body, Markdown: true})
	return err
}

func (d *Dispatcher) broadcastReply(ctx context.Context, ev chat.Event) error {
	if ev.ReplyTo.FromID != d.opts.BotID || ev.ReplyTo.Text != BroadcastPrompt {
		return nil
	}
	if !d.allowed(ctx, ev, adminsOnly) {
		return nil
	}
	body, err := d.opts.Templates.Render(config.TemplateBroadcast, struct {
		Message string
		Name    string
		ID      int64
	}{Message: ev.Text, Name: chat.EscapeMarkdown(ev.Username), ID: ev.UserID})
	if err != nil {
		return err
	}
	report, err := d.opts.Broadcaster.Broadcast(ctx, ev.UserID, body)
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	return d.reply(ctx, ev, fmt.Sprintf("The message was sent to %d users.", report.Delivered))
}

func (d *Dispatcher) send(ctx context.Context, ev chat.Event) error {
	args := strings.SplitN(strings.TrimSpace(ev.Text), " ", 2)
	switch {
	case args[0] == "":
		return d.reply(ctx, ev, "Usage: /send [id] [message]")
	case len(args) == 1 || strings.TrimSpace(args[1]) == "":
		return d.reply(ctx, ev, "You need to enter a message.")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return d.reply(ctx, ev, "You need to enter a chat id.")
	}
	if _, err := d.opts.Messenger.Send(ctx, chat.Message{ChatID: id, Text: args[1]}); err != nil {
		log.Printf("send to %d: %v", id, err)
		return d.reply(ctx, ev, "There was an error sending the message.")
	}
	return d.reply(ctx, ev, "The message has been sent to the user")
}

func (d *Dispatcher) maintenance(ctx context.Context, ev chat.Event) error {
	var enabled bool
	switch strings.ToLower(strings.TrimSpace(ev.Text)) {
	case "on":
		enabled = true
	case "off":
	case "":
		m, err := d.opts.Maintenance.Status(ctx)
		if err != nil {
			return err
		}
		return d.reply(ctx, ev, describeMaintenance(m))
	default:
		return d.reply(ctx, ev, "Usage: /maintenance on|off")
	}
	m, err := d.opts.Maintenance.Set(ctx, enabled)
	if err != nil {
		return fmt.Errorf("set maintenance: %w", err)
	}
	log.Printf("maintenance set to %t by %d", m.Enabled, ev.UserID)
	return d.reply(ctx, ev, describeMaintenance(m))
}

func (d *Dispatcher) reply(ctx context.Context, ev chat.Event, text string) error {
	_, err := d.opts.Messenger.Send(ctx, chat.Message{ChatID: ev.ChatID, Text: text})
	return err
}

func describeMaintenance(m model.Maintenance) string {
	if !m.Enabled {
		return "Maintenance is off."
	}
	return "Maintenance is on since " + m.Since.Local().Format(time.DateTime) + "."
}

func rawText(ev chat.Event) string {
	if ev.Kind == chat.EventCommand {
		return strings.TrimSpace("/" + ev.Command + " " + ev.Text)
	}
	return ev.Text
}
