// Package workflow drives the coupon screens: home, offer list, offer
// preview and redemption. No per-user state is kept; every transition is
// computed from the callback token, and the calling message is edited or
// removed so that only one screen is active in the chat.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bark-labs/offerbot/internal/catalog"
	"github.com/bark-labs/offerbot/internal/chat"
	"github.com/bark-labs/offerbot/internal/config"
	"github.com/bark-labs/offerbot/internal/imagery"
	"github.com/bark-labs/offerbot/internal/loyalty"
	"github.com/bark-labs/offerbot/internal/model"
)

const defaultRedeemTimeout = 45 * time.Second

// Redeemer exchanges an offer id for a one-time code.
type Redeemer interface {
	Redeem(ctx context.Context, offerID int64) (*model.Redemption, error)
}

// Composer renders the redemption image.
type Composer interface {
	Compose(ctx context.Context, code string, offer *model.Offer) ([]byte, error)
}

// Renderer looks up message templates by name.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// Options wires a Workflow.
type Options struct {
	Catalog       *catalog.Catalog
	Redeemer      Redeemer
	Composer      Composer
	Templates     Renderer
	Messenger     chat.Messenger
	HeaderImage   string
	RedeemTimeout time.Duration
	Now           func() time.Time
}

// Workflow is safe for concurrent use; it holds no per-chat state.
type Workflow struct {
	catalog       *catalog.Catalog
	redeemer      Redeemer
	composer      Composer
	templates     Renderer
	messenger     chat.Messenger
	headerImage   string
	redeemTimeout time.Duration
	now           func() time.Time
}

// New builds a Workflow.
func New(opts Options) *Workflow {
	w := &Workflow{
		catalog:       opts.Catalog,
		redeemer:      opts.Redeemer,
		composer:      opts.Composer,
		templates:     opts.Templates,
		messenger:     opts.Messenger,
		headerImage:   opts.HeaderImage,
		redeemTimeout: opts.RedeemTimeout,
		now:           opts.Now,
	}
	if w.redeemTimeout <= 0 {
		w.redeemTimeout = defaultRedeemTimeout
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Start renders the home screen for a /start command.
func (w *Workflow) Start(ctx context.Context, ev chat.Event) error {
	return w.sendHome(ctx, ev)
}

// HandleCallback performs the transition named by ev.Token. Tokens that do
// not parse, or that point at unknown offers, are logged and ignored.
func (w *Workflow) HandleCallback(ctx context.Context, ev chat.Event) error {
	tok, err := ParseToken(ev.Token)
	if err != nil {
		log.Printf("callback from %d ignored: %v", ev.UserID, err)
		return nil
	}

	switch tok.Screen {
	case ScreenHome:
		return w.home(ctx, ev, tok.Replace)
	case ScreenList:
		return w.list(ctx, ev)
	case ScreenFAQ:
		return w.faq(ctx, ev)
	case ScreenPreview, ScreenRedeem:
		offer, err := w.catalog.Get(tok.OfferID)
		if err != nil {
			log.Printf("callback from %d ignored: offer %d: %v", ev.UserID, tok.OfferID, err)
			return nil
		}
		if tok.Screen == ScreenPreview {
			return w.preview(ctx, ev, offer)
		}
		return w.redeem(ctx, ev, offer)
	}
	log.Printf("callback from %d ignored: unhandled screen %d", ev.UserID, tok.Screen)
	return nil
}

func (w *Workflow) home(ctx context.Context, ev chat.Event, replace bool) error {
	if err := w.sendHome(ctx, ev); err != nil {
		return err
	}
	if replace {
		return w.messenger.Delete(ctx, ev.ChatID, ev.MessageID)
	}
	return w.messenger.ClearKeyboard(ctx, ev.ChatID, ev.MessageID)
}

func (w *Workflow) sendHome(ctx context.Context, ev chat.Event) error {
	body, err := w.templates.Render(config.TemplateHome, homeView{
		Name:    chat.EscapeMarkdown(ev.FirstName),
		ID:      ev.UserID,
		Coupons: w.catalog.Len(),
	})
	if err != nil {
		return err
	}
	msg := chat.Message{
		ChatID:   ev.ChatID,
		Text:     body,
		Markdown: true,
		Keyboard: chat.Keyboard{
			chat.Row(chat.Button{Text: "🍔  Offers", Data: ListToken().String()}),
			chat.Row(chat.Button{Text: "❓  FAQ", Data: FAQToken().String()}),
		},
	}
	if w.headerImage != "" {
		msg.Photo = &chat.Photo{Path: w.headerImage}
	}
	_, err = w.messenger.Send(ctx, msg)
	return err
}

func (w *Workflow) list(ctx context.Context, ev chat.Event) error {
	if err := w.messenger.Delete(ctx, ev.ChatID, ev.MessageID); err != nil {
		log.Printf("delete message %d in %d: %v", ev.MessageID, ev.ChatID, err)
	}
	body, err := w.templates.Render(config.TemplateList, listView{Count: w.catalog.Len()})
	if err != nil {
		return err
	}
	kb := make(chat.Keyboard, 0, w.catalog.Len()+1)
	for _, o := range w.catalog.List() {
		title := o.DisplayTitle()
		if o.Special {
			title = "⭐ " + title
		}
		kb = append(kb, chat.Row(chat.Button{Text: title, Data: PreviewToken(o.ID).String()}))
	}
	kb = append(kb, backHomeRow())
	_, err = w.messenger.Send(ctx, chat.Message{ChatID: ev.ChatID, Text: body, Keyboard: kb})
	return err
}

func (w *Workflow) preview(ctx context.Context, ev chat.Event, offer *model.Offer) error {
	body, err := w.templates.Render(config.TemplatePreview, previewView{
		Title:       chat.EscapeMarkdown(offer.DisplayTitle()),
		Description: chat.EscapeMarkdown(offer.Description),
		Special:     offer.Special,
		Schedule:    schedule(offer),
		Available:   offer.AvailableAt(w.now()),
	})
	if err != nil {
		return err
	}
	kb := chat.Keyboard{
		chat.Row(chat.Button{Text: "🎟  Redeem", Data: RedeemToken(offer.ID).String()}),
		chat.Row(chat.Button{Text: "⬅️  Back", Data: ListToken().String()}),
		backHomeRow(),
	}
	return w.messenger.EditText(ctx, ev.ChatID, ev.MessageID, body, kb)
}

func (w *Workflow) redeem(ctx context.Context, ev chat.Event, offer *model.Offer) error {
	if err := w.messenger.EditText(ctx, ev.ChatID, ev.MessageID, "Generating your offer...", nil); err != nil {
		log.Printf("edit message %d in %d: %v", ev.MessageID, ev.ChatID, err)
	}

	rctx, cancel := context.WithTimeout(ctx, w.redeemTimeout)
	defer cancel()

	redemption, err := w.redeemer.Redeem(rctx, offer.ID)
	var photo []byte
	if err == nil {
		photo, err = w.composer.Compose(rctx, redemption.Code, offer)
	}
	if err != nil {
		return w.failed(ctx, ev, offer, err)
	}

	caption, err := w.templates.Render(config.TemplateCoupon, couponView{
		Title:       chat.EscapeMarkdown(redemption.Title),
		Description: chat.EscapeMarkdown(redemption.Description),
		Code:        redemption.Code,
		ID:          redemption.OfferID,
	})
	if err != nil {
		return err
	}
	msg := chat.Message{
		ChatID:   ev.ChatID,
		Text:     caption,
		Markdown: true,
		Photo:    &chat.Photo{Name: fmt.Sprintf("offer-%d.png", offer.ID), Bytes: photo},
		Keyboard: chat.Keyboard{chat.Row(chat.Button{Text: "🔙  Menu", Data: HomeToken(false).String()})},
	}
	if _, err := w.messenger.Send(ctx, msg); err != nil {
		if errors.Is(err, chat.ErrRecipientUnreachable) {
			return err
		}
		// the code is already spent; retry as plain text
		log.Printf("send coupon for offer %d to %d: %v", offer.ID, ev.UserID, err)
		msg.Markdown = false
		if _, err := w.messenger.Send(ctx, msg); err != nil {
			return w.failed(ctx, ev, offer, err)
		}
	}
	return w.messenger.Delete(ctx, ev.ChatID, ev.MessageID)
}

// failed reports a redemption that did not produce a coupon and returns
// the chat to the home screen.
func (w *Workflow) failed(ctx context.Context, ev chat.Event, offer *model.Offer, cause error) error {
	switch {
	case loyalty.IsTransport(cause):
		log.Printf("redeem offer %d for %d: transport error: %v", offer.ID, ev.UserID, cause)
	case errors.Is(cause, loyalty.ErrRedemptionFailed):
		log.Printf("redeem offer %d for %d: rejected: %v", offer.ID, ev.UserID, cause)
	case errors.Is(cause, imagery.ErrAssetUnavailable):
		log.Printf("redeem offer %d for %d: image unavailable: %v", offer.ID, ev.UserID, cause)
	default:
		log.Printf("redeem offer %d for %d: %v", offer.ID, ev.UserID, cause)
	}

	if err := w.messenger.Delete(ctx, ev.ChatID, ev.MessageID); err != nil {
		log.Printf("delete message %d in %d: %v", ev.MessageID, ev.ChatID, err)
	}
	body, err := w.templates.Render(config.TemplateFailed, failedView{Title: offer.DisplayTitle()})
	if err != nil {
		return err
	}
	if _, err := w.messenger.Send(ctx, chat.Message{ChatID: ev.ChatID, Text: body}); err != nil {
		return err
	}
	return w.sendHome(ctx, ev)
}

func (w *Workflow) faq(ctx context.Context, ev chat.Event) error {
	body, err := w.templates.Render(config.TemplateFAQ, nil)
	if err != nil {
		return err
	}
	if _, err := w.messenger.Send(ctx, chat.Message{
		ChatID:   ev.ChatID,
		Text:     body,
		Markdown: true,
		Keyboard: chat.Keyboard{backHomeRow()},
	}); err != nil {
		return err
	}
	return w.messenger.Delete(ctx, ev.ChatID, ev.MessageID)
}

func backHomeRow() []chat.Button {
	return chat.Row(chat.Button{Text: "🔙  Menu", Data: HomeToken(true).String()})
}
