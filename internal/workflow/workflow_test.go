package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bark-labs/offerbot/internal/catalog"
	"github.com/bark-labs/offerbot/internal/chat"
	"github.com/bark-labs/offerbot/internal/config"
	"github.com/bark-labs/offerbot/internal/imagery"
	"github.com/bark-labs/offerbot/internal/loyalty"
	"github.com/bark-labs/offerbot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op        string
	chatID    int64
	messageID int
	msg       chat.Message
	text      string
	kb        chat.Keyboard
}

type fakeMessenger struct {
	mu    sync.Mutex
	calls []call
	// sendErr, when set, decides the result of each Send.
	sendErr func(chat.Message) error
}

func (f *fakeMessenger) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeMessenger) Send(_ context.Context, msg chat.Message) (int, error) {
	f.record(call{op: "send", chatID: msg.ChatID, msg: msg})
	if f.sendErr != nil {
		if err := f.sendErr(msg); err != nil {
			return 0, err
		}
	}
	return 100, nil
}

func (f *fakeMessenger) EditText(_ context.Context, chatID int64, messageID int, text string, kb chat.Keyboard) error {
	f.record(call{op: "edit", chatID: chatID, messageID: messageID, text: text, kb: kb})
	return nil
}

func (f *fakeMessenger) ClearKeyboard(_ context.Context, chatID int64, messageID int) error {
	f.record(call{op: "clear", chatID: chatID, messageID: messageID})
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, chatID int64, messageID int) error {
	f.record(call{op: "delete", chatID: chatID, messageID: messageID})
	return nil
}

func (f *fakeMessenger) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

type fakeRedeemer struct {
	result *model.Redemption
	err    error
	block  chan struct{}
}

func (f *fakeRedeemer) Redeem(ctx context.Context, _ int64) (*model.Redemption, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

type fakeComposer struct {
	err  error
	code string
}

func (f *fakeComposer) Compose(_ context.Context, code string, _ *model.Offer) ([]byte, error) {
	f.code = code
	return []byte("png"), f.err
}

func writeTemplates(t *testing.T) *config.Templates {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		config.TemplateHome:    "Hi {{.Name}} ({{.ID}}), {{.Coupons}} coupons",
		config.TemplateList:    "Pick one of {{.Count}}",
		config.TemplatePreview: "{{.Title}}: {{.Description}}{{if .Special}} [{{.Schedule}}]{{end}}",
		config.TemplateCoupon:  "{{.Title}} {{.Code}} #{{.ID}}",
		config.TemplateFailed:  "Could not redeem {{.Title}}, retry later",
		config.TemplateFAQ:     "FAQ",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return config.NewTemplates(dir)
}

func newWorkflow(t *testing.T, r Redeemer, c Composer) (*Workflow, *fakeMessenger) {
	t.Helper()
	cat, err := catalog.New([]*model.Offer{
		{ID: 11, Title: "Big Burger", CustomTitle: "🍔 2x1", Description: "Two for one", PromoImagePath: "a.png"},
		{ID: 22, Title: "Coffee", Description: "Free coffee", Special: true, DaysOfWeek: []int{0, 4}},
	})
	require.NoError(t, err)
	m := &fakeMessenger{}
	w := New(Options{
		Catalog:       cat,
		Redeemer:      r,
		Composer:      c,
		Templates:     writeTemplates(t),
		Messenger:     m,
		HeaderImage:   "header.png",
		RedeemTimeout: time.Second,
	})
	return w, m
}

func callback(token string) chat.Event {
	return chat.Event{Kind: chat.EventCallback, UserID: 5, ChatID: 5, MessageID: 77, FirstName: "Ada", Token: token}
}

func TestUnmatchedCallbackIsNoop(t *testing.T) {
	w, m := newWorkflow(t, &fakeRedeemer{}, &fakeComposer{})
	for _, tok := range []string{"", "coupon", "coupon_list", "coupon:nope", "coupon:redeem:abc", "coupon:preview", "other:list", "coupon:home:x", "coupon:redeem:999"} {
		require.NoError(t, w.HandleCallback(context.Background(), callback(tok)))
	}
	assert.Empty(t, m.ops())
}

func TestStartSendsHome(t *testing.T) {
	w, m := newWorkflow(t, &fakeRedeemer{}, &fakeComposer{})
	require.NoError(t, w.Start(context.Background(), chat.Event{Kind: chat.EventCommand, UserID: 5, ChatID: 5, FirstName: "Ada"}))

	require.Len(t, m.calls, 1)
	sent := m.calls[0].msg
	assert.Equal(t, "Hi Ada (5), 2 coupons", sent.Text)
	require.NotNil(t, sent.Photo)
	assert.Equal(t, "header.png", sent.Photo.Path)
	assert.Equal(t, ListToken().String(), sent.Keyboard[0][0].Data)
}

func TestHomeReplaceVersusClear(t *testing.T) {
	w, m := newWorkflow(t, &fakeRedeemer{}, &fakeComposer{})
	require.NoError(t, w.HandleCallback(context.Background(), callback(HomeToken(true).String())))
	assert.Equal(t, []string{"send", "delete"}, m.ops())

	w, m = newWorkflow(t, &fakeRedeemer{}, &fakeComposer{})
	require.NoError(t, w.HandleCallback(context.Background(), callback(HomeToken(false).String())))
	assert.Equal(t, []string{"send", "clear"}, m.ops())
}

func TestListShowsDisplayTitles(t *testing.T) {
	w, m := newWorkflow(t, &fakeRedeemer{}, &fakeComposer{})
	require.NoError(t, w.HandleCallback(context.Background(), callback(ListToken().String())))

	require.Equal(t, []string{"delete", "send"}, m.ops())
	kb := m.calls[1].msg.Keyboard
	require.Len(t, kb, 3)
	assert.Equal(t, "🍔 2x1", kb[0][0].Text)
	assert.Equal(t, PreviewToken(11).String(), kb[0][0].Data)
	assert.Equal(t, "⭐ Coffee", kb[1][0].Text)
	assert.Equal(t, HomeToken(true).String(), kb[2][0].Data)
}

func TestPreviewEditsCallingMessage(t *testing.T) {
	w, m := newWorkflow(t, &fakeRedeemer{}, &fakeComposer{})
	require.NoError(t, w.HandleCallback(context.Background(), callback(PreviewToken(22).String())))

	require.Len(t, m.calls, 1)
	c := m.calls[0]
	assert.Equal(t, "edit", c.op)
	assert.Equal(t, 77, c.messageID)
	assert.Equal(t, "Coffee: Free coffee [Mon, Fri]", c.text)
	require.Len(t, c.kb, 3)
	assert.Equal(t, RedeemToken(22).String(), c.kb[0][0].Data)
	assert.Equal(t, ListToken().String(), c.kb[1][0].Data)
}

func TestRedeemSuccess(t *testing.T) {
	r := &fakeRedeemer{result: &model.Redemption{Code: "ABCD-1234", Title: "Big Burger", Description: "Two for one", OfferID: "11"}}
	comp := &fakeComposer{}
	w, m := newWorkflow(t, r, comp)

	require.NoError(t, w.HandleCallback(context.Background(), callback(RedeemToken(11).String())))

	assert.Equal(t, []string{"edit", "send", "delete"}, m.ops())
	assert.Equal(t, "ABCD-1234", comp.code)
	sent := m.calls[1].msg
	require.NotNil(t, sent.Photo)
	assert.Equal(t, []byte("png"), sent.Photo.Bytes)
	assert.Equal(t, "Big Burger ABCD-1234 #11", sent.Text)
	assert.Equal(t, HomeToken(false).String(), sent.Keyboard[0][0].Data)
}

func TestRedeemFailuresReturnHome(t *testing.T) {
	cases := map[string]struct {
		redeemErr  error
		composeErr error
	}{
		"rejected":  {redeemErr: loyalty.ErrRedemptionFailed},
		"transport": {redeemErr: &loyalty.TransportError{Op: "redeem offer", Err: errors.New("refused")}},
		"asset":     {composeErr: imagery.ErrAssetUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := &fakeRedeemer{err: tc.redeemErr}
			if tc.redeemErr == nil {
				r.result = &model.Redemption{Code: "X", Title: "t", Description: "d", OfferID: "11"}
			}
			w, m := newWorkflow(t, r, &fakeComposer{err: tc.composeErr})

			require.NoError(t, w.HandleCallback(context.Background(), callback(RedeemToken(11).String())))

			assert.Equal(t, []string{"edit", "delete", "send", "send"}, m.ops())
			assert.Equal(t, "Could not redeem 🍔 2x1, retry later", m.calls[2].msg.Text)
			assert.Equal(t, "Hi Ada (5), 2 coupons", m.calls[3].msg.Text)
		})
	}
}

func TestRedeemResendsCouponWithoutMarkdown(t *testing.T) {
	r := &fakeRedeemer{result: &model.Redemption{Code: "ABCD-1234", Title: "Mc_Chicken", Description: "d", OfferID: "11"}}
	w, m := newWorkflow(t, r, &fakeComposer{})
	m.sendErr = func(msg chat.Message) error {
		if msg.Markdown {
			return errors.New("Bad Request: can't parse entities")
		}
		return nil
	}

	require.NoError(t, w.HandleCallback(context.Background(), callback(RedeemToken(11).String())))

	assert.Equal(t, []string{"edit", "send", "send", "delete"}, m.ops())
	plain := m.calls[2].msg
	assert.False(t, plain.Markdown)
	require.NotNil(t, plain.Photo)
	assert.Equal(t, "Mc\\_Chicken ABCD-1234 #11", plain.Text)
}

func TestRedeemCouponSendFailureReturnsHome(t *testing.T) {
	r := &fakeRedeemer{result: &model.Redemption{Code: "ABCD-1234", Title: "Big Burger", Description: "d", OfferID: "11"}}
	w, m := newWorkflow(t, r, &fakeComposer{})
	m.sendErr = func(msg chat.Message) error {
		if msg.Photo != nil && len(msg.Photo.Bytes) > 0 {
			return errors.New("request entity too large")
		}
		return nil
	}

	require.NoError(t, w.HandleCallback(context.Background(), callback(RedeemToken(11).String())))

	assert.Equal(t, []string{"edit", "send", "send", "delete", "send", "send"}, m.ops())
	assert.Equal(t, "Could not redeem 🍔 2x1, retry later", m.calls[4].msg.Text)
	assert.Equal(t, "Hi Ada (5), 2 coupons", m.calls[5].msg.Text)
}

func TestRedeemEscapesMarkdownFields(t *testing.T) {
	r := &fakeRedeemer{result: &model.Redemption{Code: "ABCD-1234", Title: "*Deal*", Description: "d", OfferID: "11"}}
	w, m := newWorkflow(t, r, &fakeComposer{})

	require.NoError(t, w.HandleCallback(context.Background(), callback(RedeemToken(11).String())))

	assert.Equal(t, []string{"edit", "send", "delete"}, m.ops())
	assert.Equal(t, "\\*Deal\\* ABCD-1234 #11", m.calls[1].msg.Text)
}

func TestSlowRedemptionDoesNotBlockOtherUsers(t *testing.T) {
	r := &fakeRedeemer{block: make(chan struct{}), result: &model.Redemption{Code: "C", Title: "t", Description: "d", OfferID: "11"}}
	w, m := newWorkflow(t, r, &fakeComposer{})

	done := make(chan error, 1)
	go func() { done <- w.HandleCallback(context.Background(), callback(RedeemToken(11).String())) }()

	other := callback(ListToken().String())
	other.UserID, other.ChatID = 6, 6
	require.NoError(t, w.HandleCallback(context.Background(), other))

	close(r.block)
	require.NoError(t, <-done)
	assert.Contains(t, m.ops(), "send")
}

func TestTokenRoundTrip(t *testing.T) {
	for _, tok := range []Token{HomeToken(false), HomeToken(true), ListToken(), FAQToken(), PreviewToken(42), RedeemToken(-3)} {
		got, err := ParseToken(tok.String())
		require.NoError(t, err)
		assert.Equal(t, tok, got)
		assert.LessOrEqual(t, len(tok.String()), 64)
	}
	_, err := ParseToken("coupon:list:extra")
	assert.ErrorIs(t, err, ErrUnmatchedCallback)
}
