package loyalty

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bark-labs/offerbot/internal/config"
	"github.com/bark-labs/offerbot/internal/identity"
	"github.com/bark-labs/offerbot/internal/model"
	"github.com/bark-labs/offerbot/internal/session"
	"github.com/google/uuid"
)

const maxBodyBytes = 8 << 20

// Sessions opens one HTTP session per redemption.
type Sessions interface {
	Open(ctx context.Context, proxy config.ProxyConfig) *session.Session
}

// Client runs the device registration + redemption protocol against the loyalty API.
type Client struct {
	registration config.Endpoint
	redeem       config.Endpoint
	image        config.ImageEndpoint
	proxy        config.ProxyConfig
	requireAuth  bool
	sessions     Sessions
	seed         func() (uint64, error)
}

// New creates a loyalty API client from cfg.
func New(cfg *config.Config, sessions Sessions) (*Client, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	lc := cfg.Loyalty
	for name, raw := range map[string]string{
		"device_registration": lc.DeviceRegistration.URL,
		"redeem_offer":        lc.RedeemOffer.URL,
		"promo_image":         lc.PromoImage.URL,
	} {
		if err := checkURL(raw); err != nil {
			return nil, fmt.Errorf("loyalty.%s.url: %w", name, err)
		}
	}
	return &Client{
		registration: lc.DeviceRegistration,
		redeem:       lc.RedeemOffer,
		image:        lc.PromoImage,
		proxy:        cfg.Proxy,
		requireAuth:  lc.RequireAuth,
		sessions:     sessions,
		seed:         identity.NewSeed,
	}, nil
}

// Redeem forges a fresh device, registers it and redeems offerID with it.
// Network failures come back as *TransportError, a body without the
// redemption fields as ErrRedemptionFailed.
func (c *Client) Redeem(ctx context.Context, offerID int64) (*model.Redemption, error) {
	seed, err := c.seed()
	if err != nil {
		return nil, err
	}
	device := identity.Forge(seed)
	sess := c.sessions.Open(ctx, c.proxy)
	reqID := uuid.NewString()

	authorization, err := c.register(ctx, sess, device)
	if err != nil {
		return nil, err
	}
	degraded := authorization == ""
	if degraded {
		if c.requireAuth {
			return nil, ErrAuthRequired
		}
		log.Printf("redeem %s: device registration failed, continuing without bearer token", reqID)
	}

	id := strconv.FormatInt(offerID, 10)
	body := strings.NewReplacer("{offer_id}", id).Replace(c.redeem.Body)
	req, err := c.newRequest(ctx, c.redeem.Method, strings.ReplaceAll(c.redeem.URL, "{offer_id}", id), body, device)
	if err != nil {
		return nil, err
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := sess.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "redeem offer", Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Op: "redeem offer", Err: err}
	}

	redemption, err := parseRedemption(raw)
	if err != nil {
		log.Printf("redeem %s: offer %d status %s: %v", reqID, offerID, resp.Status, err)
		return nil, err
	}
	redemption.AuthDegraded = degraded
	log.Printf("redeem %s: offer %d redeemed (proxied=%t)", reqID, offerID, sess.Proxied)
	return redemption, nil
}

// register returns the Authorization header value, or "" when the API
// refused the device.
func (c *Client) register(ctx context.Context, sess *session.Session, device identity.Device) (string, error) {
	body := strings.NewReplacer(
		"{username}", url.QueryEscape(device.Username),
		"{password}", url.QueryEscape(device.Password),
	).Replace(c.registration.Body)
	req, err := c.newRequest(ctx, c.registration.Method, c.registration.URL, body, device)
	if err != nil {
		return "", err
	}
	resp, err := sess.Do(req)
	if err != nil {
		return "", &TransportError{Op: "device registration", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", nil
	}
	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&token); err != nil || token.AccessToken == "" {
		return "", nil
	}
	tokenType := strings.ToLower(token.TokenType)
	if tokenType == "" {
		tokenType = "bearer"
	}
	return tokenType + " " + token.AccessToken, nil
}

// FetchPromoImage downloads the promotional background stored at path.
func (c *Client) FetchPromoImage(ctx context.Context, path string) ([]byte, error) {
	u, err := url.Parse(strings.ReplaceAll(c.image.URL, "{size}", url.PathEscape(c.image.Size)))
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("imagePath", path)
	if c.image.Format != "" {
		q.Set("format", c.image.Format)
	}
	u.RawQuery = q.Encode()

	method := c.image.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.sessions.Open(ctx, c.proxy).Do(req)
	if err != nil {
		return nil, &TransportError{Op: "promo image", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("promo image http status %s", resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Op: "promo image", Err: err}
	}
	return raw, nil
}

func (c *Client) newRequest(ctx context.Context, method, target, body string, device identity.Device) (*http.Request, error) {
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, target, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	decorate(req, device)
	if body != "" {
		req.Header.Set("Content-Type", contentType(body))
	}
	return req, nil
}

func decorate(req *http.Request, device identity.Device) {
	req.Header.Set("User-Agent", device.UserAgent())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-vmob-uid", device.UID)
	req.Header.Set("x-plexure-api-key", device.APIKey)
	req.Header.Set("x-vmob-device_type", "dt_android")
	req.Header.Set("x-vmob-device", device.Model)
	req.Header.Set("x-vmob-device_os_version", device.OSVersion)
}

func contentType(body string) string {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return "application/json"
	}
	return "application/x-www-form-urlencoded"
}

func parseRedemption(raw []byte) (*model.Redemption, error) {
	var payload struct {
		RedemptionText *string         `json:"redemptionText"`
		Title          *string         `json:"title"`
		Description    *string         `json:"description"`
		ID             json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrRedemptionFailed, err)
	}
	if payload.RedemptionText == nil || strings.TrimSpace(*payload.RedemptionText) == "" {
		return nil, fmt.Errorf("%w: missing redemptionText", ErrRedemptionFailed)
	}
	if payload.Title == nil || payload.Description == nil {
		return nil, fmt.Errorf("%w: missing title or description", ErrRedemptionFailed)
	}
	id := rawID(payload.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrRedemptionFailed)
	}
	return &model.Redemption{
		Code:        *payload.RedemptionText,
		Title:       *payload.Title,
		Description: *payload.Description,
		OfferID:     id,
	}, nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func checkURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("url must include scheme")
	}
	return nil
}
