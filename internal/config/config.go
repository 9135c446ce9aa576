package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Endpoint describes one loyalty API call. URL and Body may carry
// {placeholder} markers that the client substitutes per request.
type Endpoint struct {
	Method string `mapstructure:"method"`
	URL    string `mapstructure:"url"`
	Body   string `mapstructure:"body"`
}

// ImageEndpoint describes the promo image download call.
type ImageEndpoint struct {
	Method string `mapstructure:"method"`
	URL    string `mapstructure:"url"`
	Size   string `mapstructure:"size"`
	Format string `mapstructure:"format"`
}

// ProxyConfig is advisory: an unreachable proxy downgrades to a direct session.
type ProxyConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// Config holds all runtime configuration knobs for the bot.
type Config struct {
	Telegram struct {
		Token         string        `mapstructure:"token"`
		OwnerID       int64         `mapstructure:"owner_id"`
		AdminIDs      []int64       `mapstructure:"admin_ids"`
		Mode          string        `mapstructure:"mode"`
		WebhookURL    string        `mapstructure:"webhook_url"`
		WebhookSecret string        `mapstructure:"webhook_secret"`
		PollTimeout   time.Duration `mapstructure:"poll_timeout"`
		Debug         bool          `mapstructure:"debug"`
	} `mapstructure:"telegram"`
	Proxy   ProxyConfig `mapstructure:"proxy"`
	Loyalty struct {
		RequestTimeout     time.Duration `mapstructure:"request_timeout"`
		RequireAuth        bool          `mapstructure:"require_auth"`
		DeviceRegistration Endpoint      `mapstructure:"device_registration"`
		RedeemOffer        Endpoint      `mapstructure:"redeem_offer"`
		PromoImage         ImageEndpoint `mapstructure:"promo_image"`
	} `mapstructure:"loyalty"`
	Storage struct {
		Path          string `mapstructure:"path"`
		OffersFile    string `mapstructure:"offers_file"`
		ImageCacheDir string `mapstructure:"image_cache_dir"`
	} `mapstructure:"storage"`
	Assets struct {
		HeaderImage  string `mapstructure:"header_image"`
		OverlayImage string `mapstructure:"overlay_image"`
	} `mapstructure:"assets"`
	Templates struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"templates"`
	Maintenance struct {
		Enabled bool   `mapstructure:"enabled"`
		Since   string `mapstructure:"since"`
	} `mapstructure:"maintenance"`
	Workflow struct {
		RedeemTimeout time.Duration `mapstructure:"redeem_timeout"`
	} `mapstructure:"workflow"`
	HTTP struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"http"`
	Auth struct {
		Enabled   bool   `mapstructure:"enabled"`
		Username  string `mapstructure:"username"`
		Password  string `mapstructure:"password"`
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"auth"`
}

// Modes accepted by telegram.mode.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Load reads the configuration from disk/environment using Viper.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("offerbot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsAdmin reports whether id is the owner or one of the configured admins.
func (c *Config) IsAdmin(id int64) bool {
	if id == 0 {
		return false
	}
	if id == c.Telegram.OwnerID {
		return true
	}
	for _, admin := range c.Telegram.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

func (c *Config) validate() error {
	switch c.Telegram.Mode {
	case ModePolling, ModeWebhook:
	default:
		return fmt.Errorf("telegram.mode must be %q or %q, got %q", ModePolling, ModeWebhook, c.Telegram.Mode)
	}
	if c.Telegram.Mode == ModeWebhook && strings.TrimSpace(c.Telegram.WebhookSecret) == "" {
		return fmt.Errorf("telegram.webhook_secret is required in webhook mode")
	}
	if c.Proxy.Enabled && strings.TrimSpace(c.Proxy.URL) == "" {
		return fmt.Errorf("proxy.url is required when proxy.enabled is set")
	}
	return nil
}

func isNotFound(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	// SetConfigFile reports a missing explicit path as a plain fs error.
	return errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.mode", ModePolling)
	v.SetDefault("telegram.poll_timeout", "60s")
	v.SetDefault("telegram.admin_ids", []int64{})

	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.probe_timeout", "3s")

	v.SetDefault("loyalty.request_timeout", "15s")
	v.SetDefault("loyalty.require_auth", false)
	v.SetDefault("loyalty.device_registration.method", "POST")
	v.SetDefault("loyalty.device_registration.body", "grant_type=password&username={username}&password={password}")
	v.SetDefault("loyalty.redeem_offer.method", "POST")
	v.SetDefault("loyalty.redeem_offer.body", `{"offerId":{offer_id},"offerInstanceUniqueId":{offer_id}}`)
	v.SetDefault("loyalty.promo_image.method", "GET")
	v.SetDefault("loyalty.promo_image.size", "1080")
	v.SetDefault("loyalty.promo_image.format", "png")

	v.SetDefault("storage.path", "./data/offerbot.db")
	v.SetDefault("storage.offers_file", "./offers.json")
	v.SetDefault("storage.image_cache_dir", "./data/images")

	v.SetDefault("assets.header_image", "./assets/header.png")
	v.SetDefault("assets.overlay_image", "./assets/overlay.png")

	v.SetDefault("templates.dir", "./templates")

	v.SetDefault("workflow.redeem_timeout", "45s")

	v.SetDefault("http.addr", ":8090")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password", "admin123")
	v.SetDefault("auth.jwt_secret", "change-me-secret")
}
