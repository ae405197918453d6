package crawler

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config captures every configuration knob that influences a crawl run.
// All values originate from Viper so the crawler can be configured via
// files, env vars, or CLI flags, while staying testable without Viper.
type Config struct {
	BaseURL       string
	UserAgent     string
	WaitTimeout   time.Duration
	MaxEmptyPages int
	MaxErrors     int
	RetryAttempts int
	RetryBase     time.Duration
	EnableJS      bool
	StartPage     int
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		BaseURL:       v.GetString("upc.base_url"),
		UserAgent:     v.GetString("crawler.user_agent"),
		WaitTimeout:   v.GetDuration("crawler.wait_timeout"),
		MaxEmptyPages: v.GetInt("crawler.max_empty_pages"),
		MaxErrors:     v.GetInt("crawler.max_errors"),
		RetryAttempts: v.GetInt("crawler.retry_attempts"),
		RetryBase:     v.GetDuration("crawler.retry_base_delay"),
		EnableJS:      v.GetBool("crawler.enable_js"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("upc.base_url must be set")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("crawler.wait_timeout must be > 0")
	}
	if c.MaxEmptyPages <= 0 {
		return fmt.Errorf("crawler.max_empty_pages must be > 0")
	}
	if c.MaxErrors <= 0 {
		return fmt.Errorf("crawler.max_errors must be > 0")
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("crawler.retry_attempts must be > 0")
	}
	if c.StartPage < 0 {
		return fmt.Errorf("start page must be >= 0")
	}
	return nil
}
