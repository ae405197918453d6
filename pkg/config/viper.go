// Package config is responsible for initializing the application's
// configuration. It uses the Viper library to read settings from a config
// file, environment variables, and command-line flags, providing a unified
// configuration system.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and
// enables reading from environment variables. Called once at startup,
// before any component loads its config. A missing config file is fine;
// a malformed one is not.
func InitConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")           // Current working directory
		viper.AddConfigPath("/etc/upcd/")  // System-wide configuration
		viper.AddConfigPath("$HOME/.upcd") // User-specific configuration
	}

	// --- Set Defaults ---
	viper.SetDefault("upc.base_url", "https://www.unified-patent-court.org/en/decisions-and-orders")
	viper.SetDefault("store.path", "decisions.xlsx")
	viper.SetDefault("docs.dir", "documents")
	viper.SetDefault("index.dir", "indexdir")

	viper.SetDefault("crawler.user_agent", "upcd/1.0 (+https://github.com/mlefevre/upc-decisions)")
	viper.SetDefault("crawler.wait_timeout", "10s")
	viper.SetDefault("crawler.max_empty_pages", 3)
	viper.SetDefault("crawler.max_errors", 3)
	viper.SetDefault("crawler.retry_attempts", 3)
	viper.SetDefault("crawler.retry_base_delay", "250ms")
	viper.SetDefault("crawler.enable_js", false)

	viper.SetDefault("fetch.workers", 4)
	viper.SetDefault("fetch.timeout", "60s")
	viper.SetDefault("fetch.host_qps", 2.0)
	viper.SetDefault("fetch.ledger", "fetch-ledger.db")

	viper.SetDefault("search.limit", 50)
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("logging.development", false)

	// --- Environment Variables ---
	viper.SetEnvPrefix("UPCD") // e.g. UPCD_FETCH_WORKERS=8
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// --- Read Config File ---
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// No config file found; defaults and env vars suffice.
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
