// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	CRM        CRMConfig        `yaml:"crm" mapstructure:"crm"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Automation AutomationConfig `yaml:"automation" mapstructure:"automation"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CRMConfig configures the CRM REST client. Credentials and tokens live in
// the session file (SessionPath), not here, because the session is rewritten
// on every token refresh.
type CRMConfig struct {
	SessionPath    string  `yaml:"session_path" mapstructure:"session_path"`
	AccountsModule string  `yaml:"accounts_module" mapstructure:"accounts_module"`
	EditorBaseURL  string  `yaml:"editor_base_url" mapstructure:"editor_base_url"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SyncConfig configures the reconciliation pass.
type SyncConfig struct {
	IntervalSecs  int    `yaml:"interval_secs" mapstructure:"interval_secs"`
	LedgerPath    string `yaml:"ledger_path" mapstructure:"ledger_path"`
	QueuePath     string `yaml:"queue_path" mapstructure:"queue_path"`
	ImagesDir     string `yaml:"images_dir" mapstructure:"images_dir"`
	RequireImages bool   `yaml:"require_images" mapstructure:"require_images"`
	InlineImages  bool   `yaml:"inline_images" mapstructure:"inline_images"`
	InlineField   string `yaml:"inline_field" mapstructure:"inline_field"`
}

// StoreConfig configures the attempt-history database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AutomationConfig configures the interactive image uploader and the driver
// agent it talks through.
type AutomationConfig struct {
	AgentURL        string `yaml:"agent_url" mapstructure:"agent_url"`
	SelectorProfile string `yaml:"selector_profile" mapstructure:"selector_profile"`
	SettleSecs      int    `yaml:"settle_secs" mapstructure:"settle_secs"`
	UploadWaitSecs  int    `yaml:"upload_wait_secs" mapstructure:"upload_wait_secs"`
}

// ExtractConfig configures the search-driven business extractor.
type ExtractConfig struct {
	SearchURL      string `yaml:"search_url" mapstructure:"search_url"`
	PageSettleSecs int    `yaml:"page_settle_secs" mapstructure:"page_settle_secs"`
}

// ServerConfig configures the status/trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ACCOUNTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("crm.session_path", "session.json")
	v.SetDefault("crm.accounts_module", "Accounts")
	v.SetDefault("crm.rate_limit_rps", 5)
	v.SetDefault("crm.timeout_secs", 30)
	v.SetDefault("sync.interval_secs", 30)
	v.SetDefault("sync.ledger_path", "processed_addresses.txt")
	v.SetDefault("sync.queue_path", "addresses.txt")
	v.SetDefault("sync.images_dir", "images")
	v.SetDefault("sync.require_images", false)
	v.SetDefault("sync.inline_images", false)
	v.SetDefault("sync.inline_field", "Images")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "accountsync.db")
	v.SetDefault("automation.agent_url", "http://localhost:4444")
	v.SetDefault("automation.settle_secs", 2)
	v.SetDefault("automation.upload_wait_secs", 10)
	v.SetDefault("extract.search_url", "https://www.google.com")
	v.SetDefault("extract.page_settle_secs", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
