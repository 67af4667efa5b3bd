// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Target() TargetConfig
	Waits() WaitConfig
	Interaction() InteractionConfig
	Recovery() RecoveryConfig
	Arrival() ArrivalConfig
	Classification() ClassificationConfig
	Scenario() ScenarioConfig
	Metrics() MetricsConfig
	Catalog() CatalogConfig

	// Browser Setters
	SetBrowserHeadless(bool)

	// Target Setters
	SetTargetURL(string)
	SetTargetApp(string)

	// Classification Setters
	SetSkipTechnicalErrors(bool)

	// Metrics Setters
	SetMetricsEnabled(bool)
}

// Config holds the entire application configuration.
// Sections are exported for viper's unmarshaller but should be read through the Interface getters.
type Config struct {
	LoggerCfg         LoggerConfig         `mapstructure:"logger" yaml:"logger"`
	BrowserCfg        BrowserConfig        `mapstructure:"browser" yaml:"browser"`
	TargetCfg         TargetConfig         `mapstructure:"target" yaml:"target"`
	WaitsCfg          WaitConfig           `mapstructure:"waits" yaml:"waits"`
	InteractionCfg    InteractionConfig    `mapstructure:"interaction" yaml:"interaction"`
	RecoveryCfg       RecoveryConfig       `mapstructure:"recovery" yaml:"recovery"`
	ArrivalCfg        ArrivalConfig        `mapstructure:"arrival" yaml:"arrival"`
	ClassificationCfg ClassificationConfig `mapstructure:"classification" yaml:"classification"`
	ScenarioCfg       ScenarioConfig       `mapstructure:"scenario" yaml:"scenario"`
	MetricsCfg        MetricsConfig        `mapstructure:"metrics" yaml:"metrics"`
	CatalogCfg        CatalogConfig        `mapstructure:"catalog" yaml:"catalog"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig                 { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig               { return c.BrowserCfg }
func (c *Config) Target() TargetConfig                 { return c.TargetCfg }
func (c *Config) Waits() WaitConfig                    { return c.WaitsCfg }
func (c *Config) Interaction() InteractionConfig       { return c.InteractionCfg }
func (c *Config) Recovery() RecoveryConfig             { return c.RecoveryCfg }
func (c *Config) Arrival() ArrivalConfig               { return c.ArrivalCfg }
func (c *Config) Classification() ClassificationConfig { return c.ClassificationCfg }
func (c *Config) Scenario() ScenarioConfig             { return c.ScenarioCfg }
func (c *Config) Metrics() MetricsConfig               { return c.MetricsCfg }
func (c *Config) Catalog() CatalogConfig               { return c.CatalogCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)     { c.BrowserCfg.Headless = b }
func (c *Config) SetTargetURL(u string)         { c.TargetCfg.URL = u }
func (c *Config) SetTargetApp(a string)         { c.TargetCfg.App = a }
func (c *Config) SetSkipTechnicalErrors(b bool) { c.ClassificationCfg.SkipTechnicalErrors = b }
func (c *Config) SetMetricsEnabled(b bool)      { c.MetricsCfg.Enabled = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	SummaryFile string      `mapstructure:"summary_file" yaml:"summary_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance driven over CDP.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	DisableGPU     bool          `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	ExecPath       string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args           []string      `mapstructure:"args" yaml:"args"`
	WindowWidth    int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight   int           `mapstructure:"window_height" yaml:"window_height"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// TargetConfig identifies the Salesforce org under test. Credentials are resolved
// by the environment; this layer never decrypts anything.
type TargetConfig struct {
	URL       string `mapstructure:"url" yaml:"url"`
	Username  string `mapstructure:"username" yaml:"username"`
	Password  string `mapstructure:"password" yaml:"-"`
	App       string `mapstructure:"app" yaml:"app"`
	LogoutURL string `mapstructure:"logout_url" yaml:"logout_url"`
}

// WaitConfig carries the named wait presets and polling cadence.
type WaitConfig struct {
	Short             time.Duration `mapstructure:"short" yaml:"short"`
	Default           time.Duration `mapstructure:"default" yaml:"default"`
	Long              time.Duration `mapstructure:"long" yaml:"long"`
	Medium            time.Duration `mapstructure:"medium" yaml:"medium"`
	Brief             time.Duration `mapstructure:"brief" yaml:"brief"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	StatePollInterval time.Duration `mapstructure:"state_poll_interval" yaml:"state_poll_interval"`
	ExistenceSettle   time.Duration `mapstructure:"existence_settle" yaml:"existence_settle"`
	RefreshSettle     time.Duration `mapstructure:"refresh_settle" yaml:"refresh_settle"`
}

// InteractionConfig tunes the bounded-retry click and type primitives.
type InteractionConfig struct {
	ClickAttempts        int           `mapstructure:"click_attempts" yaml:"click_attempts"`
	ClickDelay           time.Duration `mapstructure:"click_delay" yaml:"click_delay"`
	TypeAttempts         int           `mapstructure:"type_attempts" yaml:"type_attempts"`
	TypeDelay            time.Duration `mapstructure:"type_delay" yaml:"type_delay"`
	TypeClickableTimeout time.Duration `mapstructure:"type_clickable_timeout" yaml:"type_clickable_timeout"`
	CharDelay            time.Duration `mapstructure:"char_delay" yaml:"char_delay"`
}

// RecoveryConfig tunes the escalating robust click.
type RecoveryConfig struct {
	MaxRefreshCycles int           `mapstructure:"max_refresh_cycles" yaml:"max_refresh_cycles"`
	SettleDelay      time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	AnchorTimeout    time.Duration `mapstructure:"anchor_timeout" yaml:"anchor_timeout"`
	ClickableTimeout time.Duration `mapstructure:"clickable_timeout" yaml:"clickable_timeout"`
}

// ArrivalConfig tunes page-arrival confirmation.
type ArrivalConfig struct {
	RefreshAttempts        int           `mapstructure:"refresh_attempts" yaml:"refresh_attempts"`
	TitleRefreshAttempts   int           `mapstructure:"title_refresh_attempts" yaml:"title_refresh_attempts"`
	InterRefreshDelay      time.Duration `mapstructure:"inter_refresh_delay" yaml:"inter_refresh_delay"`
	RefreshWait            time.Duration `mapstructure:"refresh_wait" yaml:"refresh_wait"`
	InitialSettle          time.Duration `mapstructure:"initial_settle" yaml:"initial_settle"`
	MaintenanceSettle      time.Duration `mapstructure:"maintenance_settle" yaml:"maintenance_settle"`
	StoreAttempts          int           `mapstructure:"store_attempts" yaml:"store_attempts"`
	StoreDelay             time.Duration `mapstructure:"store_delay" yaml:"store_delay"`
	LoginSessionWorkaround time.Duration `mapstructure:"login_session_workaround" yaml:"login_session_workaround"`
}

// ClassificationConfig governs how terminal errors are reported to the runner.
type ClassificationConfig struct {
	SkipTechnicalErrors bool   `mapstructure:"skip_technical_errors" yaml:"skip_technical_errors"`
	OwnPackagePrefix    string `mapstructure:"own_package_prefix" yaml:"own_package_prefix"`
}

// ScenarioConfig holds runner side-effect locations.
type ScenarioConfig struct {
	LockFile         string        `mapstructure:"lock_file" yaml:"lock_file"`
	LockPollInterval time.Duration `mapstructure:"lock_poll_interval" yaml:"lock_poll_interval"`
	ScreenshotDir    string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	JUnitReport      string        `mapstructure:"junit_report" yaml:"junit_report"`
	JSONReport       string        `mapstructure:"json_report" yaml:"json_report"`
	URLAttempts      int           `mapstructure:"url_attempts" yaml:"url_attempts"`
	URLDelay         time.Duration `mapstructure:"url_delay" yaml:"url_delay"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address"`
	Path          string `mapstructure:"path" yaml:"path"`
	Namespace     string `mapstructure:"namespace" yaml:"namespace"`
}

// CatalogConfig points at an optional YAML locator catalog.
type CatalogConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "bolt")
	v.SetDefault("logger.log_file", "target/bolt.log")
	v.SetDefault("logger.summary_file", "target/run-summary.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.command_timeout", "30s")

	// -- Target --
	v.SetDefault("target.logout_url", "/secur/logout.jsp")

	// -- Waits --
	v.SetDefault("waits.short", "7s")
	v.SetDefault("waits.default", "61s")
	v.SetDefault("waits.long", "360s")
	v.SetDefault("waits.medium", "15s")
	v.SetDefault("waits.brief", "2s")
	v.SetDefault("waits.poll_interval", "200ms")
	v.SetDefault("waits.state_poll_interval", "250ms")
	v.SetDefault("waits.existence_settle", "500ms")
	v.SetDefault("waits.refresh_settle", "4s")

	// -- Interaction --
	v.SetDefault("interaction.click_attempts", 10)
	v.SetDefault("interaction.click_delay", "250ms")
	v.SetDefault("interaction.type_attempts", 8)
	v.SetDefault("interaction.type_delay", "250ms")
	v.SetDefault("interaction.type_clickable_timeout", "8s")
	v.SetDefault("interaction.char_delay", "100ms")

	// -- Recovery --
	v.SetDefault("recovery.max_refresh_cycles", 3)
	v.SetDefault("recovery.settle_delay", "2s")
	v.SetDefault("recovery.anchor_timeout", "15s")
	v.SetDefault("recovery.clickable_timeout", "15s")

	// -- Arrival --
	v.SetDefault("arrival.refresh_attempts", 5)
	v.SetDefault("arrival.title_refresh_attempts", 3)
	v.SetDefault("arrival.inter_refresh_delay", "1s")
	v.SetDefault("arrival.refresh_wait", "15s")
	v.SetDefault("arrival.initial_settle", "5s")
	v.SetDefault("arrival.maintenance_settle", "2s")
	v.SetDefault("arrival.store_attempts", 3)
	v.SetDefault("arrival.store_delay", "2s")
	v.SetDefault("arrival.login_session_workaround", "0s")

	// -- Classification --
	v.SetDefault("classification.skip_technical_errors", true)
	v.SetDefault("classification.own_package_prefix", "github.com/xkilldash9x/bolt")

	// -- Scenario --
	v.SetDefault("scenario.lock_file", "LOCK")
	v.SetDefault("scenario.lock_poll_interval", "5s")
	v.SetDefault("scenario.screenshot_dir", "target/screenshot")
	v.SetDefault("scenario.junit_report", "target/bolt-junit.xml")
	v.SetDefault("scenario.json_report", "target/bolt-summary.json")
	v.SetDefault("scenario.url_attempts", 10)
	v.SetDefault("scenario.url_delay", "1s")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_address", ":9464")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "bolt")
}

// NewConfigFromViper unmarshals a viper instance into a validated Config.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("target.username", "BOLT_TARGET_USERNAME")
	v.BindEnv("target.password", "BOLT_TARGET_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the password if Unmarshal didn't pick it up
	if cfg.TargetCfg.Password == "" {
		cfg.TargetCfg.Password = os.Getenv("BOLT_TARGET_PASSWORD")
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading "~" in every file location.
func (c *Config) expandPaths() error {
	paths := []*string{
		&c.LoggerCfg.LogFile,
		&c.LoggerCfg.SummaryFile,
		&c.ScenarioCfg.LockFile,
		&c.ScenarioCfg.ScreenshotDir,
		&c.ScenarioCfg.JUnitReport,
		&c.ScenarioCfg.JSONReport,
		&c.CatalogCfg.Path,
		&c.BrowserCfg.ExecPath,
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for values the engine cannot work with.
func (c *Config) Validate() error {
	if err := c.WaitsCfg.Validate(); err != nil {
		return fmt.Errorf("waits configuration invalid: %w", err)
	}
	if c.InteractionCfg.ClickAttempts < 1 {
		return fmt.Errorf("interaction.click_attempts must be at least 1")
	}
	if c.InteractionCfg.TypeAttempts < 1 {
		return fmt.Errorf("interaction.type_attempts must be at least 1")
	}
	if c.InteractionCfg.TypeClickableTimeout <= 0 {
		return fmt.Errorf("interaction.type_clickable_timeout must be positive")
	}
	if c.RecoveryCfg.MaxRefreshCycles < 1 {
		return fmt.Errorf("recovery.max_refresh_cycles must be at least 1")
	}
	if c.RecoveryCfg.AnchorTimeout <= 0 || c.RecoveryCfg.ClickableTimeout <= 0 {
		return fmt.Errorf("recovery timeouts must be positive")
	}
	if c.ArrivalCfg.RefreshAttempts < 0 || c.ArrivalCfg.TitleRefreshAttempts < 0 {
		return fmt.Errorf("arrival refresh attempts must not be negative")
	}
	if c.ArrivalCfg.RefreshWait <= 0 {
		return fmt.Errorf("arrival.refresh_wait must be positive")
	}
	if c.ArrivalCfg.StoreAttempts < 1 {
		return fmt.Errorf("arrival.store_attempts must be at least 1")
	}
	if c.MetricsCfg.Enabled && c.MetricsCfg.ListenAddress == "" {
		return fmt.Errorf("metrics.listen_address is required when metrics are enabled")
	}
	return nil
}

// Validate checks that every preset and poll interval is strictly positive.
func (w WaitConfig) Validate() error {
	durations := map[string]time.Duration{
		"short":               w.Short,
		"default":             w.Default,
		"long":                w.Long,
		"medium":              w.Medium,
		"brief":               w.Brief,
		"poll_interval":       w.PollInterval,
		"state_poll_interval": w.StatePollInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("waits.%s must be positive, got %s", name, d)
		}
	}
	return nil
}
