package config

import (
	"time"

	"assay/internal/browser"
	"assay/internal/executor"
)

// AppConfig is the top-level configuration for assay.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Execution ExecutionConfig `yaml:"execution"`
	Browser   BrowserConfig   `yaml:"browser"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures `assay serve`.
type ServerConfig struct {
	Host         string        `yaml:"host,omitempty"`         // Host to bind to (default: localhost)
	Port         int           `yaml:"port,omitempty"`         // Port to listen on (default: 8095)
	ReadTimeout  time.Duration `yaml:"readTimeout,omitempty"`  // HTTP read timeout
	WriteTimeout time.Duration `yaml:"writeTimeout,omitempty"` // HTTP write timeout; 0 disables it for synchronous runs
	// MaxConnections caps concurrent websocket connections
	MaxConnections int `yaml:"maxConnections,omitempty"`
	// PingInterval is how often websocket clients are pinged
	PingInterval time.Duration `yaml:"pingInterval,omitempty"`
}

// StorageConfig locates persisted run results.
type StorageConfig struct {
	// Path is the storage root; empty means <config dir>/data
	Path string `yaml:"path,omitempty"`
}

// ExecutionConfig holds defaults applied to steps that leave them unset.
type ExecutionConfig struct {
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty"`
	// DefaultStopOnFailure applies to suites without stopOnFailure
	DefaultStopOnFailure bool         `yaml:"defaultStopOnFailure"`
	Load                 LoadDefaults `yaml:"load"`
}

// LoadDefaults holds load generation defaults.
type LoadDefaults struct {
	ThinkTime       time.Duration `yaml:"thinkTime,omitempty"`
	ErrorPenalty    time.Duration `yaml:"errorPenalty,omitempty"`
	RequestTimeout  time.Duration `yaml:"requestTimeout,omitempty"`
	MaxVirtualUsers int           `yaml:"maxVirtualUsers,omitempty"`
}

// BrowserConfig configures the Chrome provider used by Functional suites.
type BrowserConfig struct {
	ExecPath          string        `yaml:"execPath,omitempty"`
	RemoteURL         string        `yaml:"remoteURL,omitempty"`
	Headless          bool          `yaml:"headless"`
	NavigationTimeout time.Duration `yaml:"navigationTimeout,omitempty"`
	ActionTimeout     time.Duration `yaml:"actionTimeout,omitempty"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn or error
	Format string `yaml:"format,omitempty"` // text or json; empty means text for the CLI and json for servers
}

// Settings converts the execution and browser sections into executor
// settings.
func (c AppConfig) Settings() executor.Settings {
	return executor.Settings{
		RequestTimeout:    c.Execution.RequestTimeout,
		BrowserTimeout:    c.Browser.ActionTimeout,
		NavigationTimeout: c.Browser.NavigationTimeout,
		LoadThinkTime:     c.Execution.Load.ThinkTime,
		LoadErrorPenalty:  c.Execution.Load.ErrorPenalty,
		LoadTimeout:       c.Execution.Load.RequestTimeout,
		MaxVirtualUsers:   c.Execution.Load.MaxVirtualUsers,
	}
}

// ChromeOptions converts the browser section into provider options.
func (c AppConfig) ChromeOptions() browser.ChromeOptions {
	return browser.ChromeOptions{
		ExecPath:          c.Browser.ExecPath,
		RemoteURL:         c.Browser.RemoteURL,
		Headless:          c.Browser.Headless,
		ActionTimeout:     c.Browser.ActionTimeout,
		NavigationTimeout: c.Browser.NavigationTimeout,
	}
}
