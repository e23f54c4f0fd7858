package config

import (
	"time"

	"assay/internal/loadgen"
)

const (
	// DefaultPort is the port `assay serve` listens on
	DefaultPort = 8095

	// DefaultHost is the interface `assay serve` binds to
	DefaultHost = "localhost"
)

// GetDefaultConfig returns the built-in configuration.
func GetDefaultConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Host:           DefaultHost,
			Port:           DefaultPort,
			ReadTimeout:    30 * time.Second,
			MaxConnections: 100,
			PingInterval:   30 * time.Second,
		},
		Execution: ExecutionConfig{
			RequestTimeout:       30 * time.Second,
			DefaultStopOnFailure: true,
			Load: LoadDefaults{
				ThinkTime:       loadgen.DefaultThinkTime,
				ErrorPenalty:    loadgen.DefaultErrorPenalty,
				RequestTimeout:  loadgen.DefaultRequestTimeout,
				MaxVirtualUsers: 500,
			},
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			ActionTimeout:     5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
