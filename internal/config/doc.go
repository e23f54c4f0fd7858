// Package config loads assay's application configuration.
//
// Configuration lives in a single YAML file, config.yaml, inside the
// configuration directory (~/.config/assay unless --config-path is given).
// Values in the file are applied on top of GetDefaultConfig, so a missing
// file or a partial file is valid:
//
//	server:
//	  port: 8095
//	execution:
//	  requestTimeout: 10s
//	  load:
//	    maxVirtualUsers: 200
//	browser:
//	  remoteURL: ws://localhost:9222/devtools/browser/abc
//	logging:
//	  level: debug
//	  format: json
//
// Durations use Go duration syntax. Command line flags override values
// from the file.
package config
