// Package config handles configuration loading for herdbook.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${HERDBOOK_DB_PATH}"
//
// Syntax: ${VAR_NAME}
//
// # Backend Selection
//
// The storage backend is chosen once here and never branched on elsewhere:
//
//	database:
//	  backend: "sqlite"   # or "memory"
//	  path: "./herdbook.db"
//
// The memory backend keeps everything in process memory and needs no path;
// it is meant for development and tests.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  lifetime: "168h"
//	  sweep_interval: "30m"
//
// Supported units: ns, us, ms, s, m, h
package config
