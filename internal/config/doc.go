// Package config provides centralized configuration for the call report
// pipeline binaries. It handles loading from multiple sources, validation,
// and path resolution for the data directories the pipeline reads and
// writes.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of
// precedence:
//
//	1. Environment variables (highest priority)
//	2. config.yaml (searched in the working directory and configs/)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern CALLRPT_* for namespacing,
// with nested sections joined by underscores:
//
//	CALLRPT_PATHS_DATA_DIR=/srv/callreport/data
//	CALLRPT_PIPELINE_WORKERS=8
//	CALLRPT_LOGGING_LEVEL=debug
//	CALLRPT_TELEMETRY_ENABLED=true
//
// # Path Management
//
// All data directories hang off a single data root. Relative entries are
// resolved against it, absolute entries are used as-is:
//
//	cfg.ChicagoRawDir()  // <data>/raw/chicago
//	cfg.FFIECRawDir()    // <data>/raw/ffiec
//	cfg.OutputDir()      // <data>/processed
//	cfg.DictionaryDir()  // <data>/dictionary
//
// # Validation
//
// The loaded configuration is validated before use: worker counts must be
// positive, the log level must be one of the known levels, and download
// URLs must parse. Validation failures abort startup.
package config
