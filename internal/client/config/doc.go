// Package config loads runtime configuration for the certhub CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via -c / -config or the
//     CERTHUB_CONFIG variable.
//  3. Environment variables with the CERTHUB_ prefix (see parseEnv). A .env
//     file in the working directory is loaded by the binary before this runs.
//  4. Command-line flags (see parseFlags), which override everything else.
//
// Supported flags
//
//	-a string   API base URL
//	-d string   session database path
//	-t int      request timeout (seconds)
//	-l string   log level
//
// # Environment
//
//	CERTHUB_API_BASE                 CERTHUB_DB_PATH
//	CERTHUB_REQUEST_TIMEOUT          CERTHUB_REFRESH_MARGIN
//	CERTHUB_FALLBACK_CHECK_INTERVAL  CERTHUB_LOGOUT_TIMEOUT
//	CERTHUB_RESTORE_DEGRADED         CERTHUB_LOG_LEVEL
//
// Durations use time.ParseDuration syntax ("90s", "5m").
//
// # JSON schema
//
//	{
//	  "api_base_url": "https://api.example.com/api/v1",
//	  "database_path": "/var/lib/certhub/session.db",
//	  "request_timeout": "15s",
//	  "refresh_margin": "5m",
//	  "fallback_check_interval": "5m",
//	  "logout_timeout": "5s",
//	  "restore_degraded": true,
//	  "log_level": "debug"
//	}
package config
