package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/certhub/internal/flagx"
	"github.com/dmitrijs2005/certhub/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// Intervals use timex.Duration so they can be given as "5m" or as integer
// nanoseconds. Absent keys leave the runtime Config untouched.
type JsonConfig struct {
	APIBaseURL            string          `json:"api_base_url"`
	DatabasePath          string          `json:"database_path"`
	RequestTimeout        *timex.Duration `json:"request_timeout"`
	RefreshMargin         *timex.Duration `json:"refresh_margin"`
	FallbackCheckInterval *timex.Duration `json:"fallback_check_interval"`
	LogoutTimeout         *timex.Duration `json:"logout_timeout"`
	RestoreDegraded       *bool           `json:"restore_degraded"`
	LogLevel              string          `json:"log_level"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from -c / -config, or CERTHUB_CONFIG when neither flag
// is given (see flagx.ConfigFilePath). No path means nothing is loaded.
// Read and unmarshal errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFilePath()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.RefreshMargin, jc.RefreshMargin)
	setDuration(&cfg.FallbackCheckInterval, jc.FallbackCheckInterval)
	setDuration(&cfg.LogoutTimeout, jc.LogoutTimeout)
	if jc.RestoreDegraded != nil {
		cfg.RestoreDegraded = *jc.RestoreDegraded
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}
