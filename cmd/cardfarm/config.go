package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ProcessConfig is the process-wide configuration loaded from cardfarm.hcl.
// Per-account settings live in the XML files under BotsDir.
type ProcessConfig struct {
	Farm FarmSettings `hcl:"farm,block"`
}

// FarmSettings contains the process-level knobs.
type FarmSettings struct {
	BotsDir   string `hcl:"bots_dir,optional"`
	SentryDir string `hcl:"sentry_dir,optional"`

	CommunityURL string `hcl:"community_url,optional"`
	APIURL       string `hcl:"api_url,optional"`
	PlatformURL  string `hcl:"platform_url,optional"`

	FarmingDelayMinutes    int     `hcl:"farming_delay_minutes,optional"`
	MaxFarmingTimeHours    int     `hcl:"max_farming_time_hours,optional"`
	HoursToBump            float64 `hcl:"hours_to_bump,optional"`
	MaxGamesConcurrently   int     `hcl:"max_games_concurrently,optional"`
	ConnectIntervalSeconds int     `hcl:"connect_interval_seconds,optional"`

	Monitor               bool `hcl:"monitor,optional"`
	MonitorRefreshSeconds int  `hcl:"monitor_refresh_seconds,optional"`

	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// DefaultProcessConfig returns the default process configuration.
func DefaultProcessConfig() *ProcessConfig {
	return &ProcessConfig{
		Farm: FarmSettings{
			BotsDir:                "bots",
			SentryDir:              "sentry",
			CommunityURL:           "https://steamcommunity.com",
			APIURL:                 "https://api.steampowered.com",
			PlatformURL:            "wss://cm.cardfarm.local/ws",
			FarmingDelayMinutes:    15,
			MaxFarmingTimeHours:    10,
			HoursToBump:            2.0,
			MaxGamesConcurrently:   32,
			ConnectIntervalSeconds: 5,
			MonitorRefreshSeconds:  30,
			LogLevel:               "info",
		},
	}
}

// LoadProcessConfig loads the HCL config file, falling back to defaults when
// it does not exist.
func LoadProcessConfig(filename string) (*ProcessConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultProcessConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ProcessConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultProcessConfig().Farm
	if config.Farm.BotsDir == "" {
		config.Farm.BotsDir = defaults.BotsDir
	}
	if config.Farm.SentryDir == "" {
		config.Farm.SentryDir = defaults.SentryDir
	}
	if config.Farm.CommunityURL == "" {
		config.Farm.CommunityURL = defaults.CommunityURL
	}
	if config.Farm.APIURL == "" {
		config.Farm.APIURL = defaults.APIURL
	}
	if config.Farm.PlatformURL == "" {
		config.Farm.PlatformURL = defaults.PlatformURL
	}
	if config.Farm.FarmingDelayMinutes == 0 {
		config.Farm.FarmingDelayMinutes = defaults.FarmingDelayMinutes
	}
	if config.Farm.MaxFarmingTimeHours == 0 {
		config.Farm.MaxFarmingTimeHours = defaults.MaxFarmingTimeHours
	}
	if config.Farm.HoursToBump == 0 {
		config.Farm.HoursToBump = defaults.HoursToBump
	}
	if config.Farm.MaxGamesConcurrently == 0 {
		config.Farm.MaxGamesConcurrently = defaults.MaxGamesConcurrently
	}
	if config.Farm.ConnectIntervalSeconds == 0 {
		config.Farm.ConnectIntervalSeconds = defaults.ConnectIntervalSeconds
	}
	if config.Farm.MonitorRefreshSeconds == 0 {
		config.Farm.MonitorRefreshSeconds = defaults.MonitorRefreshSeconds
	}
	if config.Farm.LogLevel == "" {
		config.Farm.LogLevel = defaults.LogLevel
	}

	return &config, nil
}

// Validate checks the process configuration.
func (c *ProcessConfig) Validate() error {
	if c.Farm.BotsDir == "" {
		return fmt.Errorf("bots_dir must be set")
	}
	if c.Farm.FarmingDelayMinutes < 1 {
		return fmt.Errorf("farming_delay_minutes must be at least 1")
	}
	if c.Farm.MaxFarmingTimeHours < 1 {
		return fmt.Errorf("max_farming_time_hours must be at least 1")
	}
	if c.Farm.HoursToBump <= 0 {
		return fmt.Errorf("hours_to_bump must be positive")
	}
	if c.Farm.MaxGamesConcurrently < 1 {
		return fmt.Errorf("max_games_concurrently must be at least 1")
	}
	if c.Farm.ConnectIntervalSeconds < 1 {
		return fmt.Errorf("connect_interval_seconds must be at least 1")
	}
	switch c.Farm.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %s", c.Farm.LogLevel)
	}
	return nil
}

// FarmingDelay returns the configured delay as a duration.
func (c *ProcessConfig) FarmingDelay() time.Duration {
	return time.Duration(c.Farm.FarmingDelayMinutes) * time.Minute
}

// MaxFarmingTime returns the configured per-title budget as a duration.
func (c *ProcessConfig) MaxFarmingTime() time.Duration {
	return time.Duration(c.Farm.MaxFarmingTimeHours) * time.Hour
}

// ConnectInterval returns the configured connect throttle interval.
func (c *ProcessConfig) ConnectInterval() time.Duration {
	return time.Duration(c.Farm.ConnectIntervalSeconds) * time.Second
}

// MonitorRefresh returns the configured monitor redraw interval.
func (c *ProcessConfig) MonitorRefresh() time.Duration {
	return time.Duration(c.Farm.MonitorRefreshSeconds) * time.Second
}
