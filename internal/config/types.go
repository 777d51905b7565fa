package config

import "time"

// AppDirName is the per-user directory holding both config files.
const AppDirName = "BetterMsTeams"

const InjectorConfigFile = "BetterMsTeamsConfig.json"
const PluginConfigFile = "PluginConfig.json"

const DefaultScriptsDir = "scripts"
const DefaultMarketplaceURL = "https://api.kiocode.com/api/betterteams"
const DefaultDebuggingPort = 9222
const DefaultControlPort = 8097
const DefaultInitialDelayMs = 5000
const DefaultReInjectDelayMs = 2000
const DefaultDownloadAttempts = 2
const DefaultDownloadBackoffMs = 1000
const DefaultPagePollMs = 3000
const DefaultLogLevel = "info"

// Duration helpers keep the millisecond fields readable in the JSON file
// while callers work with time.Duration.

func (c *InjectorConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMs) * time.Millisecond
}

func (c *InjectorConfig) ReInjectDelay() time.Duration {
	return time.Duration(c.ReInjectDelayMs) * time.Millisecond
}

func (c *InjectorConfig) DownloadBackoff() time.Duration {
	return time.Duration(c.DownloadBackoffMs) * time.Millisecond
}

func (c *InjectorConfig) PagePollInterval() time.Duration {
	return time.Duration(c.PagePollMs) * time.Millisecond
}
