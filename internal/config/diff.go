package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only the log level is applied in place; every other changed section is
// listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired names the top-level sections (e.g. "providers",
	// "pipeline") whose changes take effect only after a restart. Sorted.
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Compare server settings without the hot-reloadable log level.
	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"providers", old.Providers, new.Providers},
		{"pipeline", old.Pipeline, new.Pipeline},
		{"database", old.Database, new.Database},
		{"push", old.Push, new.Push},
		{"resilience", old.Resilience, new.Resilience},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	slices.Sort(d.RestartRequired)
	return d
}
