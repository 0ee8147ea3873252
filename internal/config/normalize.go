package config

import "strings"

// normalizeConfig normalizes configuration values.
func normalizeConfig(c *Config) {
	c.Log.Level = strings.ToLower(c.Log.Level)

	for i := range c.Watches {
		// viper lower-cases map keys read from a config file, so flag
		// names are restored to their canonical upper-case form here.
		events := make(map[string]EventConfig, len(c.Watches[i].Events))
		for flag, ev := range c.Watches[i].Events {
			ev.Scheduler = strings.ToLower(ev.Scheduler)
			events[strings.ToUpper(flag)] = ev
		}
		c.Watches[i].Events = events
		if ds := c.Watches[i].DefaultScheduler; ds != nil {
			ds.Scheduler = strings.ToLower(ds.Scheduler)
		}
	}
	for i := range c.Rules {
		c.Rules[i].Action = strings.ToLower(c.Rules[i].Action)
	}
}
