package config

import "github.com/spf13/viper"

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("shutdown_timeout", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "fswatchd-history.db")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.addr", "127.0.0.1:8787")
}
