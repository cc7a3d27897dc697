package main

import (
	"strings"

	"github.com/spf13/viper"
)

// config holds the resolved consumer configuration, bound from flags and
// SCREENREFLECT_-prefixed environment variables via viper.
type config struct {
	Endpoint      string
	DiscoverOnly  bool
	MetricsAddr   string
	LogLevel      string
	MaxPayloadLen int
	DialTimeout   string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SCREENREFLECT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("endpoint", "")
	v.SetDefault("discover-only", false)
	v.SetDefault("metrics-addr", ":9478")
	v.SetDefault("log-level", "info")
	v.SetDefault("max-payload-len", 10<<20)
	v.SetDefault("dial-timeout", "5s")
	return v
}

func loadConfig(v *viper.Viper) config {
	return config{
		Endpoint:      v.GetString("endpoint"),
		DiscoverOnly:  v.GetBool("discover-only"),
		MetricsAddr:   v.GetString("metrics-addr"),
		LogLevel:      v.GetString("log-level"),
		MaxPayloadLen: v.GetInt("max-payload-len"),
		DialTimeout:   v.GetString("dial-timeout"),
	}
}
