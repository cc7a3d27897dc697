package main

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// config holds the resolved producer configuration, bound from flags and
// SCREENREFLECT_-prefixed environment variables via viper, mirroring the
// env-var-first configuration style used elsewhere in the pack.
type config struct {
	ListenAddr        string
	AdvertiseInstance string
	MetricsAddr       string
	LogLevel          string
	KeyFrameGrace     string
	MaxPayloadLen     int
	NoAdvertise       bool
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SCREENREFLECT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen-addr", ":47631")
	v.SetDefault("advertise-instance", hostnameOrDefault())
	v.SetDefault("metrics-addr", ":9477")
	v.SetDefault("log-level", "info")
	v.SetDefault("keyframe-grace", "2s")
	v.SetDefault("max-payload-len", 10<<20)
	v.SetDefault("no-advertise", false)
	return v
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "screenreflect"
	}
	return h
}

func loadConfig(v *viper.Viper) config {
	return config{
		ListenAddr:        v.GetString("listen-addr"),
		AdvertiseInstance: v.GetString("advertise-instance"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
		KeyFrameGrace:     v.GetString("keyframe-grace"),
		MaxPayloadLen:     v.GetInt("max-payload-len"),
		NoAdvertise:       v.GetBool("no-advertise"),
	}
}
