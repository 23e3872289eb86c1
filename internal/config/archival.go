package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ArchivalDefaults seed a tenant's archival configuration the first time it is
// read. Operators can override them through a volume-mounted archival.yml.
type ArchivalDefaults struct {
	Enabled                   bool    `mapstructure:"enabled"`
	DaysAfterCompletion       int     `mapstructure:"daysAfterCompletion"`
	MaxTicketsPerRun          int     `mapstructure:"maxTicketsPerRun"`
	OnlyWhenApproachingLimits bool    `mapstructure:"onlyWhenApproachingLimits"`
	LimitThresholdPercent     float64 `mapstructure:"limitThresholdPercent"`
}

func DefaultArchivalDefaults() ArchivalDefaults {
	return ArchivalDefaults{
		Enabled:                   false,
		DaysAfterCompletion:       90,
		MaxTicketsPerRun:          100,
		OnlyWhenApproachingLimits: true,
		LimitThresholdPercent:     80,
	}
}

type ArchivalDefaultsHolder struct {
	current atomic.Value // holds ArchivalDefaults
}

func NewArchivalDefaultsHolder() (*ArchivalDefaultsHolder, error) {
	v := viper.New()

	v.SetConfigName("archival")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/deskwise/config") // Volume-mounted config
	v.AddConfigPath("/etc/deskwise")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("DESKWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultArchivalDefaults()
		v.SetDefault("archival.enabled", defaults.Enabled)
		v.SetDefault("archival.daysAfterCompletion", defaults.DaysAfterCompletion)
		v.SetDefault("archival.maxTicketsPerRun", defaults.MaxTicketsPerRun)
		v.SetDefault("archival.onlyWhenApproachingLimits", defaults.OnlyWhenApproachingLimits)
		v.SetDefault("archival.limitThresholdPercent", defaults.LimitThresholdPercent)
	}

	var cfg ArchivalDefaults
	if err := v.UnmarshalKey("archival", &cfg); err != nil {
		return nil, err
	}
	if err := validateArchivalDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &ArchivalDefaultsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ArchivalDefaults
		if err := v.UnmarshalKey("archival", &updated); err != nil {
			log.Printf("[archival-config] reload failed: %v", err)
			return
		}
		if err := validateArchivalDefaults(updated); err != nil {
			log.Printf("[archival-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[archival-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ArchivalDefaultsHolder) Get() ArchivalDefaults {
	return h.current.Load().(ArchivalDefaults)
}

func validateArchivalDefaults(cfg ArchivalDefaults) error {
	if cfg.DaysAfterCompletion < 0 {
		return errors.New("archival.daysAfterCompletion cannot be negative")
	}
	if cfg.MaxTicketsPerRun <= 0 {
		return errors.New("archival.maxTicketsPerRun must be positive")
	}
	if cfg.LimitThresholdPercent < 0 || cfg.LimitThresholdPercent > 100 {
		return errors.New("archival.limitThresholdPercent must be within [0,100]")
	}
	return nil
}
