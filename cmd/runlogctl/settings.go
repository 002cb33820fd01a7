package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"example.com/runlog/internal/api"
	"example.com/runlog/internal/calendar"
)

// settings are read from .runlog.yaml, RUNLOG_* variables and flags, in
// increasing order of precedence.
type settings struct {
	URL            string
	DataKey        string
	CacheDir       string
	Location       *time.Location
	Highlights     []calendar.HighlightRange
	Goals          api.Goals
	CountdownStart time.Time
	CountdownEnd   time.Time
}

func loadSettings(v *viper.Viper, cfgFile string) (settings, error) {
	v.SetDefault("url", "http://localhost:8080")
	v.SetDefault("cache_dir", "~/.runlog/cache")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("start_weight", 91.5)
	v.SetDefault("target_weight", 80)
	v.SetDefault("monthly_weight_loss", 2)
	v.SetDefault("distance_goal_km", 1000)

	v.SetEnvPrefix("RUNLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".runlog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	s := settings{
		URL:     v.GetString("url"),
		DataKey: v.GetString("data_key"),
		Goals: api.Goals{
			StartWeight:       v.GetFloat64("start_weight"),
			TargetWeight:      v.GetFloat64("target_weight"),
			MonthlyWeightLoss: v.GetFloat64("monthly_weight_loss"),
			DistanceGoalKm:    v.GetFloat64("distance_goal_km"),
		},
	}

	var err error
	if s.CacheDir, err = homedir.Expand(v.GetString("cache_dir")); err != nil {
		return settings{}, fmt.Errorf("cache_dir: %w", err)
	}
	if s.Location, err = time.LoadLocation(v.GetString("timezone")); err != nil {
		return settings{}, fmt.Errorf("timezone: %w", err)
	}
	if raw := v.GetString("highlights"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.Highlights); err != nil {
			return settings{}, fmt.Errorf("highlights: %w", err)
		}
	}
	if s.CountdownStart, err = optionalTime(v, "countdown_start"); err != nil {
		return settings{}, err
	}
	if s.CountdownEnd, err = optionalTime(v, "countdown_end"); err != nil {
		return settings{}, err
	}
	return s, nil
}

func optionalTime(v *viper.Viper, key string) (time.Time, error) {
	raw := v.GetString(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}
