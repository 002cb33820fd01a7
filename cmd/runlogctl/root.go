package main

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/persistence/filecache"
	"example.com/runlog/internal/remote"
	"example.com/runlog/internal/timeutil"
)

type app struct {
	v        *viper.Viper
	cfgFile  string
	verbose  bool
	settings settings
	service  *domain.Service
	now      func() time.Time
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New(), now: time.Now}

	cmd := &cobra.Command{
		Use:          "runlogctl",
		Short:        "Record runs and weight, and view the training calendar.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default .runlog.yaml in the working or home directory)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log store activity to stderr")
	flags.String("url", "", "base URL of the runlog API")
	flags.String("data-key", "", "shared secret sent as x-data-key")
	flags.String("cache-dir", "", "directory of the local snapshot cache")
	flags.String("timezone", "", "IANA zone used for calendar days")
	for key, flag := range map[string]string{
		"url":       "url",
		"data_key":  "data-key",
		"cache_dir": "cache-dir",
		"timezone":  "timezone",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	addCalendar(cmd, a)
	addSummary(cmd, a)
	addTargets(cmd, a)
	addProgress(cmd, a)
	addCountdown(cmd, a)
	addActivity(cmd, a)
	addWeight(cmd, a)
	addImportFit(cmd, a)
	addSeedPlan(cmd, a)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	s, err := loadSettings(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.settings = s

	logger := log.New(io.Discard, "", 0)
	if a.verbose {
		logger = log.New(cmd.ErrOrStderr(), "[runlogctl] ", log.LstdFlags)
	}
	client := remote.NewClient(s.URL, remote.WithDataKey(s.DataKey))
	a.service = domain.NewService(client,
		domain.WithLocalCache(filecache.New(s.CacheDir)),
		domain.WithLocation(s.Location),
		domain.WithLogger(logger),
	)
	return nil
}

func (a *app) today() timeutil.Date {
	return timeutil.Today(a.now(), a.settings.Location)
}

// load reads the snapshot and warns when it came from the local cache.
func (a *app) load(cmd *cobra.Command) (domain.Snapshot, error) {
	res, err := a.service.Snapshot(cmd.Context())
	if err != nil {
		return domain.Snapshot{}, err
	}
	if res.Stale {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: remote store unavailable, showing cached data")
	}
	return res.Snapshot, nil
}

// parseDay reads a YYYY-MM-DD flag value, defaulting to today.
func (a *app) parseDay(value string) (timeutil.Date, error) {
	if value == "" {
		return a.today(), nil
	}
	d, err := timeutil.ParseDate(value)
	if err != nil {
		return timeutil.Date{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}
