package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/runlog/internal/calendar"
	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/fitimport"
	"example.com/runlog/internal/timeutil"
)

type activityOptions struct {
	Date     string
	Distance float64
	Time     string
	Pace     string
	AvgHR    int
	MaxHR    int
	VO2Max   int
}

func addActivity(topLevel *cobra.Command, a *app) {
	o := &activityOptions{}
	cmd := &cobra.Command{
		Use:   "add-activity",
		Short: "Record or update the run for a day",
		Long: `Record the run for a day. When the day already has a run, flags that are
not given keep their stored values.`,
		Example: `
runlogctl add-activity --distance 8.2 --time 45:10 --avg-hr 148
runlogctl add-activity --date 2026-01-06 --max-hr 176
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := a.parseDay(o.Date)
			if err != nil {
				return err
			}
			in, err := o.input(cmd, day, a)
			if err != nil {
				return err
			}

			snap, err := a.load(cmd)
			if err != nil {
				return err
			}
			if prev, ok := domain.FindActivity(snap.ActivityEntries, day, a.settings.Location); ok && !prev.IsTarget() {
				in = in.Merge(prev)
			}
			entry, err := in.Entry()
			if err != nil {
				return err
			}
			return a.submit(cmd, domain.Snapshot{ActivityEntries: []domain.ActivityEntry{entry}},
				fmt.Sprintf("recorded %.2f km on %s (%s /km)", entry.Distance, day, timeutil.FormatPace(entry.Pace)))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.Date, "date", "", "day of the run, YYYY-MM-DD (default today)")
	flags.Float64Var(&o.Distance, "distance", 0, "distance in km")
	flags.StringVar(&o.Time, "time", "", "duration as hh:mm:ss or mm:ss")
	flags.StringVar(&o.Pace, "pace", "", "pace as mm:ss per km (derived when omitted)")
	flags.IntVar(&o.AvgHR, "avg-hr", 0, "average heart rate")
	flags.IntVar(&o.MaxHR, "max-hr", 0, "maximum heart rate")
	flags.IntVar(&o.VO2Max, "vo2max", 0, "VO2 max estimate")
	topLevel.AddCommand(cmd)
}

// input sets only the fields whose flags were given, so Merge can fill the rest.
func (o *activityOptions) input(cmd *cobra.Command, day timeutil.Date, a *app) (domain.ActivityInput, error) {
	date := day.In(a.settings.Location)
	in := domain.ActivityInput{Date: &date, Source: "cli"}
	flags := cmd.Flags()

	if flags.Changed("distance") {
		in.Distance = number(o.Distance)
	}
	if flags.Changed("time") {
		minutes, err := timeutil.ParseClockMinutes(o.Time)
		if err != nil {
			return domain.ActivityInput{}, err
		}
		in.Time = number(minutes)
	}
	if flags.Changed("pace") {
		pace, err := timeutil.ParsePace(o.Pace)
		if err != nil {
			return domain.ActivityInput{}, err
		}
		in.Pace = number(pace)
	}
	if flags.Changed("avg-hr") {
		in.AvgHeartRate = number(float64(o.AvgHR))
	}
	if flags.Changed("max-hr") {
		in.MaxHeartRate = number(float64(o.MaxHR))
	}
	if flags.Changed("vo2max") {
		in.VO2Max = number(float64(o.VO2Max))
	}
	return in, nil
}

func addWeight(topLevel *cobra.Command, a *app) {
	var date string
	var weight float64
	cmd := &cobra.Command{
		Use:   "add-weight",
		Short: "Record the body weight for a day",
		Example: `
runlogctl add-weight --weight 88.4
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := a.parseDay(date)
			if err != nil {
				return err
			}
			at := day.In(a.settings.Location)
			in := domain.WeightInput{Date: &at}
			if cmd.Flags().Changed("weight") {
				in.Weight = number(weight)
			}
			entry, err := in.Entry()
			if err != nil {
				return err
			}
			return a.submit(cmd, domain.Snapshot{WeightEntries: []domain.WeightEntry{entry}},
				fmt.Sprintf("recorded %.1f kg on %s", entry.Weight, day))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day of the reading, YYYY-MM-DD (default today)")
	cmd.Flags().Float64Var(&weight, "weight", 0, "weight in kg")
	topLevel.AddCommand(cmd)
}

func addImportFit(topLevel *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "import-fit FILE",
		Short: "Record a run from a device FIT file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			in, err := fitimport.Read(f)
			if err != nil {
				return err
			}
			entry, err := in.Entry()
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			day := entry.Day(a.settings.Location)
			return a.submit(cmd, domain.Snapshot{ActivityEntries: []domain.ActivityEntry{entry}},
				fmt.Sprintf("imported %.2f km in %s on %s", entry.Distance, timeutil.FormatClock(entry.Time), day))
		},
	}
	topLevel.AddCommand(cmd)
}

func addSeedPlan(topLevel *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "seed-plan",
		Short: "Store the training plan targets",
		Long: `Store one target entry per planned day. Days that already have a recorded
run are left alone. Running it again is harmless.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.load(cmd)
			if err != nil {
				return err
			}
			loc := a.settings.Location
			plan := calendar.Q1Plan2026()

			var targets []domain.ActivityEntry
			skipped := 0
			for _, t := range plan.Targets(loc) {
				if prev, ok := domain.FindActivity(snap.ActivityEntries, t.Day(loc), loc); ok && !prev.IsTarget() {
					skipped++
					continue
				}
				targets = append(targets, t)
			}
			return a.submit(cmd, domain.Snapshot{ActivityEntries: targets},
				fmt.Sprintf("seeded %d targets from %s (%d days already run)", len(targets), plan.Source, skipped))
		},
	}
	topLevel.AddCommand(cmd)
}

func (a *app) submit(cmd *cobra.Command, delta domain.Snapshot, done string) error {
	res, err := a.service.Submit(cmd.Context(), delta)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (version %d)\n", done, res.Snapshot.Version)
	return nil
}

func number(v float64) *domain.Number {
	n := domain.Number(v)
	return &n
}
