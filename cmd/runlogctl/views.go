package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/runlog/internal/calendar"
	"example.com/runlog/internal/render"
)

type periodOptions struct {
	Year  int
	Month int
}

func addPeriodArgs(cmd *cobra.Command, o *periodOptions) {
	cmd.Flags().IntVar(&o.Year, "year", 0, "year to show (default current)")
	cmd.Flags().IntVar(&o.Month, "month", 0, "month to show, 1-12 (default current)")
}

func (o periodOptions) resolve(a *app) (int, time.Month, error) {
	today := a.today()
	year, month := today.Year, today.Month
	if o.Year != 0 {
		if o.Year < 1 || o.Year > 9999 {
			return 0, 0, errors.New("--year must be between 1 and 9999")
		}
		year = o.Year
	}
	if o.Month != 0 {
		if o.Month < 1 || o.Month > 12 {
			return 0, 0, errors.New("--month must be between 1 and 12")
		}
		month = time.Month(o.Month)
	}
	return year, month, nil
}

func addCalendar(topLevel *cobra.Command, a *app) {
	po := &periodOptions{}
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show a month grid of runs and planned distances",
		Example: `
runlogctl calendar
runlogctl calendar --year 2026 --month 2
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := po.resolve(a)
			if err != nil {
				return err
			}
			snap, err := a.load(cmd)
			if err != nil {
				return err
			}
			loc := a.settings.Location
			days := calendar.ClassifyMonth(year, month, a.today(), a.settings.Highlights, calendar.NewIndex(snap, loc))
			calendar.AttachPlan(days, calendar.Q1Plan2026())

			out := cmd.OutOrStdout()
			render.Calendar(out, year, month, calendar.Weeks(days))
			fmt.Fprintln(out)
			render.Summary(out, month.String(), calendar.MonthlySummary(snap.ActivityEntries, year, month, loc))
			return nil
		},
	}
	addPeriodArgs(cmd, po)
	topLevel.AddCommand(cmd)
}

func addSummary(topLevel *cobra.Command, a *app) {
	po := &periodOptions{}
	var all, list bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarise runs for a month, a year or all time",
		Example: `
runlogctl summary --month 1
runlogctl summary --year 2026
runlogctl summary --all --list
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.load(cmd)
			if err != nil {
				return err
			}
			loc := a.settings.Location
			out := cmd.OutOrStdout()

			switch {
			case all:
				render.Summary(out, "All time", calendar.Totals(snap.ActivityEntries))
			default:
				year, month, err := po.resolve(a)
				if err != nil {
					return err
				}
				if po.Month == 0 && po.Year != 0 {
					render.Summary(out, fmt.Sprint(year), calendar.YearlySummary(snap.ActivityEntries, year, loc))
				} else {
					render.Summary(out, fmt.Sprintf("%s %d", month, year), calendar.MonthlySummary(snap.ActivityEntries, year, month, loc))
				}
			}
			if list {
				render.Activities(out, snap.Runs(), loc)
			}
			return nil
		},
	}
	addPeriodArgs(cmd, po)
	cmd.Flags().BoolVar(&all, "all", false, "summarise every recorded run")
	cmd.Flags().BoolVar(&list, "list", false, "also list the runs")
	topLevel.AddCommand(cmd)
}

func addTargets(topLevel *cobra.Command, a *app) {
	var date string
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Show the training plan, or the target for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := calendar.Q1Plan2026()
			out := cmd.OutOrStdout()
			if date == "" {
				render.Targets(out, plan.Source, plan.Targets(a.settings.Location), a.settings.Location)
				return nil
			}
			day, err := a.parseDay(date)
			if err != nil {
				return err
			}
			if km, ok := plan.TargetFor(day); ok {
				fmt.Fprintf(out, "%s: %.0f km\n", day, km)
			} else {
				fmt.Fprintf(out, "%s: rest\n", day)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to look up, YYYY-MM-DD")
	topLevel.AddCommand(cmd)
}

func addProgress(topLevel *cobra.Command, a *app) {
	po := &periodOptions{}
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show weight and distance goal progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := po.resolve(a)
			if err != nil {
				return err
			}
			snap, err := a.load(cmd)
			if err != nil {
				return err
			}
			goals := a.settings.Goals
			loc := a.settings.Location

			current := goals.StartWeight
			if latest, ok := calendar.LatestWeight(snap.WeightEntries); ok {
				current = latest.Weight
			}
			var monthly *calendar.WeightProgress
			if mp, ok := calendar.MonthlyWeightProgress(snap.WeightEntries, year, month, goals.MonthlyWeightLoss, loc); ok {
				monthly = &mp
			}
			render.Progress(cmd.OutOrStdout(),
				calendar.NewWeightProgress(goals.StartWeight, goals.TargetWeight, current),
				monthly,
				calendar.NewDistanceProgress(calendar.YearlySummary(snap.ActivityEntries, year, loc).TotalDistance, goals.DistanceGoalKm),
			)
			return nil
		},
	}
	addPeriodArgs(cmd, po)
	topLevel.AddCommand(cmd)
}

func addCountdown(topLevel *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "countdown",
		Short: "Show time left in the configured countdown window",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.settings
			if s.CountdownStart.IsZero() || s.CountdownEnd.IsZero() {
				return errors.New("countdown_start and countdown_end must be configured")
			}
			render.Countdown(cmd.OutOrStdout(), calendar.Countdown(s.CountdownStart, s.CountdownEnd, a.now(), s.Location))
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}
