package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/xp"
)

var doneCmd = &cobra.Command{
	Use:   "done NAME",
	Short: "Record a habit completion for today",
	Long: `Record that a habit was completed now. Completing the same habit
twice in one logical day is a no-op; days roll over after the configured
grace period past midnight, so a 00:45 completion counts toward yesterday.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		habit, err := habitByName(a, args[0])
		if err != nil {
			return err
		}

		notes, _ := cmd.Flags().GetString("notes")
		res, err := a.coord.CompleteHabit(a.userID, habit.ID, notes)
		if err != nil {
			return err
		}

		if !res.Created {
			fmt.Printf("Already done today (%s).\n", res.Record.LogicalDate)
			return nil
		}

		fmt.Printf("✓ %s done. Streak: %d (%s). +%d XP\n",
			habit.Name, res.Snapshot.CurrentStreak, res.Snapshot.GrowthTier, res.XpAwarded)
		if res.Milestone != "" {
			fmt.Printf("  ★ Streak milestone reached! +%d XP\n", xp.Amount(res.Milestone))
		}
		if res.AllDailyBonus {
			fmt.Printf("  ★ All habits done today! +%d XP\n", xp.AwardAllDailyBonus)
		}
		if res.LeveledUp {
			fmt.Printf("  ↑ Level up! You are now level %d\n", res.Level)
		}
		if res.SyncBacklogged {
			fmt.Fprintln(os.Stderr, "Warning: sync queue is over capacity")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [NAME]",
	Short: "Show today's progress",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if len(args) == 1 {
			return habitStatus(a, args[0])
		}
		return overallStatus(a)
	},
}

func habitStatus(a *app, name string) error {
	habit, err := habitByName(a, name)
	if err != nil {
		return err
	}
	snap, err := a.coord.Progress(habit.ID)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", habit.Name, formatSchedule(habit.ScheduledDays))
	fmt.Printf("  Streak:      %d (longest %d)\n", snap.CurrentStreak, snap.LongestStreak)
	fmt.Printf("  Growth:      %s\n", snap.GrowthTier)
	fmt.Printf("  Decay:       %s\n", snap.DecayTier)
	if snap.RecoveryRemaining > 0 {
		fmt.Printf("  Recovery:    %d more completion(s) to healthy\n", snap.RecoveryRemaining)
	}
	if snap.LastCompletionLogicalDate != nil {
		fmt.Printf("  Last done:   %s\n", *snap.LastCompletionLogicalDate)
	}
	fmt.Printf("  Completions: %d\n", snap.TotalCompletions)
	return nil
}

func overallStatus(a *app) error {
	condition, rate, err := a.coord.Weather(a.userID)
	if err != nil {
		return err
	}
	total, level, err := a.coord.TotalXP(a.userID)
	if err != nil {
		return err
	}

	fmt.Printf("Weather: %s (%.0f%% of today's habits done)\n", condition, rate*100)
	fmt.Printf("Level %d, %d XP\n\n", level, total)

	habits, err := a.store.ListHabits(a.userID)
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		fmt.Println("No habits yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTODAY\tSTREAK\tDECAY")
	for _, h := range habits {
		snap, err := a.coord.Progress(h.ID)
		if err != nil {
			return err
		}
		today := "-"
		if snap.LastCompletionLogicalDate != nil && *snap.LastCompletionLogicalDate == todayFor(a) {
			today = "✓"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", h.Name, today, snap.CurrentStreak, snap.DecayTier)
	}
	return w.Flush()
}

func todayFor(a *app) dates.LogicalDate {
	loc, _ := a.cfg.Location()
	norm := dates.Normalizer{Grace: a.cfg.Dates.GracePeriod, Location: loc}
	return norm.Today(time.Now())
}

func init() {
	doneCmd.Flags().String("notes", "", "Optional note attached to the completion")
}
