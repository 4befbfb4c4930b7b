package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/groveapp/grove/pkg/errdefs"
	"github.com/groveapp/grove/pkg/types"
)

var habitCmd = &cobra.Command{
	Use:   "habit",
	Short: "Manage habits",
}

var habitAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a new habit",
	Long: `Create a new habit. By default the habit is scheduled every day;
use --days to restrict it to specific weekdays, e.g. --days mon,wed,fri.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		daysFlag, _ := cmd.Flags().GetString("days")
		days, err := parseWeekdays(daysFlag)
		if err != nil {
			return err
		}

		habit, err := a.coord.CreateHabit(a.userID, args[0], days)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Created habit %q (%s)\n", habit.Name, habit.ID)
		return nil
	},
}

var habitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List habits with their progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		habits, err := a.store.ListHabits(a.userID)
		if err != nil {
			return err
		}
		if len(habits) == 0 {
			fmt.Println("No habits yet. Create one with 'grove habit add NAME'.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSCHEDULE\tSTREAK\tLONGEST\tGROWTH\tDECAY\tCOMPLETIONS")
		for _, h := range habits {
			snap, err := a.coord.Progress(h.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%d\n",
				h.Name, formatSchedule(h.ScheduledDays),
				snap.CurrentStreak, snap.LongestStreak,
				snap.GrowthTier, snap.DecayTier, snap.TotalCompletions)
		}
		return w.Flush()
	},
}

var habitRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Delete a habit and its history",
	Args:  cobra.ExactArgs(1),
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
		if err := a.coord.DeleteHabit(habit.ID); err != nil {
			return err
		}

		fmt.Printf("✓ Removed habit %q\n", habit.Name)
		return nil
	},
}

func init() {
	habitCmd.AddCommand(habitAddCmd)
	habitCmd.AddCommand(habitListCmd)
	habitCmd.AddCommand(habitRemoveCmd)

	habitAddCmd.Flags().String("days", "", "Comma-separated weekdays (mon,tue,...); empty means every day")
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

func parseWeekdays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(part))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, wd)
	}
	return days, nil
}

func formatSchedule(days []time.Weekday) string {
	if len(days) == 0 {
		return "daily"
	}
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = strings.ToLower(d.String()[:3])
	}
	return strings.Join(names, ",")
}

func habitByName(a *app, name string) (*types.Habit, error) {
	habit, err := a.store.GetHabitByName(a.userID, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("no habit named %q", name)
		}
		return nil, err
	}
	return habit, nil
}
