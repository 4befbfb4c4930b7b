package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/groveapp/grove/pkg/xp"
)

var xpCmd = &cobra.Command{
	Use:   "xp",
	Short: "Show XP total, level and recent events",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		total, level, err := a.coord.TotalXP(a.userID)
		if err != nil {
			return err
		}
		fmt.Printf("Level %d, %d XP (%d to next level)\n\n",
			level, total, level*xp.XpPerLevel-total)

		evs, err := a.store.ListXpEventsByUser(a.userID)
		if err != nil {
			return err
		}
		if len(evs) == 0 {
			return nil
		}
		sort.Slice(evs, func(i, j int) bool { return evs[i].EarnedAt.After(evs[j].EarnedAt) })

		limit, _ := cmd.Flags().GetInt("limit")
		if len(evs) > limit {
			evs = evs[:limit]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tTYPE\tAMOUNT")
		for _, ev := range evs {
			fmt.Fprintf(w, "%s\t%s\t%+d\n", ev.EarnedAt.Format("2006-01-02 15:04"), ev.Type, ev.Amount)
		}
		return w.Flush()
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Claim the daily login bonus",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		awarded, err := a.coord.DailyLogin(a.userID)
		if err != nil {
			return err
		}
		if !awarded {
			fmt.Println("Daily login bonus already claimed today.")
			return nil
		}
		fmt.Printf("✓ Daily login bonus: +%d XP\n", xp.AwardDailyLogin)
		return nil
	},
}

var adCmd = &cobra.Command{
	Use:   "ad",
	Short: "Claim a rewarded-ad bonus",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		awarded, err := a.coord.RewardedAd(a.userID)
		if err != nil {
			return err
		}
		if !awarded {
			fmt.Println("Rewarded-ad cap reached for today.")
			return nil
		}
		fmt.Printf("✓ Rewarded ad: +%d XP\n", xp.AwardRewardedAd)
		return nil
	},
}

func init() {
	xpCmd.Flags().Int("limit", 15, "Number of recent events to show")
}
