package main

import (
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"github.com/epochish/klarita/internal/logging"
	"github.com/epochish/klarita/internal/prefs"
	"github.com/epochish/klarita/internal/trainer"
	"github.com/spf13/cobra"
)

func randSeed() int64 {
	return time.Now().UnixNano()
}

// #region recommend

func newRecommendCmd() *cobra.Command {
	var userID int64
	var goal string

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Select a personalization action for a goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			action, proposal, err := rt.engine.Recommend(userID, goal)
			if err != nil {
				return err
			}

			fmt.Printf("session %d | state %s\n", proposal.SessionID, proposal.State.Key())
			fmt.Printf("  breakdown:     %s\n", action.BreakdownStyle)
			fmt.Printf("  task duration: %d min\n", action.TaskDuration)
			fmt.Printf("  communication: %s\n", action.CommunicationStyle)
			fmt.Printf("  task count:    %d\n", action.TaskCount)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&goal, "goal", "", "goal text to break down")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("goal")
	return cmd
}

// #endregion recommend

// #region feedback

func newFeedbackCmd() *cobra.Command {
	var sessionID int64
	var rating int

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Apply a session rating to the Q-table",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			proposal, err := rt.engine.ProposalFromSession(sessionID)
			if err != nil {
				return err
			}
			if proposal == nil {
				fmt.Println("session has no recorded proposal; nothing to learn")
				return nil
			}

			if _, err := rt.store.AddFeedback(proposal.UserID, sessionID, rating, time.Now().UTC()); err != nil {
				return err
			}
			if err := rt.engine.SubmitFeedback(proposal, sessionID, rating); err != nil {
				return err
			}

			fmt.Printf("applied rating %d to %s / %s (q now %.4f)\n",
				rating, proposal.State.Key(), proposal.Action.Key(),
				rt.table.Get(proposal.State, proposal.Action))
			return nil
		},
	}

	cmd.Flags().Int64Var(&sessionID, "session", 0, "session id")
	cmd.Flags().IntVar(&rating, "rating", 0, "rating 1-5")
	cmd.MarkFlagRequired("session")
	cmd.MarkFlagRequired("rating")
	return cmd
}

// #endregion feedback

// #region insights

func newInsightsCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show learned patterns for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			insights := rt.engine.Insights(userID)
			if len(insights) == 0 {
				fmt.Println("no learned patterns yet")
				return nil
			}
			for _, ins := range insights {
				fmt.Printf("[%.0f%%] %s\n    %s\n    tip: %s\n",
					ins.Confidence, ins.Title, ins.Description, ins.ActionableTip)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.MarkFlagRequired("user")
	return cmd
}

// #endregion insights

// #region train

func newTrainCmd() *cobra.Command {
	var format string
	var outPath string
	var cronGated bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run the nightly batch training pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if cronGated {
				due, err := gronx.New().IsDue(rt.cfg.TrainSchedule, time.Now())
				if err != nil {
					return fmt.Errorf("check schedule: %w", err)
				}
				if !due {
					fmt.Printf("schedule %q not due, skipping\n", rt.cfg.TrainSchedule)
					return nil
				}
			}

			tconfig := trainer.DefaultConfig()
			tconfig.MinInteractions = rt.cfg.MinInteractions
			tr := trainer.New(rt.store, rt.table, rt.snaps, tconfig, nil)

			report, err := tr.Run()
			if err != nil {
				return err
			}

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create report file: %w", err)
				}
				defer f.Close()
				out = f
			}

			switch format {
			case "yaml":
				return report.WriteYAML(out)
			case "json":
				return report.WriteJSON(out)
			default:
				return fmt.Errorf("unknown format %q (want json or yaml)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "report format: json or yaml")
	cmd.Flags().StringVar(&outPath, "out", "", "write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&cronGated, "cron", false, "only run when KLARITA_TRAIN_SCHEDULE is due")
	return cmd
}

// #endregion train

// #region inspect

func newInspectCmd() *cobra.Command {
	var userID int64
	var last int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump learned states and recent decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			states := rt.table.States()
			shown := 0
			for _, st := range states {
				if userID != 0 && st.UserID != userID {
					continue
				}
				best, value, ok := rt.table.BestFor(st)
				if !ok {
					continue
				}
				fmt.Printf("%-40s visits=%-4d best=%s q=%.4f\n",
					st.Key(), rt.table.Visits(st), best.Key(), value)
				shown++
			}
			if shown == 0 {
				fmt.Println("no learned states")
			}

			if userID != 0 {
				decisions, err := logging.RecentDecisions(rt.store.DB(), userID, last)
				if err != nil {
					return err
				}
				if len(decisions) > 0 {
					fmt.Println("\nrecent decisions:")
				}
				for _, d := range decisions {
					line := fmt.Sprintf("  %s %-9s %s / %s",
						d.CreatedAt.Format(time.RFC3339), d.TriggerType, d.StateKey, d.ActionKey)
					if d.HasReward {
						line += fmt.Sprintf(" reward=%.3f", d.Reward)
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "filter to one user and show their decision log")
	cmd.Flags().IntVar(&last, "last", 20, "decision log entries to show")
	return cmd
}

// #endregion inspect

// #region prefs

func newPrefsCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Recompute and show a user's breakdown preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			store, err := prefs.NewStore(rt.store.DB())
			if err != nil {
				return err
			}
			p, err := store.Refresh(rt.store, userID, time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("breakdown style: %s\n", p.BreakdownStyle)
			if p.PreferredTaskDuration != nil {
				fmt.Printf("preferred duration: %d min\n", *p.PreferredTaskDuration)
			} else {
				fmt.Println("preferred duration: not enough rated sessions yet")
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.MarkFlagRequired("user")
	return cmd
}

// #endregion prefs
