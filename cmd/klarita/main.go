package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/epochish/klarita/internal/config"
	"github.com/epochish/klarita/internal/engine"
	"github.com/epochish/klarita/internal/policy"
	"github.com/epochish/klarita/internal/qtable"
	"github.com/epochish/klarita/internal/snapshot"
	"github.com/epochish/klarita/internal/taskstore"
	"github.com/spf13/cobra"
)

// #region main

func main() {
	root := &cobra.Command{
		Use:   "klarita",
		Short: "Adaptive learning engine for Klarita goal breakdowns",
		Long: `klarita runs the reinforcement-learning personalization subsystem:
recommending breakdown policies, applying session feedback to the Q-table,
and running the nightly batch trainer.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRecommendCmd(),
		newFeedbackCmd(),
		newInsightsCmd(),
		newTrainCmd(),
		newInspectCmd(),
		newPrefsCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region runtime

// runtime bundles the stores and engine a subcommand works against.
type runtime struct {
	cfg    *config.Config
	store  *taskstore.Store
	snaps  *snapshot.Store
	table  *qtable.Table
	engine *engine.Engine
}

// openRuntime loads config, opens the database, and rebuilds the Q-table
// from the latest snapshot. A corrupt snapshot degrades to an empty table.
func openRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := taskstore.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	snaps, err := snapshot.NewStore(store.DB())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open snapshots: %w", err)
	}

	qconfig := qtable.Config{
		LearningRate:   cfg.LearningRate,
		DiscountFactor: cfg.DiscountFactor,
		HistorySize:    cfg.HistorySize,
	}
	table, err := snaps.LoadTable(qconfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: snapshot unreadable, starting empty: %v\n", err)
	}

	eng := engine.New(engine.Deps{
		Store:     store,
		Table:     table,
		Selector:  policy.NewSelector(cfg.Epsilon, rand.New(rand.NewSource(randSeed()))),
		Snapshots: snaps,
	})

	return &runtime{cfg: cfg, store: store, snaps: snaps, table: table, engine: eng}, nil
}

func (r *runtime) close() {
	r.store.Close()
}

// #endregion runtime
