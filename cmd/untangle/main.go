package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"untangle/internal/analysis"
	"untangle/internal/config"
	"untangle/internal/divide"
	"untangle/internal/logging"
	"untangle/internal/metrics"
	"untangle/internal/model"
	"untangle/internal/pipeline"
	"untangle/internal/refactor"
	"untangle/internal/storage"
	"untangle/internal/vcs"
	"untangle/internal/worddiff"
)

// exitAborted is the status used when a faulted analysis is abandoned.
const exitAborted = 2

var (
	rootCmd = &cobra.Command{
		Use:           "untangle",
		Short:         "Split tangled Java commits into independent groups of hunks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
	dotDir     string
	workers    int
	force      bool
	branch     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "untangle.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&dotDir, "dot-dir", "", "Directory receiving DOT dumps of the graphs")
	runCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Commit pairs analysed in parallel (overrides the config)")

	datasetCmd.Flags().BoolVarP(&force, "force", "f", false, "Rewrite datasets that already exist")
	datasetCmd.Flags().StringVarP(&branch, "branch", "b", "", "History to mine (defaults to HEAD)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(dirsCmd)
	rootCmd.AddCommand(datasetCmd)
}

// setup loads the configuration and installs the logger.
func setup() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, closer, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}

// clusterFactory wires the configured collaborators into every cluster.
func clusterFactory(cfg *config.Config, logger *slog.Logger) (pipeline.ClusterFactory, error) {
	differ, err := worddiff.New(cfg.Analysis.WordDiff, cfg.Paths.Temp, logger)
	if err != nil {
		return nil, err
	}
	var detector refactor.Detector = refactor.Nop{}
	if cfg.Refactoring.Enabled {
		detector = refactor.NewMiner(cfg.Refactoring.Command, cfg.Paths.Temp, logger)
	}
	builder := analysis.NewBuilder(analysis.Options{StrictParse: cfg.Analysis.StrictParse, Logger: logger})

	return func(timer *divide.Timer) *divide.Cluster {
		return divide.New(divide.Options{
			Differ:         differ,
			Builder:        builder,
			Detector:       detector,
			CloneThreshold: cfg.Analysis.CloneThreshold,
			GracePeriod:    cfg.Analysis.GracePeriod,
			Abort: func() {
				logger.Error("analysis abandoned after a worker fault, exiting")
				os.Exit(exitAborted)
			},
			Timer:  timer,
			DotDir: dotDir,
			Logger: logger,
		})
	}, nil
}

var runCmd = &cobra.Command{
	Use:   "run <repo>...",
	Short: "Analyse the dataset of each repository and write groups and logs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg, logger, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()
		if workers > 0 {
			cfg.Analysis.Workers = workers
		}

		factory, err := clusterFactory(cfg, logger)
		if err != nil {
			return err
		}
		store, err := storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()
		recorder := metrics.NewRecorder()

		batch := pipeline.NewBatch(pipeline.Options{
			Projects:   cfg.Paths.Projects,
			Dataset:    cfg.Paths.Dataset,
			Output:     cfg.Paths.Output,
			Temp:       cfg.Paths.Temp,
			Workers:    cfg.Analysis.Workers,
			OnlyDiff:   cfg.Analysis.OnlyDiff,
			NewCluster: factory,
			Store:      store,
			Metrics:    recorder,
			Logger:     logger,
		})
		for _, repo := range args {
			summary, err := batch.Run(ctx, repo)
			if err != nil {
				return fmt.Errorf("%s: %w", repo, err)
			}
			fmt.Printf("%s: %d cases, %d failed, average %dms (run %s)\n",
				repo, summary.Cases, summary.Failures, summary.Average().Milliseconds(), summary.RunID)
		}

		if cfg.Metrics.File != "" {
			if err := recorder.WriteFile(cfg.Metrics.File); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
		}
		return nil
	},
}

var pairCmd = &cobra.Command{
	Use:   "pair <repo-dir> <before> <after>",
	Short: "Analyse a single pair of revisions and print its groups",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()

		repo, err := vcs.Open(args[0], logger)
		if err != nil {
			return err
		}
		diff, err := repo.Diff(cmd.Context(), args[1], args[2], cfg.Paths.Temp, vcs.Options{OnlyDiff: cfg.Analysis.OnlyDiff})
		if err != nil {
			return err
		}
		defer diff.Cleanup()
		return analyzeOne(cmd.Context(), cfg, logger, diff, cmd.OutOrStdout())
	},
}

var dirsCmd = &cobra.Command{
	Use:   "dirs <before-dir> <after-dir>",
	Short: "Analyse two source trees and print their groups",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()

		diff, err := vcs.FromDirectories(args[0], args[1])
		if err != nil {
			return err
		}
		return analyzeOne(cmd.Context(), cfg, logger, diff, cmd.OutOrStdout())
	},
}

var datasetCmd = &cobra.Command{
	Use:   "dataset <repo>...",
	Short: "Mine composite commits from each repository's history into its dataset",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg, logger, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()

		opts := pipeline.DatasetOptions{
			Projects: cfg.Paths.Projects,
			Dataset:  cfg.Paths.Dataset,
			Chains:   vcs.DefaultChainOptions(),
			Force:    force,
			Logger:   logger,
		}
		opts.Chains.Branch = branch
		for _, repo := range args {
			n, err := pipeline.MineDataset(ctx, opts, repo)
			if errors.Is(err, pipeline.ErrDatasetExists) {
				fmt.Printf("%s: dataset exists, skipped\n", repo)
				continue
			}
			if err != nil {
				return fmt.Errorf("%s: %w", repo, err)
			}
			fmt.Printf("%s: %d cases\n", repo, n)
		}
		return nil
	},
}

func analyzeOne(ctx context.Context, cfg *config.Config, logger *slog.Logger, diff *model.Diff, out io.Writer) error {
	factory, err := clusterFactory(cfg, logger)
	if err != nil {
		return err
	}
	timer := divide.NewTimer()
	entry, _, err := pipeline.Pair(ctx, factory(timer), diff)
	if err != nil {
		return fmt.Errorf("analysis failed (%s): %w", divide.Reason(err), err)
	}
	logger.Info("pair analysed", "patches", len(diff.Patches()), "groups", len(entry.Groups), "timings", timer.String())

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(entry)
}
