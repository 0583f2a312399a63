package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"heroai-go/core"
	"heroai-go/game"
	"heroai-go/sim"
	"heroai-go/store"
	"heroai-go/web"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "heroai",
	Short:         "Turn planner for AI players of a hero strategy match",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var planCmd = &cobra.Command{
	Use:   "plan <scenario.yaml>",
	Short: "Play a scenario for a number of days and print the decisions",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

var serveCmd = &cobra.Command{
	Use:   "serve <scenario.yaml>",
	Short: "Play a scenario continuously behind the status page",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

var generateCmd = &cobra.Command{
	Use:   "generate <out.yaml>",
	Short: "Generate a random scenario",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	planCmd.Flags().Int("days", 1, "number of days to play")
	planCmd.Flags().String("reports", "", "directory to write per-day JSON reports and the final snapshot to")

	serveCmd.Flags().Int("days", 0, "number of days to play, 0 for no limit")
	serveCmd.Flags().Duration("interval", 2*time.Second, "time between two days")
	serveCmd.Flags().Bool("paused", false, "start paused")

	gen := sim.DefaultGenConfig()
	generateCmd.Flags().Int("width", gen.Width, "map width")
	generateCmd.Flags().Int("height", gen.Height, "map height")
	generateCmd.Flags().Int64("seed", 0, "noise seed, 0 for random")
	generateCmd.Flags().Int("players", gen.Players, "number of AI players")
	generateCmd.Flags().Int("objects", gen.Objects, "number of map objects")

	rootCmd.AddCommand(planCmd, serveCmd, generateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// session bundles what the plan and serve commands share.
type session struct {
	name    string
	config  *core.Config
	logger  *zap.Logger
	bot     *Bot
	journal *store.Journal
}

func (s *session) Close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn("failed to close journal", zap.Error(err))
		}
	}
	s.logger.Sync()
}

func newSession(scenarioPath string, files *core.FileManager) (*session, error) {
	cm, err := core.NewConfigManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config := cm.GetConfig()

	level := config.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err := core.NewLogger(level)
	if err != nil {
		return nil, err
	}

	scenario, err := sim.LoadScenario(scenarioPath)
	if err != nil {
		return nil, err
	}
	world, err := scenario.Build(logger.Named("sim"))
	if err != nil {
		return nil, fmt.Errorf("failed to build scenario %s: %w", scenarioPath, err)
	}

	s := &session{name: scenario.Name, config: config, logger: logger}
	opts := BotOptions{Files: files}
	if config.Journal.Enabled {
		s.journal, err = store.Open(config.Journal.Path, logger)
		if err != nil {
			return nil, err
		}
		opts.Recorder = s.journal
	}

	s.bot, err = NewBot(world, config, opts, logger.Named("bot"))
	if err != nil {
		s.Close()
		return nil, err
	}
	logger.Info("scenario loaded", zap.String("name", scenario.Name), zap.Int("day", world.Day()))
	return s, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")
	reportDir, _ := cmd.Flags().GetString("reports")

	var files *core.FileManager
	if reportDir != "" {
		files = core.NewFileManager(reportDir)
	}
	s, err := newSession(args[0], files)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	for i := 0; i < days; i++ {
		reports, err := s.bot.PlayDay(cmd.Context())
		if err != nil {
			return err
		}
		for _, report := range reports {
			printReport(cmd, report)
		}
	}
	if files != nil {
		// the snapshot can be fed back to plan to continue the match
		if err := files.SaveYAMLFile(s.bot.World.Snapshot(s.name), "final.yaml"); err != nil {
			return err
		}
	}

	if s.journal != nil {
		for _, player := range s.bot.players {
			summary, err := s.journal.Summary(cmd.Context(), player)
			if err != nil {
				return err
			}
			for _, k := range summary {
				fmt.Fprintf(out, "player %d %-14s completed %d aborted %d\n", player, k.Kind, k.Completed, k.Aborted)
			}
		}
	}
	return nil
}

func printReport(cmd *cobra.Command, report *game.TurnReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "day %d player %d: %d passes, %d decisions\n", report.Day, report.Player, report.Passes, len(report.Decisions))
	for _, d := range report.Decisions {
		line := fmt.Sprintf("  %-9s %.4f %s", d.Outcome, d.Priority, d.Goal)
		if d.Reason != "" {
			line += " (" + d.Reason + ")"
		}
		fmt.Fprintln(out, line)
	}
	for hero, reason := range report.Locked {
		fmt.Fprintf(out, "  hero %d locked: %s\n", hero, reason)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")
	interval, _ := cmd.Flags().GetDuration("interval")
	paused, _ := cmd.Flags().GetBool("paused")

	s, err := newSession(args[0], nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if paused {
		s.bot.Pause()
	}
	hub := web.NewHub(s.bot, s.logger)
	s.bot.SetHub(hub)
	server := web.NewServer(s.bot, hub, s.logger)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe(ctx, s.config.WebManager.Host, s.config.WebManager.Port)
	})
	g.Go(func() error {
		err := s.bot.Run(ctx, days, interval)
		if days > 0 && err == nil {
			// keep serving the final state until interrupted
			<-ctx.Done()
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := sim.DefaultGenConfig()
	cfg.Width, _ = cmd.Flags().GetInt("width")
	cfg.Height, _ = cmd.Flags().GetInt("height")
	cfg.Seed, _ = cmd.Flags().GetInt64("seed")
	cfg.Players, _ = cmd.Flags().GetInt("players")
	cfg.Objects, _ = cmd.Flags().GetInt("objects")

	scenario, err := sim.Generate(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate scenario: %w", err)
	}
	if err := sim.WriteScenario(args[0], scenario); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, %d players)\n", args[0], cfg.Width, cfg.Height, len(scenario.Players))
	return nil
}
