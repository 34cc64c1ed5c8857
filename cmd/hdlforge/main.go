package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hdlforge/internal/agents"
	"hdlforge/internal/budget"
	"hdlforge/internal/config"
	"hdlforge/internal/logging"
	"hdlforge/internal/slm"
	"hdlforge/internal/state"
	"hdlforge/internal/store"
	"hdlforge/internal/taskio"
	"hdlforge/internal/toolchain"
	"hdlforge/internal/workflow"
)

var version = "0.3.0"

var (
	verbose   bool
	workspace string
	mode      string
	planPlain bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hdlforge",
	Short: "hdlforge - budget-bounded Verilog generation agent",
	Long: `hdlforge drives a small language model through a planner/specialist
loop to generate, validate and test Verilog modules. Every agent call costs
one invocation from a fixed budget; the session stops at the target quality
tier, on budget exhaustion, or on a wall-clock timeout, whichever comes
first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run [task-dir]",
	Short: "Run one generation session for a task directory",
	Long: `Loads prompt.json from the task directory, scans its docs/, rtl/ and
verif/ subdirectories for context, and runs a session. The best candidate is
written to the task's target file even when the session falls short.`,
	Args: cobra.ExactArgs(1),
	RunE: runSession,
}

var watchCmd = &cobra.Command{
	Use:   "watch [task-dir]",
	Short: "Watch a task directory and rerun on prompt changes",
	Args:  cobra.ExactArgs(1),
	RunE:  watchTask,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent session outcomes",
	RunE:  showHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hdlforge %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace directory")
	runCmd.Flags().StringVarP(&mode, "mode", "m", "", "control loop mode: react or iterative")
	runCmd.Flags().BoolVar(&planPlain, "rule-planner", false, "use the deterministic rule planner instead of the model")
	watchCmd.Flags().StringVarP(&mode, "mode", "m", "", "control loop mode: react or iterative")
	historyCmd.Flags().IntP("limit", "n", 20, "number of sessions to show")

	rootCmd.AddCommand(runCmd, watchCmd, historyCmd, versionCmd)
}

// buildEngine wires the full agent stack from config.
func buildEngine(cfg *config.Config) *workflow.Engine {
	client := slm.NewClient(slm.Config{
		Endpoint:  cfg.API.Endpoint,
		APIKey:    cfg.API.APIKey,
		Model:     cfg.API.Model,
		MaxTokens: cfg.API.MaxTokens,
		Timeout:   time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		Retry: slm.RetryPolicy{
			MaxAttempts: cfg.API.MaxAttempts,
			BaseDelay:   time.Duration(cfg.API.BaseDelayMS) * time.Millisecond,
			Multiplier:  cfg.API.Multiplier,
		},
	})

	mgr := budget.NewManager(cfg.Budget.MaxInvocations)
	var policy agents.PlannerPolicy = agents.NewSLMPolicy(client, mgr)
	if planPlain {
		policy = agents.RulePolicy{}
	}

	executor := toolchain.NewExecutor(
		toolchain.NewSimulator(time.Duration(cfg.Toolchain.SimTimeoutSeconds)*time.Second),
		toolchain.NewLinter(time.Duration(cfg.Toolchain.LintTimeoutSeconds)*time.Second),
	)

	return workflow.NewEngine(
		agents.NewPlanner(policy),
		agents.NewGenerator(client),
		agents.NewValidator(),
		agents.NewTester(executor),
		agents.NewAnalyzer(),
		workflow.Options{
			MaxInvocations: cfg.Budget.MaxInvocations,
			MaxDuration:    time.Duration(cfg.Budget.MaxTimeSeconds) * time.Second,
			ExitOnTier3:    cfg.Budget.ExitOnTier3,
		},
	)
}

func sessionMode(cfg *config.Config) (workflow.Mode, error) {
	if mode != "" {
		return workflow.ParseMode(mode)
	}
	return workflow.ParseMode(cfg.Mode)
}

func executeTask(ctx context.Context, cfg *config.Config, taskDir string) (*state.SessionState, error) {
	task, err := taskio.Load(taskDir)
	if err != nil {
		return nil, err
	}

	m, err := sessionMode(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("starting session",
		zap.String("task", task.Description),
		zap.String("mode", string(m)),
		zap.Int("budget", cfg.Budget.MaxInvocations))

	s, err := buildEngine(cfg).RunMode(ctx, m, task)
	if err != nil {
		return nil, err
	}

	logger.Info("session finished",
		zap.String("session", s.SessionID),
		zap.Bool("success", s.Success),
		zap.Int("tier", int(s.CurrentTier)),
		zap.Int("invocations", s.Invocations),
		zap.String("result", s.FinalMessage))

	if hs, err := store.Open(cfg.StorePath); err == nil {
		defer hs.Close()
		if err := hs.Save(s); err != nil {
			logger.Warn("could not record session history", zap.Error(err))
		}
	} else {
		logger.Warn("history store unavailable", zap.Error(err))
	}

	return s, nil
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := executeTask(ctx, cfg, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("session %s: %s\n", s.SessionID, s.FinalMessage)
	if s.BestCode != "" {
		fmt.Printf("best candidate written to %s\n", s.Task.TargetFile)
	}
	if !s.Success {
		os.Exit(1)
	}
	return nil
}

func watchTask(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := func() {
		if s, err := executeTask(ctx, cfg, args[0]); err != nil {
			logger.Error("session failed", zap.Error(err))
		} else {
			fmt.Printf("session %s: %s\n", s.SessionID, s.FinalMessage)
		}
	}

	run()
	err = taskio.Watch(ctx, args[0], run)
	if err == context.Canceled {
		return nil
	}
	return err
}

func showHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	hs, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer hs.Close()

	recs, err := hs.Recent(limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}

	for _, r := range recs {
		status := "FAIL"
		if r.Success {
			status = "PASS"
		}
		fmt.Printf("%s  %s  tier=%d  inv=%d  %v  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			status, r.Tier, r.Invocations, r.Elapsed.Round(time.Second), r.Task)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
