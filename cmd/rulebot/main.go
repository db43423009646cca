package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zephyrtronium/rulebot/expr"
	"github.com/zephyrtronium/rulebot/internal/config"
	"github.com/zephyrtronium/rulebot/internal/logging"
	"github.com/zephyrtronium/rulebot/internal/repl"
)

// app holds state shared by subcommands.
type app struct {
	// Global flags
	configPath  string
	historyPath string
	verbose     bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "rulebot",
		Short: "rulebot - a rule-based chatbot with a safe calculator",
		Long: `rulebot is a small conversational program: canned responses, slash
commands, a restricted arithmetic evaluator, and a mini quiz.

Run without arguments to start the interactive chat.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.chat(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "rulebot.yaml", "Config file (defaults apply if missing)")
	rootCmd.PersistentFlags().StringVar(&a.historyPath, "history", "", "History file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(newEvalCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	return rootCmd
}

// setup loads configuration and initializes the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.historyPath != "" {
		cfg.History.File = a.historyPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Logging, a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug("config loaded", zap.String("path", a.configPath), zap.String("history", cfg.History.File))
	return nil
}

// chat runs the interactive loop until exit, end of input, or interrupt.
func (a *app) chat(cmd *cobra.Command) error {
	s, err := repl.New(a.cfg, cmd.InOrStdin(), cmd.OutOrStdout(), repl.WithLogger(a.logger))
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

func newEvalCmd(a *app) *cobra.Command {
	var (
		verb string
		prec uint
		echo bool
	)
	evalCmd := &cobra.Command{
		Use:   "eval [expr...]",
		Short: "Evaluate arithmetic expressions",
		Long: `Evaluate each argument as an expression. With no arguments, evaluate each
non-blank line of standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("fmt") {
				verb = a.cfg.Calc.Format
			}
			if !cmd.Flags().Changed("prec") {
				prec = a.cfg.Calc.Prec
			}
			if prec < expr.MinPrec {
				return fmt.Errorf("precision must be at least %d bits, got %d", expr.MinPrec, prec)
			}
			return evaluate(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args, verb, prec, echo, a.logger)
		},
	}
	evalCmd.Flags().StringVar(&verb, "fmt", "%g", "Result formatting string")
	evalCmd.Flags().UintVarP(&prec, "prec", "p", 64, "Precision of calculations in bits")
	evalCmd.Flags().BoolVar(&echo, "echo", false, "Print parse trees")
	return evalCmd
}

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		// The file may be missing or invalid here, so skip loading it.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Long: `Write the default configuration to path, or to the --config file if no path
is given. An existing file is kept unless --force is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(initCmd)
	return configCmd
}

// evaluate prints the result of each expression, or its error. The returned
// error reports how many expressions failed.
func evaluate(ctx context.Context, in io.Reader, out io.Writer, args []string, verb string, prec uint, echo bool, logger *zap.Logger) error {
	srcs := args
	if len(srcs) == 0 {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			if s := strings.TrimSpace(sc.Text()); s != "" {
				srcs = append(srcs, s)
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}

	ec := expr.NewContext(expr.Prec(prec))
	verb += "\n"
	failed := 0
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := expr.ParseString(src)
		if err != nil {
			fmt.Fprintln(out, err)
			failed++
			continue
		}
		if echo {
			fmt.Fprintf(out, "%v : ", e)
		}
		if _, err := ec.Eval(e); err != nil {
			fmt.Fprintln(out, err)
			failed++
			continue
		}
		fmt.Fprintf(out, verb, ec.Result())
	}
	if failed > 0 {
		logger.Debug("evaluation errors", zap.Int("failed", failed), zap.Int("total", len(srcs)))
		return fmt.Errorf("%d of %d expressions failed", failed, len(srcs))
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
