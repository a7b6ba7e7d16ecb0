// Command madspark runs one MadSpark idea-refinement workflow from the
// terminal: a topic (and optional context) in, a ranked list of candidates
// out, printed as JSON to stdout while stage progress streams to stderr
// (spec.md §6's CLI surface).
//
// Adapted from the teacher's cmd/example, which wired a BaseAgent straight
// to os.Args with the standard library's flag package. MadSpark's surface
// has enough independent toggles (provider, tier, temperature preset, cache,
// fallback, health endpoint) that the teacher's approach wouldn't scale
// cleanly, so flag parsing here follows github.com/spf13/cobra instead, the
// idiom the rest of the retrieved pack uses for exactly this shape of
// problem (cmd/nerd in the codenerd repo).
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/madspark/madspark/madspark"
	"github.com/spf13/cobra"
)

// Exit codes (spec.md §6): 0 success, 2 usage error, 3 workflow error,
// 4 canceled.
const (
	exitSuccess     = 0
	exitUsageError  = 2
	exitWorkflowErr = 3
	exitCanceled    = 4
)

// usageErr marks an error that should surface as exitUsageError rather than
// the generic exitWorkflowErr, without forcing every caller along the way to
// know about exit codes.
type usageErr struct{ err error }

func (u *usageErr) Error() string { return u.err.Error() }
func (u *usageErr) Unwrap() error { return u.err }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)

	err := cmd.Execute()
	switch {
	case err == nil:
		return exitSuccess
	case isUsageErr(err):
		fmt.Fprintln(os.Stderr, "usage error:", err)
		return exitUsageError
	case madspark.IsCanceled(err):
		fmt.Fprintln(os.Stderr, "canceled:", err)
		return exitCanceled
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitWorkflowErr
	}
}

func isUsageErr(err error) bool {
	var u *usageErr
	return errors.As(err, &u)
}

// cliFlags holds every flag declared on the root command. Cobra populates
// these via pointers bound in newRootCmd(); runWorkflow reads them back once
// RunE fires.
type cliFlags struct {
	enhanced    bool
	logical     bool
	topIdeas    int
	tempPreset  string
	provider    string
	modelTier   string
	noCache     bool
	noFallback  bool
	enableCache bool
	configFile  string
	serveHealth bool
	devMode     bool
}

func newRootCmd() *cobra.Command {
	var flags cliFlags

	cmd := &cobra.Command{
		Use:   "madspark <topic> [context]",
		Short: "Refine an idea through MadSpark's generate-critique-improve pipeline",
		Long: "madspark runs one full Generate -> Evaluate -> Select -> Advocate -> Skeptic -> " +
			"Improve -> Re-evaluate -> Assemble workflow against the configured LLM provider, " +
			"printing the ranked candidates as JSON.",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.enhanced, "enhanced", false, "enable the Advocate/Skeptic/Logical-Inference stages")
	cmd.Flags().BoolVar(&flags.logical, "logical", false, "enable formal logical-inference critique (requires --enhanced)")
	cmd.Flags().IntVar(&flags.topIdeas, "top-ideas", 3, "number of top candidates to carry past selection")
	cmd.Flags().StringVar(&flags.tempPreset, "temperature-preset", "balanced", "sampling temperature preset: conservative, balanced, creative, wild")
	cmd.Flags().StringVar(&flags.provider, "provider", "", "primary AI provider override (gemini, ollama, mock)")
	cmd.Flags().StringVar(&flags.modelTier, "model-tier", "", "model tier override: fast, balanced, quality")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable the response cache for this run")
	cmd.Flags().BoolVar(&flags.noFallback, "no-fallback", false, "disable fallback-provider failover for this run")
	cmd.Flags().BoolVar(&flags.enableCache, "enable-cache", false, "force-enable the response cache, overriding config/env")
	cmd.Flags().StringVar(&flags.configFile, "config", "", "path to a YAML config file, applied over defaults/env before flags")
	cmd.Flags().BoolVar(&flags.serveHealth, "serve-health", false, "serve /healthz for the run's duration (spec.md telemetry surface)")
	cmd.Flags().BoolVar(&flags.devMode, "dev", false, "enable development-mode logging (pretty, debug level)")

	return cmd
}

func runWorkflow(cmd *cobra.Command, args []string, flags cliFlags) error {
	if flags.logical && !flags.enhanced {
		return &usageErr{fmt.Errorf("--logical requires --enhanced")}
	}
	if flags.noCache && flags.enableCache {
		return &usageErr{fmt.Errorf("--no-cache and --enable-cache are mutually exclusive")}
	}

	opts, err := flagsToOptions(flags)
	if err != nil {
		return &usageErr{err}
	}

	cfg, err := madspark.NewConfig(opts...)
	if err != nil {
		return &usageErr{fmt.Errorf("build config: %w", err)}
	}

	pipeline, err := madspark.New(cfg)
	if err != nil {
		return fmt.Errorf("construct pipeline: %w", err)
	}
	defer pipeline.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var stopHealth func()
	if flags.serveHealth {
		stopHealth, err = startHealthServer(cfg)
		if err != nil {
			return fmt.Errorf("start health server: %w", err)
		}
		defer stopHealth()
	}

	req := madspark.Request{
		Topic:             args[0],
		NumTopCandidates:  flags.topIdeas,
		TemperaturePreset: madspark.TemperaturePreset(flags.tempPreset),
		Enhanced:          flags.enhanced,
		Logical:           flags.logical,
	}
	if len(args) > 1 {
		req.Context = args[1]
	}

	result, err := pipeline.Run(ctx, req, func(evt madspark.ProgressEvent) {
		fmt.Fprintf(os.Stderr, "[%s] %s (%.0f%%) %s\n", evt.Stage, evt.Type, evt.Progress*100, evt.Message)
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if result.Canceled {
		return madspark.ErrContextCanceled
	}
	return nil
}

func flagsToOptions(flags cliFlags) ([]madspark.Option, error) {
	var opts []madspark.Option

	if flags.configFile != "" {
		opts = append(opts, madspark.WithConfigFile(flags.configFile))
	}
	if flags.provider != "" {
		opts = append(opts, madspark.WithPrimaryProvider(flags.provider))
	}
	if flags.modelTier != "" {
		opts = append(opts, madspark.WithModelTier(flags.modelTier))
	}
	opts = append(opts,
		madspark.WithTemperaturePreset(flags.tempPreset),
		madspark.WithNumTopCandidates(flags.topIdeas),
		madspark.WithEnhancedReasoning(flags.enhanced),
		madspark.WithLogicalInference(flags.logical),
	)
	if flags.noFallback {
		opts = append(opts, madspark.WithFallbackEnabled(false))
	}
	switch {
	case flags.noCache:
		opts = append(opts, madspark.WithCacheEnabled(false))
	case flags.enableCache:
		opts = append(opts, madspark.WithCacheEnabled(true))
	}
	if flags.devMode {
		opts = append(opts, madspark.WithDevelopmentMode(true))
	}

	return opts, nil
}
