package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cheggaaa/pb"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"travelopt/pkg/cfg"
	"travelopt/pkg/logging"
	"travelopt/pkg/metrics"
	"travelopt/pkg/optimizer"
)

type options struct {
	output      string
	config      string
	logLevel    string
	metricsFile string
	progress    bool
	stats       bool

	travelFeed     float64
	maxStalePasses int
	maxPasses      int
	featureOrder   []string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "travelopt [flags] [input|-]",
		Short: "Reorder G-code extrusion to cut travel moves",
		Long: `travelopt reads sliced G-code, reorders the extrusion within each layer to
shorten the travel between strokes, and writes the result. Extrusion lines are
kept verbatim; only travel moves are added, removed or relocated.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, &opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "-", "Write optimized G-code to this file (- for stdout)")
	flags.StringVarP(&opts.config, "config", "c", "", "YAML or JSON configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	flags.BoolVar(&opts.progress, "progress", false, "Show a per-layer progress bar (default on when stderr is a terminal)")
	flags.BoolVar(&opts.stats, "stats", false, "Print a diagnostics summary to stderr")

	def := cfg.Defaults()
	flags.Float64Var(&opts.travelFeed, "travel-feed", def.TravelFeedRate, "Feed rate of synthesized travel moves")
	flags.IntVar(&opts.maxStalePasses, "max-stale-passes", def.MaxStalePasses, "Non-improving 2-opt passes allowed before stopping, 0 disables 2-opt")
	flags.IntVar(&opts.maxPasses, "max-passes", def.MaxPasses, "Upper bound on 2-opt passes per feature group, 0 for none")
	flags.StringSliceVar(&opts.featureOrder, "feature-order", def.FeatureOrder, "Feature print order within a layer")
	return cmd
}

// load layers the flags the user set over the config file over defaults.
func (opts *options) load(cmd *cobra.Command) (cfg.Config, error) {
	c := cfg.Defaults()
	if opts.config != "" {
		var err error
		if c, err = cfg.Load(opts.config); err != nil {
			return cfg.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("travel-feed") {
		c.TravelFeedRate = opts.travelFeed
	}
	if flags.Changed("max-stale-passes") {
		c.MaxStalePasses = opts.maxStalePasses
	}
	if flags.Changed("max-passes") {
		c.MaxPasses = opts.maxPasses
	}
	if flags.Changed("feature-order") {
		c.FeatureOrder = opts.featureOrder
	}
	return c, nil
}

func run(cmd *cobra.Command, args []string, opts *options) error {
	stderr := cmd.ErrOrStderr()

	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	log := logging.New(level, stderr)

	c, err := opts.load(cmd)
	if err != nil {
		return err
	}
	o, err := optimizer.New(c, log)
	if err != nil {
		return err
	}

	in, name, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer in.Close()

	showProgress := opts.progress
	if !cmd.Flags().Changed("progress") {
		showProgress = isTerminal(stderr)
	}
	var bar *pb.ProgressBar
	if showProgress {
		o.Progress = func(done, total int) {
			if bar == nil {
				bar = pb.New(total)
				bar.Output = stderr
				bar.Format("[=> ]")
				bar.Start()
			}
			bar.Set(done)
		}
	}

	lines, d, err := o.OptimizeReader(in)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if err := writeOutput(cmd, opts.output, lines); err != nil {
		return err
	}

	if opts.stats {
		if err := d.WriteSummary(stderr); err != nil {
			return err
		}
	}
	if opts.metricsFile != "" {
		rec := metrics.NewRecorder()
		rec.Record(d)
		if err := rec.WriteTextfile(opts.metricsFile); err != nil {
			return err
		}
		log.Debug("wrote metrics", slog.String("path", opts.metricsFile))
	}
	return nil
}

func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, string, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), "stdin", nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("open input: %w", err)
	}
	return f, args[0], nil
}

func writeOutput(cmd *cobra.Command, path string, lines []string) (err error) {
	var w io.Writer = cmd.OutOrStdout()
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
		}()
		w = f
	}

	bw := bufio.NewWriter(w)
	for _, l := range lines {
		bw.WriteString(l)
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
