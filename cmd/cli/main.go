package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"gosts/adapters/kernels"
	"gosts/adapters/metrics"
	"gosts/adapters/report"
	"gosts/adapters/source"
	"gosts/app"
	"gosts/domain/bits"
	"gosts/domain/kernel"
	"gosts/domain/run"
	"gosts/internal"
	"gosts/internal/config"
	"gosts/internal/testkit"
	"gosts/ports"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errAssessmentFailed signals that the assessment ran but did not pass.
var errAssessmentFailed = errors.New("assessment did not pass")

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errAssessmentFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gosts",
		Short:         "Statistical randomness assessment of binary sequences",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newFingerprintCmd(),
		newKernelsCmd(),
		newGenerateCmd(),
	)
	return rootCmd
}

type runOptions struct {
	configPath  string
	reportDir   string
	formats     []string
	workers     int
	metricsFile string
	progress    bool
	verbose     bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an assessment described by a YAML document",
		Long: `Load samples, run every requested test and print the verdicts.

The exit status is 0 when every verdict passes, 2 when the assessment ran
but did not pass, and 1 on any other error.

Example: gosts run --config assessment.yaml --report-dir out --format json,html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssessment(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Assessment YAML document")
	cmd.Flags().StringVar(&opts.reportDir, "report-dir", "", "Directory for report files (overrides the document)")
	cmd.Flags().StringSliceVar(&opts.formats, "format", nil, "Report formats: "+strings.Join(report.Formats(), ","))
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Worker pool size (overrides the document and WORKERS)")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Print progress to stderr")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runAssessment(ctx context.Context, stdout, stderr io.Writer, opts runOptions) error {
	env, err := config.Load()
	if err != nil {
		return err
	}
	doc, err := config.LoadFile(opts.configPath)
	if err != nil {
		return err
	}
	engine := doc.Engine(env.Engine)
	if opts.workers > 0 {
		engine.Workers = opts.workers
	}

	logger := internal.NewDefaultLogger()
	if opts.verbose {
		logger = internal.NewLogger(internal.LogLevelDebug)
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	cfg := app.SchedulerConfig{
		Workers:           engine.Workers,
		ScratchLimitBytes: engine.ScratchLimitBytes,
		Verdict:           engine.Verdict(),
		CodeVersion:       version,
		Metrics:           metrics.NewRecorder(registry),
		Logger:            logger,
	}
	if opts.progress {
		cfg.Progress = func(done, total int) {
			fmt.Fprintf(stderr, "\r%d/%d runs settled", done, total)
			if done == total {
				fmt.Fprintln(stderr)
			}
		}
	}
	sched, err := app.NewScheduler(kernels.Registry{}, cfg)
	if err != nil {
		return err
	}

	svc := app.NewAssessmentService(sched)
	res, runErr := svc.AssessSource(ctx, sampleSource(doc.Samples), app.AssessmentRequest{
		Kernels:       doc.Kernels,
		ParameterSets: doc.ParameterSets,
	})
	if runErr != nil && res.Manifest.Runs == 0 {
		return runErr
	}

	// Reports are written even for an interrupted run so the partial
	// outcome is not lost.
	if err := (report.MarkdownEmitter{}).Emit(context.Background(), stdout, res); err != nil {
		return err
	}
	if err := writeReports(stdout, doc.Report, opts, res); err != nil {
		return err
	}
	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if !res.Passed() {
		return errAssessmentFailed
	}
	return nil
}

func writeReports(stdout io.Writer, cfg config.ReportConfig, opts runOptions, res run.Result) error {
	dir, formats := cfg.Dir, cfg.Formats
	if opts.reportDir != "" {
		dir = opts.reportDir
	}
	if len(opts.formats) > 0 {
		formats = opts.formats
	}
	if dir == "" && len(formats) == 0 {
		return nil
	}
	if dir == "" {
		dir = "."
	}
	if len(formats) == 0 {
		formats = []string{"json"}
	}

	paths, err := report.WriteAll(context.Background(), dir, res, formats)
	for _, p := range paths {
		fmt.Fprintf(stdout, "\nreport written: %s", p)
	}
	if len(paths) > 0 {
		fmt.Fprintln(stdout)
	}
	return err
}

func sampleSource(cfg config.SampleConfig) ports.SampleSource {
	if cfg.Device != "" {
		return source.NewSerialSource(cfg)
	}
	return source.NewFileSource(cfg)
}

func newFingerprintCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "fingerprint",
		Aliases: []string{"plan"},
		Short:   "Load samples and print the schedule fingerprint without running it",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(cmd.Context(), cmd.OutOrStdout(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Assessment YAML document")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runFingerprint(ctx context.Context, out io.Writer, configPath string) error {
	doc, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	src := sampleSource(doc.Samples)
	samples, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load samples from %s: %w", src.Describe(), err)
	}
	sched, err := app.NewAssessmentService(nil).Plan(samples, app.AssessmentRequest{
		Kernels:       doc.Kernels,
		ParameterSets: doc.ParameterSets,
	})
	if err != nil {
		return err
	}

	perKernel := map[kernel.Variant]int{}
	for _, r := range sched.Runs() {
		perKernel[r.Kernel]++
	}
	fp := sched.Fingerprint()
	fmt.Fprintf(out, "Source:      %s\n", src.Describe())
	fmt.Fprintf(out, "Samples:     %d\n", len(samples))
	fmt.Fprintf(out, "Runs:        %d\n", sched.Len())
	fmt.Fprintf(out, "Fingerprint: %s\n", fp.Fingerprint)
	for _, v := range sched.Kernels() {
		fmt.Fprintf(out, "  %-32s %d runs\n", v, perKernel[v])
	}
	return nil
}

func newKernelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kernels",
		Short: "List the available tests and their default parameters",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for _, v := range kernel.All() {
				mode := "sequential"
				if v.MultiThreaded() {
					mode = "parallel"
				}
				fmt.Fprintf(out, "%-32s %-10s %s\n", v, mode, kernel.Defaults(v).Canonical())
			}
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		cfg    testkit.StreamGeneratorConfig
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write reproducible pseudo-random streams for trying the engine",
		Long: `Generate Count streams of Length bits from a seeded ChaCha8 source and
write them back to back, one stream per line in ascii format or packed most
significant bit first in binary format.

Example: gosts generate --length 1000000 --count 10 --out streams.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Length <= 0 || cfg.Count <= 0 {
				return fmt.Errorf("length and count must be positive")
			}
			if cfg.Bias < 0 || cfg.Bias >= 1 {
				return fmt.Errorf("bias must be in [0,1)")
			}
			return writeStreams(out, format, testkit.NewStreamGenerator(cfg).Generate())
		},
	}

	cmd.Flags().IntVar(&cfg.Length, "length", 1000000, "Bits per stream")
	cmd.Flags().IntVar(&cfg.Count, "count", 1, "Number of streams")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 42, "Generator seed")
	cmd.Flags().Float64Var(&cfg.Bias, "bias", 0, "Probability of a one; 0 means unbiased")
	cmd.Flags().StringVar(&format, "format", config.FormatASCII, "Output format: ascii or binary")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func writeStreams(path, format string, streams []*bits.Sequence) error {
	var data []byte
	switch format {
	case config.FormatASCII:
		for _, s := range streams {
			for _, b := range s.View() {
				data = append(data, '0'+b)
			}
			data = append(data, '\n')
		}
	case config.FormatBinary:
		total := 0
		for _, s := range streams {
			total += s.Len()
		}
		data = make([]byte, (total+7)/8)
		i := 0
		for _, s := range streams {
			for _, b := range s.View() {
				data[i>>3] |= b << (7 - uint(i&7))
				i++
			}
		}
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return os.WriteFile(path, data, 0o644)
}
