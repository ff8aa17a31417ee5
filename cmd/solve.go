package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/cottand/traitsolve/internal/log"
	"github.com/cottand/traitsolve/ir"
	"github.com/cottand/traitsolve/program"
	"github.com/cottand/traitsolve/solve"
	"github.com/mattn/go-isatty"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

var SolveCmd = &cobra.Command{
	Use:          "solve file.yaml",
	Short:        "Solve the queries of a program file",
	RunE:         runSolve,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	overflowDepth *int
	maxSize       *int
	answers       *int
	noCache       *bool
	logLevel      *int
	jsonLogs      *bool
	traceSpans    *bool
	showMetrics   *bool
	parallel      *bool
)

func init() {
	flags := SolveCmd.Flags()
	overflowDepth = flags.Int("overflow-depth", solve.DefaultOverflowDepth, "maximum number of goals on the stack")
	maxSize = flags.Int("max-size", solve.DefaultMaxSize, "largest type a goal may mention before it is truncated")
	answers = flags.IntP("answers", "n", 0, "stop enumerating answers of 'all' queries after this many, 0 for no limit")
	noCache = flags.Bool("no-cache", false, "do not cache the results of subgoals")
	logLevel = flags.IntP("log-level", "l", int(slog.LevelError), "log level")
	jsonLogs = flags.Bool("json-logs", false, "write logs as JSON, the default when stderr is not a terminal")
	traceSpans = flags.Bool("trace", false, "write a trace of every query to stderr")
	showMetrics = flags.Bool("metrics", false, "print solver metrics once done")
	parallel = flags.BoolP("parallel", "p", false, "solve queries concurrently, sharing one cache")
}

// Settings configure how the queries of a program are run
type Settings struct {
	Options  solve.Options
	Parallel bool
}

// QueryResult is the outcome of one query of a program file
type QueryResult struct {
	Query program.Query
	// Got holds the rendered solution, or the rendered answers for ModeAll
	Got []string
	Err error
}

// Expected returns what the program file expects the query to produce, and
// whether it expects anything
func (r QueryResult) Expected() ([]string, bool) {
	switch {
	case r.Query.Mode == program.ModeAll && r.Query.Answers != nil:
		return r.Query.Answers, true
	case r.Query.Mode != program.ModeAll && r.Query.Expect != "":
		return []string{r.Query.Expect}, true
	default:
		return nil, false
	}
}

// OK is false when the query failed, or did not produce what was expected
func (r QueryResult) OK() bool {
	if r.Err != nil {
		return false
	}
	expected, ok := r.Expected()
	return !ok || slices.Equal(expected, r.Got)
}

func runSolve(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*logLevel))
	jsonOutput := *jsonLogs
	if !cmd.Flags().Changed("json-logs") {
		jsonOutput = !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd())
	}
	log.SetOutput(cmd.ErrOrStderr(), jsonOutput)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if *traceSpans {
		shutdown, err := setupTracing(cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("could not set up tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.DefaultLogger.Warn("could not flush traces", "error", err)
			}
		}()
	}

	p, queries, err := program.LoadFile(args[0])
	if err != nil {
		return err
	}

	settings := Settings{
		Options: solve.DefaultOptions().
			WithOverflowDepth(*overflowDepth).
			WithMaxSize(*maxSize).
			WithExpectedAnswers(*answers).
			WithCaching(!*noCache),
		Parallel: *parallel,
	}
	results, err := Run(ctx, p, queries, settings)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := printResults(out, results)
	if *showMetrics {
		families, err := solve.Registry.Gather()
		if err != nil {
			return fmt.Errorf("could not gather metrics: %w", err)
		}
		printMetrics(out, families)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(results))
	}
	return nil
}

// Run solves every query against p. Queries that overflow or hit a negative
// cycle report it in their QueryResult, and do not stop the others.
func Run(ctx context.Context, p *program.Program, queries []program.Query, settings Settings) ([]QueryResult, error) {
	results := make([]QueryResult, len(queries))
	if !settings.Parallel {
		for i, q := range queries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = runQuery(ctx, p, q, settings.Options)
		}
		return results, nil
	}

	opts := settings.Options
	if opts.CachingEnabled && opts.Cache == nil {
		opts = opts.WithSharedCache(solve.NewCache())
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range queries {
		g.Go(func() error {
			results[i] = runQuery(gCtx, p, q, opts)
			return gCtx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runQuery(ctx context.Context, p *program.Program, q program.Query, opts solve.Options) (result QueryResult) {
	result.Query = q
	defer solve.Recover(&result.Err)

	solver := solve.NewSolver(p, opts)
	goal := solve.PeelGoal(ir.NewInEnvironment(ir.NewEnvironment(), q.Parsed))
	switch q.Mode {
	case program.ModeFirst:
		first, ok := solver.SolveFirst(ctx, goal)
		if !ok {
			result.Got = []string{solve.ShowSolution(nil)}
		} else {
			result.Got = []string{first.String()}
		}
	case program.ModeAll:
		result.Got = []string{}
		solver.SolveMultiple(ctx, goal, func(answer solve.SubstitutionResult, _ bool) bool {
			result.Got = append(result.Got, answer.String())
			return true
		})
	default:
		result.Got = []string{solve.ShowSolution(solver.Solve(ctx, goal))}
	}
	return result
}

// printResults writes one block per query and returns how many failed
func printResults(w io.Writer, results []QueryResult) int {
	failed := 0
	for _, r := range results {
		status := "ok"
		if !r.OK() {
			status = "FAIL"
			failed++
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", status, r.Query.Name)

		if r.Err != nil {
			msg := r.Err.Error()
			if solveErr, ok := r.Err.(solve.SolveError); ok {
				msg = solve.FormatWithCode(solveErr)
			}
			_, _ = fmt.Fprintf(w, "    error: %s\n", msg)
			continue
		}
		for _, got := range r.Got {
			_, _ = fmt.Fprintf(w, "    %s\n", got)
		}
		if expected, ok := r.Expected(); ok && !r.OK() {
			_, _ = fmt.Fprintf(w, "  expected:\n    %s\n", strings.Join(expected, "\n    "))
		}
	}
	return failed
}

func printMetrics(w io.Writer, families []*dto.MetricFamily) {
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			_, _ = fmt.Fprintf(w, "%s %g\n", family.GetName(), metric.GetCounter().GetValue())
		}
	}
}

func setupTracing(w io.Writer) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
