// Command kurobako is the CLI surface over the benchmarking engine: spec,
// evaluate, batch-evaluate, run, report, plot, serve (§6, informative — not
// part of the core). Exit code 0 on success, nonzero on any error.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/kurobako-go/kurobako/pkg/api"
	"github.com/kurobako-go/kurobako/pkg/benchmark"
	"github.com/kurobako-go/kurobako/pkg/config"
	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/ranking"
	"github.com/kurobako-go/kurobako/pkg/record"
	"github.com/kurobako-go/kurobako/pkg/recipe"
	"github.com/kurobako-go/kurobako/pkg/registry"
	"github.com/kurobako-go/kurobako/pkg/version"

	// Registered for their recipe-type init() side effects: command/
	// embedded-script transports, and the in-process reference problem/
	// solver implementations.
	_ "github.com/kurobako-go/kurobako/pkg/epi"
	_ "github.com/kurobako-go/kurobako/pkg/problems"
	_ "github.com/kurobako-go/kurobako/pkg/solvers"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	envPath := filepath.Join(getEnv("CONFIG_DIR", "."), ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("no .env file at %s, continuing with existing environment", envPath)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "spec":
		err = runSpec(os.Args[2:])
	case "evaluate":
		err = runEvaluate(os.Args[2:])
	case "batch-evaluate":
		err = runBatchEvaluate(os.Args[2:])
	case "run":
		err = runRun(os.Args[2:])
	case "report":
		err = runReport(os.Args[2:])
	case "plot":
		err = runPlot(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "version":
		fmt.Println(version.Full())
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Printf("kurobako %s: %v", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kurobako <spec|evaluate|batch-evaluate|run|report|plot|serve|version> [flags]")
}

// runSpec decodes a recipe and prints the SolverSpec or ProblemSpec it
// reports, without running any trials — useful for checking a recipe
// resolves and what capabilities/domains it declares.
func runSpec(args []string) error {
	fs := flag.NewFlagSet("spec", flag.ExitOnError)
	kind := fs.String("kind", "", "solver or problem")
	recipePath := fs.String("recipe", "", "path to recipe JSON, or - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recipeJSON, err := readRecipe(*recipePath)
	if err != nil {
		return err
	}

	reg := registry.New()
	switch *kind {
	case "solver":
		factory, err := reg.GetOrCreateSolver(recipeJSON)
		if err != nil {
			return err
		}
		return printJSON(factory.Specification())
	case "problem":
		factory, err := reg.GetOrCreateProblem(recipeJSON)
		if err != nil {
			return err
		}
		return printJSON(factory.Specification())
	default:
		return fmt.Errorf("--kind must be solver or problem")
	}
}

// runEvaluate creates one problem evaluator from a recipe and params, and
// evaluates it up to maxStep once.
func runEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	recipePath := fs.String("recipe", "", "path to problem recipe JSON, or - for stdin")
	paramsJSON := fs.String("params", "", `params as a JSON array, e.g. "[1.0, 2.0]"`)
	maxStep := fs.Uint64("max-step", 1, "step to evaluate up to")
	seed := fs.Uint64("seed", 1, "random seed for problem construction")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recipeJSON, err := readRecipe(*recipePath)
	if err != nil {
		return err
	}

	var params domain.Params
	if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
		return fmt.Errorf("parse --params: %w", err)
	}

	ctx := context.Background()
	reg := registry.New()
	factory, err := reg.GetOrCreateProblem(recipeJSON)
	if err != nil {
		return err
	}
	problem, err := factory.CreateProblem(ctx, *seed)
	if err != nil {
		return err
	}
	defer problem.Close()

	evaluator, err := problem.CreateEvaluator(ctx, params)
	if err != nil {
		return err
	}
	defer evaluator.Close()

	currentStep, values, err := evaluator.Evaluate(ctx, *maxStep)
	if err != nil {
		return err
	}

	return printJSON(record.EvaluationRecord{
		Values:    values,
		StartStep: 0,
		EndStep:   currentStep,
	})
}

// runBatchEvaluate reads one params-JSON-array per line from stdin and
// evaluates each against the same problem recipe, writing one
// EvaluationRecord per line to stdout.
func runBatchEvaluate(args []string) error {
	fs := flag.NewFlagSet("batch-evaluate", flag.ExitOnError)
	recipePath := fs.String("recipe", "", "path to problem recipe JSON, or - for stdin")
	maxStep := fs.Uint64("max-step", 1, "step to evaluate up to")
	seed := fs.Uint64("seed", 1, "random seed for problem construction")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recipeJSON, err := readRecipe(*recipePath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	reg := registry.New()
	factory, err := reg.GetOrCreateProblem(recipeJSON)
	if err != nil {
		return err
	}
	problem, err := factory.CreateProblem(ctx, *seed)
	if err != nil {
		return err
	}
	defer problem.Close()

	scanner := bufio.NewScanner(os.Stdin)
	enc := json.NewEncoder(os.Stdout)
	for scanner.Scan() {
		var params domain.Params
		if err := json.Unmarshal(scanner.Bytes(), &params); err != nil {
			return fmt.Errorf("parse params line: %w", err)
		}

		evaluator, err := problem.CreateEvaluator(ctx, params)
		if err != nil {
			return err
		}
		currentStep, values, err := evaluator.Evaluate(ctx, *maxStep)
		_ = evaluator.Close()
		if err != nil {
			return err
		}

		if err := enc.Encode(record.EvaluationRecord{Values: values, StartStep: 0, EndStep: currentStep}); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// runRun loads a benchmark config, runs every study it names, persists the
// resulting records, and prints the final ranking report.
func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to benchmark YAML config")
	outputPath := fs.String("output", "records.ndjson", "path to write NDJSON study records")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	cfg, err := config.Initialize(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out, err := os.Create(*outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	runner := benchmark.NewRunner(registry.New(), record.NewWriter(out))
	report, err := runner.Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("run benchmark: %w", err)
	}

	return printJSON(report.Ranking)
}

// runReport recomputes a ranking from an NDJSON file of StudyRecords plus a
// recipe canonicalization of each record's own solver/problem, grouping
// them exactly as pkg/benchmark does for a live run.
func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	inputPath := fs.String("input", "", "path to an NDJSON file of StudyRecords")
	precedenceFlag := fs.String("precedence", "best-value,auc,elapsed-time", "comma-separated metric precedence")
	if err := fs.Parse(args); err != nil {
		return err
	}

	records, err := readRecords(*inputPath)
	if err != nil {
		return err
	}

	studies := map[ranking.ProblemId]map[ranking.SolverId][]record.StudyRecord{}
	for _, rec := range records {
		problemKey, err := recipe.Canonicalize(rec.Problem.Recipe)
		if err != nil {
			return fmt.Errorf("canonicalize problem recipe: %w", err)
		}
		solverKey, err := recipe.Canonicalize(rec.Solver.Recipe)
		if err != nil {
			return fmt.Errorf("canonicalize solver recipe: %w", err)
		}
		problemId, solverId := ranking.ProblemId(problemKey), ranking.SolverId(solverKey)
		bySolver, ok := studies[problemId]
		if !ok {
			bySolver = map[ranking.SolverId][]record.StudyRecord{}
			studies[problemId] = bySolver
		}
		bySolver[solverId] = append(bySolver[solverId], rec)
	}

	result := ranking.Rank(ranking.Input{Precedence: parsePrecedence(*precedenceFlag), Studies: studies})
	return printJSON(result)
}

// runPlot prints a minimal textual summary, one line per study with its
// trial count and best value — no image rendering, since visualization is explicitly out of the
// spec's scope (§1); this exists only so the CLI surface named in §6 is
// complete.
func runPlot(args []string) error {
	fs := flag.NewFlagSet("plot", flag.ExitOnError)
	inputPath := fs.String("input", "", "path to an NDJSON file of StudyRecords")
	if err := fs.Parse(args); err != nil {
		return err
	}

	records, err := readRecords(*inputPath)
	if err != nil {
		return err
	}

	for i, rec := range records {
		best, ok := ranking.BestValue(rec)
		if !ok {
			fmt.Printf("study %d: no finalized trials\n", i)
			continue
		}
		fmt.Printf("study %d: %d trials, best value %g\n", i, len(rec.Trials), best)
	}
	return nil
}

// runServe starts the read-only report server over a previously-written
// NDJSON file of StudyRecords.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	inputPath := fs.String("input", "", "path to an NDJSON file of StudyRecords")
	precedenceFlag := fs.String("precedence", "best-value,auc,elapsed-time", "comma-separated metric precedence")
	addr := fs.String("addr", ":"+getEnv("HTTP_PORT", "8080"), "address to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	records, err := readRecords(*inputPath)
	if err != nil {
		return err
	}

	studies := map[ranking.ProblemId]map[ranking.SolverId][]record.StudyRecord{}
	for _, rec := range records {
		problemKey, err := recipe.Canonicalize(rec.Problem.Recipe)
		if err != nil {
			return err
		}
		solverKey, err := recipe.Canonicalize(rec.Solver.Recipe)
		if err != nil {
			return err
		}
		problemId, solverId := ranking.ProblemId(problemKey), ranking.SolverId(solverKey)
		bySolver, ok := studies[problemId]
		if !ok {
			bySolver = map[ranking.SolverId][]record.StudyRecord{}
			studies[problemId] = bySolver
		}
		bySolver[solverId] = append(bySolver[solverId], rec)
	}

	result := ranking.Rank(ranking.Input{Precedence: parsePrecedence(*precedenceFlag), Studies: studies})
	srv, err := api.NewServer(benchmark.Report{Studies: studies, Ranking: result})
	if err != nil {
		return err
	}
	return srv.Listen(*addr)
}

func readRecipe(path string) (json.RawMessage, error) {
	if path == "-" || path == "" {
		data, err := readAllStdin()
		if err != nil {
			return nil, fmt.Errorf("read recipe from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe file: %w", err)
	}
	return data, nil
}

func readAllStdin() ([]byte, error) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var out []byte
	for scanner.Scan() {
		out = append(out, scanner.Bytes()...)
	}
	return out, scanner.Err()
}

func readRecords(path string) ([]record.StudyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return record.ReadAll(f)
}

func parsePrecedence(raw string) []ranking.Metric {
	var out []ranking.Metric
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, ranking.Metric(raw[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
