// Package main provides a benchmark runner for relay scheduling.
// Runs seeded delivery queries against fleet configs and collects metrics.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/elektrokombinacija/relay-refuel/internal/config"
	"github.com/elektrokombinacija/relay-refuel/internal/core"
	"github.com/elektrokombinacija/relay-refuel/internal/metrics"
	"github.com/elektrokombinacija/relay-refuel/internal/registry"
	"github.com/elektrokombinacija/relay-refuel/internal/scheduler"
	"github.com/elektrokombinacija/relay-refuel/internal/sim"
)

// BenchmarkResult stores results from a single query.
type BenchmarkResult struct {
	Timestamp  string
	CommitHash string
	GoVersion  string
	OS         string
	Arch       string
	Instance   string
	NumTowers  int
	Query      int
	RuntimeMs  float64
	Success    bool
	Result     string // core.ErrorKind of the outcome
	Elapsed    float64
	Depth      int
	Stops      int
	Bots       int
	Misses     int
}

// InstanceMetrics holds per-instance aggregated metrics.
type InstanceMetrics struct {
	Name           string
	TotalRuns      int
	Successes      int
	TotalRuntimeMs float64
	TotalStops     int
	MaxDepth       int
	Misses         int
	Failures       map[string]int
}

func getGitCommit() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

// runInstance schedules n random deliveries one after another against a
// fresh registry built from cfg.
func runInstance(ctx context.Context, name string, cfg config.Config, n int, seed int64) ([]*BenchmarkResult, error) {
	reg, err := registry.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts := scheduler.OptionsFromConfig(cfg)
	opts.Metrics = metrics.New(prometheus.NewRegistry())
	s, err := scheduler.New(reg, opts)
	if err != nil {
		return nil, err
	}

	lo, hi := span(cfg)
	types := payloadTypes(cfg)
	rng := rand.New(rand.NewSource(seed))
	commit := getGitCommit()

	var results []*BenchmarkResult
	for i := 0; i < n; i++ {
		q := scheduler.Query{
			PayloadType: types[rng.Intn(len(types))],
			Target:      core.Pos{X: lo + rng.Float64()*(hi-lo), Y: (rng.Float64()*2 - 1) * 1000},
			Duration:    5 + rng.Float64()*25,
		}

		result := &BenchmarkResult{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			CommitHash: commit,
			GoVersion:  runtime.Version(),
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			Instance:   name,
			NumTowers:  len(cfg.Towers),
			Query:      i,
		}

		start := time.Now()
		out, err := s.ScheduleFlexible(ctx, q)
		result.RuntimeMs = float64(time.Since(start).Microseconds()) / 1000.0
		result.Success = err == nil
		result.Result = core.ErrorKind(err)

		if err == nil {
			sched := out.Schedule
			result.Elapsed = sched.TotalElapsed()
			result.Depth = sched.Depth()
			result.Stops = sched.InjectedStops()
			result.Bots = len(sched.Nodes)

			sc := sim.DefaultConfig()
			sc.Schedule = sched
			sc.Models = reg.Snapshot()
			sc.Metrics = opts.Metrics
			if m, err := sim.RunSimulation(ctx, sc); err == nil {
				result.Misses = m.Misses
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// span returns the x extent of the towers.
func span(cfg config.Config) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range cfg.Towers {
		x := t.Pos().X
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	return lo, hi
}

func payloadTypes(cfg config.Config) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range cfg.Towers {
		for _, p := range t.Payloads {
			if !seen[p.Type] {
				seen[p.Type] = true
				out = append(out, p.Type)
			}
		}
	}
	sort.Strings(out)
	return out
}

func writeCSV(results []*BenchmarkResult, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"timestamp", "commit_hash", "go_version", "os", "arch",
		"instance", "num_towers", "query", "runtime_ms", "success", "result",
		"elapsed", "depth", "stops", "bots", "misses",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			r.Timestamp, r.CommitHash, r.GoVersion, r.OS, r.Arch,
			r.Instance, fmt.Sprintf("%d", r.NumTowers), fmt.Sprintf("%d", r.Query),
			fmt.Sprintf("%.3f", r.RuntimeMs), fmt.Sprintf("%t", r.Success), r.Result,
			fmt.Sprintf("%.3f", r.Elapsed), fmt.Sprintf("%d", r.Depth),
			fmt.Sprintf("%d", r.Stops), fmt.Sprintf("%d", r.Bots), fmt.Sprintf("%d", r.Misses),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func summarize(results []*BenchmarkResult) []*InstanceMetrics {
	byName := make(map[string]*InstanceMetrics)
	for _, r := range results {
		m, ok := byName[r.Instance]
		if !ok {
			m = &InstanceMetrics{Name: r.Instance, Failures: make(map[string]int)}
			byName[r.Instance] = m
		}
		m.TotalRuns++
		m.Misses += r.Misses
		if !r.Success {
			m.Failures[r.Result]++
			continue
		}
		m.Successes++
		m.TotalRuntimeMs += r.RuntimeMs
		m.TotalStops += r.Stops
		m.MaxDepth = max(m.MaxDepth, r.Depth)
	}

	out := make([]*InstanceMetrics, 0, len(byName))
	for _, m := range byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func printSummary(results []*BenchmarkResult) {
	fmt.Println("\n=== BENCHMARK SUMMARY ===")
	fmt.Printf("%-24s %6s %8s %12s %9s %8s %7s\n",
		"Instance", "Runs", "Success", "Avg Time(ms)", "AvgStops", "MaxDepth", "Misses")
	fmt.Println(strings.Repeat("-", 80))

	for _, m := range summarize(results) {
		avgTime, avgStops := 0.0, 0.0
		if m.Successes > 0 {
			avgTime = m.TotalRuntimeMs / float64(m.Successes)
			avgStops = float64(m.TotalStops) / float64(m.Successes)
		}
		fmt.Printf("%-24s %6d %8d %12.2f %9.2f %8d %7d\n",
			m.Name, m.TotalRuns, m.Successes, avgTime, avgStops, m.MaxDepth, m.Misses)

		var kinds []string
		for k := range m.Failures {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("    %-30s %d\n", k, m.Failures[k])
		}
	}
}

func main() {
	inputDir := flag.String("input", "testdata", "Directory containing fleet YAML files")
	outputFile := flag.String("output", "evidence/benchmark_results.csv", "Output CSV file")
	queries := flag.Int("queries", 20, "Deliveries scheduled per fleet")
	seed := flag.Int64("seed", 1, "Query seed")
	timeout := flag.Duration("timeout", 5*time.Minute, "Timeout per fleet")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*outputFile), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	files, err := filepath.Glob(filepath.Join(*inputDir, "*.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding fleet files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No fleet files found in %s\n", *inputDir)
		fmt.Fprintf(os.Stderr, "Run gen_instances first: go run ./tools/gen_instances -scaling -output testdata\n")
		os.Exit(1)
	}

	fmt.Printf("Running benchmarks: %d fleets x %d queries\n", len(files), *queries)
	fmt.Printf("Timeout per fleet: %v\n", *timeout)

	var results []*BenchmarkResult
	for _, file := range files {
		cfg, err := config.Load(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", file, err)
			continue
		}
		if len(payloadTypes(cfg)) == 0 {
			fmt.Fprintf(os.Stderr, "Skipping %s: no payloads\n", file)
			continue
		}

		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		rs, err := runInstance(ctx, name, cfg, *queries, *seed)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running %s: %v\n", file, err)
			continue
		}
		if *verbose {
			for _, r := range rs {
				fmt.Printf("  %s #%d: %s (%.2fms, %d stops)\n", r.Instance, r.Query, r.Result, r.RuntimeMs, r.Stops)
			}
		}
		results = append(results, rs...)
	}

	if err := writeCSV(results, *outputFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Results written to: %s\n", *outputFile)

	printSummary(results)
}
