// Package benchmarks provides a harness that runs small ARM programs on the
// core and reports cycle statistics.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/gbasim/config"
	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
	"github.com/sarchlab/gbasim/timing/cache"
	"github.com/sarchlab/gbasim/timing/core"
)

// BenchmarkResult holds the results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// Instructions is the number of instructions that reached execute
	Instructions uint64 `json:"instructions"`

	// Skipped is the number of instructions whose condition failed
	Skipped uint64 `json:"skipped"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// PipelineFlushes is the number of pipeline flushes
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// Cache hits/misses (if cache enabled)
	CacheHits   uint64 `json:"cache_hits,omitempty"`
	CacheMisses uint64 `json:"cache_misses,omitempty"`

	// R0 is the value of R0 when the run ended
	R0 uint32 `json:"r0"`

	// Passed reports that the sentinel was reached with the expected R0
	Passed bool `json:"passed"`

	// Error is the failure reason, if any
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the register file and memory before the run
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is the ARM machine code, placed at the start of cartridge ROM
	Program []byte

	// ExpectedR0 is the value R0 must hold at the sentinel
	ExpectedR0 uint32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// EnableCache places the line cache between the core and the bus
	EnableCache bool

	// Cache is the cache geometry used when EnableCache is set
	Cache cache.Config

	// MaxCycles bounds each run
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives per-benchmark progress (default: discarded)
	Logger logrus.FieldLogger
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		EnableCache: true,
		Cache:       cache.DefaultConfig(),
		MaxCycles:   config.DefaultMaxCycles,
		Output:      os.Stdout,
	}
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Logger == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		config.Logger = logger
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		h.config.Logger.WithFields(logrus.Fields{
			"benchmark": result.Name,
			"cycles":    result.SimulatedCycles,
			"passed":    result.Passed,
		}).Info("benchmark finished")
		results = append(results, result)
	}

	return results
}

// runBenchmark executes a single benchmark from reset. The program starts
// at the cartridge ROM base with LR holding the exit sentinel and SP at the
// top of IWRAM.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	regFile := emu.NewRegFile()
	memory := emu.NewMemory(nil, bench.Program)

	regFile.WriteReg(insts.SP, emu.IWRAMBase+emu.IWRAMSize)
	regFile.WriteReg(insts.LR, config.DefaultExitPC)

	if bench.Setup != nil {
		bench.Setup(regFile, memory)
	}

	opts := []core.CoreOption{core.WithLogger(h.config.Logger)}
	if h.config.EnableCache {
		opts = append(opts, core.WithCache(h.config.Cache))
	}

	c := core.NewCore(regFile, memory, opts...)
	c.SetPC(emu.ROMBase)

	start := time.Now()
	_, err := c.RunUntil(config.DefaultExitPC, h.config.MaxCycles)
	wallTime := time.Since(start)

	stats := c.Stats()
	result := BenchmarkResult{
		Name:            bench.Name,
		Description:     bench.Description,
		SimulatedCycles: stats.Cycles,
		Instructions:    stats.Instructions,
		Skipped:         stats.Skipped,
		PipelineFlushes: stats.Flushes,
		R0:              regFile.ReadReg(insts.R0),
		WallTime:        wallTime,
	}
	if stats.Instructions > 0 {
		result.CPI = float64(stats.Cycles) / float64(stats.Instructions)
	}

	if lineCache := c.Pipeline.Cache(); lineCache != nil {
		cacheStats := lineCache.Stats()
		result.CacheHits = cacheStats.Hits
		result.CacheMisses = cacheStats.Misses
	}

	switch {
	case err != nil:
		result.Error = err.Error()
	case result.R0 != bench.ExpectedR0:
		result.Error = fmt.Sprintf("r0 = %d, want %d", result.R0, bench.ExpectedR0)
	default:
		result.Passed = true
	}

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== gbasim Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  R0: %d\n", r.R0)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions:         %d\n", r.Instructions)
		_, _ = fmt.Fprintf(h.config.Output, "  Skipped:              %d\n", r.Skipped)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)

		if r.CacheHits > 0 || r.CacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.CacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.CacheMisses)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,skipped,cpi,flushes,cache_hits,cache_misses,r0,passed")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%.3f,%d,%d,%d,%d,%t\n",
			r.Name,
			r.SimulatedCycles,
			r.Instructions,
			r.Skipped,
			r.CPI,
			r.PipelineFlushes,
			r.CacheHits,
			r.CacheMisses,
			r.R0,
			r.Passed,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// CacheEnabled reports whether the line cache was in use
	CacheEnabled bool `json:"cache_enabled"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks   int           `json:"total_benchmarks"`
	Passed            int           `json:"passed"`
	TotalCycles       uint64        `json:"total_cycles"`
	TotalInstructions uint64        `json:"total_instructions"`
	AverageCPI        float64       `json:"average_cpi"`
	TotalWallTime     time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.Instructions
		summary.TotalWallTime += r.WallTime
		if r.Passed {
			summary.Passed++
		}
	}
	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}
	return summary
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			CacheEnabled: h.config.EnableCache,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
