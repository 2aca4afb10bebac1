// Command benchmark runs the gbasim microbenchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv       Output results in CSV format (default: human-readable)
//	-json      Output results as a JSON report
//	-no-cache  Disable the line cache
//	-core      Run only the core subset
//	-v         Log each benchmark as it finishes
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/gbasim/benchmarks"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as a JSON report")
	noCache := flag.Bool("no-cache", false, "Disable the line cache")
	coreOnly := flag.Bool("core", false, "Run only the core benchmark subset")
	verbose := flag.Bool("v", false, "Log each benchmark as it finishes")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.EnableCache = !*noCache
	config.Output = os.Stdout
	if *verbose {
		logger := logrus.New()
		logger.SetOutput(os.Stderr)
		config.Logger = logger
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		fmt.Println("gbasim Benchmark Harness")
		fmt.Println("========================")
		fmt.Printf("Cache: %v\n", config.EnableCache)
		fmt.Println("")
		harness.PrintResults(results)
	}

	if summary := benchmarks.Summarize(results); summary.Passed != summary.TotalBenchmarks {
		os.Exit(1)
	}
}
