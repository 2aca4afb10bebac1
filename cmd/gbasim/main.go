// Package main provides the entry point for gbasim.
// gbasim runs ARM-state code on a cycle-stepped ARM7TDMI core until the
// program returns to a sentinel address.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/sarchlab/gbasim/config"
	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
	"github.com/sarchlab/gbasim/loader"
	"github.com/sarchlab/gbasim/timing/core"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the parsed command line.
type options struct {
	biosPath   string
	configPath string
	entry      string
	exit       string
	maxCycles  uint64
	cache      bool
	dump       bool
	verbose    bool
	cpuProfile string
	program    string
	set        map[string]bool
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("gbasim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{set: map[string]bool{}}
	fs.StringVar(&opts.biosPath, "bios", "", "Path to a raw BIOS image")
	fs.StringVar(&opts.configPath, "config", "", "Path to run configuration JSON file")
	fs.StringVar(&opts.entry, "entry", "", "Entry address (overrides config and ELF entry)")
	fs.StringVar(&opts.exit, "exit", "", "Sentinel return address")
	fs.Uint64Var(&opts.maxCycles, "max-cycles", 0, "Cycle budget")
	fs.BoolVar(&opts.cache, "cache", false, "Enable the line cache")
	fs.BoolVar(&opts.dump, "dump", false, "Print final registers and statistics")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output")
	fs.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile to file")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: gbasim [options] <program.elf|rom.gba>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return nil, errors.New("missing program")
	}

	opts.program = fs.Arg(0)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	return opts, nil
}

// resolveConfig applies command-line overrides on top of the config file.
func resolveConfig(opts *options) (*config.RunConfig, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		cfg, err = config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}

	if opts.set["entry"] {
		addr, err := parseAddr(opts.entry)
		if err != nil {
			return nil, fmt.Errorf("-entry: %w", err)
		}
		cfg.SetEntry(addr)
	}
	if opts.set["exit"] {
		addr, err := parseAddr(opts.exit)
		if err != nil {
			return nil, fmt.Errorf("-exit: %w", err)
		}
		cfg.ExitPC = addr
	}
	if opts.set["max-cycles"] {
		cfg.MaxCycles = opts.maxCycles
	}
	if opts.set["cache"] {
		cfg.FetchCache.Enabled = opts.cache
	}
	if opts.verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func newLogger(stderr io.Writer, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:    !isTerminal(stderr),
		DisableTimestamp: true,
	})
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// loadMemory builds the bus from the BIOS and program images. The returned
// entry is the ELF entry point, or zero for raw images.
func loadMemory(opts *options) (*emu.Memory, uint32, error) {
	var bios []byte
	if opts.biosPath != "" {
		var err error
		bios, err = loader.LoadImage(opts.biosPath)
		if err != nil {
			return nil, 0, err
		}
	}

	if !strings.EqualFold(filepath.Ext(opts.program), ".elf") {
		rom, err := loader.LoadImage(opts.program)
		if err != nil {
			return nil, 0, err
		}
		return emu.NewMemory(bios, rom), 0, nil
	}

	prog, err := loader.Load(opts.program)
	if err != nil {
		return nil, 0, err
	}
	memory := emu.NewMemory(bios, prog.ROMImage(emu.ROMBase))
	prog.LoadRAM(memory, emu.ROMBase)
	return memory, prog.EntryPoint, nil
}

func startProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

// summary is the -dump output.
type summary struct {
	Registers [16]string
	CPSR      string
	State     string
	Stats     core.Stats
	CPI       string
	Reached   bool
}

func summarize(c *core.Core, reached bool) summary {
	regFile := c.RegFile()
	s := summary{
		CPSR:    fmt.Sprintf("0x%08X", regFile.CPSR.Word()),
		State:   regFile.CPSR.State.String(),
		Stats:   c.Stats(),
		Reached: reached,
	}
	for i, v := range regFile.R {
		s.Registers[i] = fmt.Sprintf("0x%08X", v)
	}
	if s.Stats.Instructions > 0 {
		s.CPI = fmt.Sprintf("%.3f", float64(s.Stats.Cycles)/float64(s.Stats.Instructions))
	}
	return s
}

// run executes one simulation and returns the process exit code: 0 when
// the sentinel was reached, 1 otherwise, 2 on bad usage.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 2
	}

	logger := newLogger(stderr, cfg.Level())

	memory, elfEntry, err := loadMemory(opts)
	if err != nil {
		logger.WithError(err).Error("load failed")
		return 1
	}

	if opts.cpuProfile != "" {
		stop, err := startProfile(opts.cpuProfile)
		if err != nil {
			logger.WithError(err).Error("profile failed")
			return 1
		}
		defer stop()
	}

	entry := cfg.EntryPC
	if elfEntry != 0 && !cfg.HasEntry() {
		entry = elfEntry
	}

	regFile := emu.NewRegFile()
	regFile.WriteReg(insts.LR, cfg.ExitPC)

	coreOpts := []core.CoreOption{core.WithLogger(logger)}
	if cfg.FetchCache.Enabled {
		coreOpts = append(coreOpts, core.WithCache(cfg.FetchCache.Cache()))
	}

	c := core.NewCore(regFile, memory, coreOpts...)
	c.SetPC(entry)

	logger.WithFields(logrus.Fields{
		"program": opts.program,
		"entry":   fmt.Sprintf("0x%08X", entry),
		"exit":    fmt.Sprintf("0x%08X", cfg.ExitPC),
	}).Info("run")

	cycles, err := c.RunUntil(cfg.ExitPC, cfg.MaxCycles)
	reached := err == nil

	fields := logrus.Fields{
		"cycles": cycles,
		"r0":     fmt.Sprintf("0x%08X", regFile.ReadReg(insts.R0)),
	}
	if reached {
		logger.WithFields(fields).Info("reached exit")
	} else {
		logger.WithFields(fields).WithError(err).Error("run failed")
	}

	if opts.dump {
		printer := pp.New()
		printer.SetOutput(stdout)
		printer.SetColoringEnabled(isTerminal(stdout))
		printer.Println(summarize(c, reached))
	}

	if !reached {
		return 1
	}
	return 0
}
