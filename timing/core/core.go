// Package core provides the host-facing CPU core model.
// It wraps the pipeline implementation to provide a high-level interface.
package core

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/timing/cache"
	"github.com/sarchlab/gbasim/timing/pipeline"
)

// ErrCycleBudget is returned by RunUntil when the exit address is not
// reached within the cycle budget.
var ErrCycleBudget = errors.New("cycle budget exhausted")

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions that reached execute.
	Instructions uint64
	// Skipped is the number of instructions whose condition failed.
	Skipped uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
}

// CoreOption is a functional option for configuring the Core.
type CoreOption func(*Core)

// WithLogger sets the logger for the core and its pipeline.
func WithLogger(logger logrus.FieldLogger) CoreOption {
	return func(c *Core) {
		c.logger = logger
		c.pipeOpts = append(c.pipeOpts, pipeline.WithLogger(logger))
	}
}

// WithCache places a line cache in front of the bus.
func WithCache(config cache.Config) CoreOption {
	return func(c *Core) {
		c.pipeOpts = append(c.pipeOpts, pipeline.WithCache(config))
	}
}

// Core represents an ARM7TDMI core stepping one pipeline cycle per tick.
// A failing cycle halts the core; the error is kept for inspection.
type Core struct {
	// Pipeline is the underlying three-stage pipeline.
	Pipeline *pipeline.Pipeline

	// Shared resources
	regFile *emu.RegFile
	bus     emu.Bus

	logger   logrus.FieldLogger
	pipeOpts []pipeline.PipelineOption
	err      error
}

// NewCore creates a new Core with the given register file and bus.
func NewCore(regFile *emu.RegFile, bus emu.Bus, opts ...CoreOption) *Core {
	c := &Core{
		regFile: regFile,
		bus:     bus,
		logger:  logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Pipeline = pipeline.NewPipeline(regFile, bus, c.pipeOpts...)

	return c
}

// RegFile returns the register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// SetPC empties the pipeline and sets the next fetch address.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// PC returns the address of the next fetch.
func (c *Core) PC() uint32 {
	return c.Pipeline.PC()
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() error {
	if c.err != nil {
		return c.err
	}

	if err := c.Pipeline.Advance(); err != nil {
		c.err = err
		c.logger.WithFields(logrus.Fields{
			"pc":    fmt.Sprintf("0x%08X", c.Pipeline.PC()),
			"cycle": c.Pipeline.Stats().Cycles,
		}).Warnf("core halted: %v", err)
		return err
	}

	return nil
}

// Halted returns true if a cycle has failed.
func (c *Core) Halted() bool {
	return c.err != nil
}

// Err returns the error that halted the core, if any.
func (c *Core) Err() error {
	return c.err
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Instructions: pipeStats.Instructions,
		Skipped:      pipeStats.Skipped,
		Flushes:      pipeStats.Flushes,
	}
}

// RunCycles executes the core for the specified number of cycles.
// It stops early if a cycle fails.
func (c *Core) RunCycles(cycles uint64) error {
	for i := uint64(0); i < cycles; i++ {
		if err := c.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunUntil ticks until the next fetch address equals exitPC, returning the
// number of cycles run. It fails with ErrCycleBudget after maxCycles.
func (c *Core) RunUntil(exitPC uint32, maxCycles uint64) (uint64, error) {
	for cycles := uint64(0); ; cycles++ {
		if c.PC() == exitPC {
			return cycles, nil
		}
		if cycles == maxCycles {
			return cycles, fmt.Errorf("run to 0x%08X: %w after %d cycles", exitPC, ErrCycleBudget, cycles)
		}
		if err := c.Tick(); err != nil {
			return cycles, err
		}
	}
}

// Reset clears pipeline state, statistics and any halt error.
// Registers and memory are left as they are.
func (c *Core) Reset() {
	c.Pipeline.Reset()
	c.err = nil
}
