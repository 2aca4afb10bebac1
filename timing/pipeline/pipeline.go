package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
	"github.com/sarchlab/gbasim/timing/cache"
)

// wordSize is the ARM-state instruction size in bytes.
const wordSize = 4

// ErrThumbState is returned when a fetch is attempted in Thumb state.
var ErrThumbState = fmt.Errorf("fetch in Thumb state: %w", emu.ErrUnimplemented)

// State describes latch occupancy.
type State uint8

// Pipeline states.
const (
	// StateEmpty means nothing has been fetched since reset.
	StateEmpty State = iota
	// StateFilling means only the fetch latch is occupied.
	StateFilling
	// StateSteady means both latches are occupied; one instruction
	// executes per cycle.
	StateSteady
	// StateFlushed means a redirection just cleared both latches.
	StateFlushed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateFilling:
		return "Filling"
	case StateSteady:
		return "Steady"
	case StateFlushed:
		return "Flushed"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Statistics holds pipeline statistics.
type Statistics struct {
	// Cycles is the number of completed Advance calls.
	Cycles uint64
	// Instructions is the number of instructions that reached execute,
	// including those whose condition failed.
	Instructions uint64
	// Skipped is the number of instructions whose condition failed.
	Skipped uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger used for per-cycle debug output.
func WithLogger(logger logrus.FieldLogger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithDecoder sets the decoder used at execute time.
func WithDecoder(decoder *insts.Decoder) PipelineOption {
	return func(p *Pipeline) {
		p.decoder = decoder
	}
}

// WithCache places a line cache between the core and the bus. Fetches and
// data accesses both go through it. An invalid geometry falls back to
// cache.DefaultConfig with a warning.
func WithCache(config cache.Config) PipelineOption {
	return func(p *Pipeline) {
		p.cacheConfig = &config
	}
}

// Pipeline models the ARM7TDMI fetch/decode/execute pipeline. R15 holds the
// address of the next fetch, which is the executing instruction's address
// plus 8 once the pipeline is full.
type Pipeline struct {
	// Latches
	fetch  Latch
	decode Latch

	// Stages
	fetchStage   *FetchStage
	decodeStage  *DecodeStage
	executeStage *ExecuteStage

	// Shared resources
	regFile *emu.RegFile
	bus     emu.Bus
	cache   *cache.Cache
	decoder *insts.Decoder
	logger  logrus.FieldLogger

	cacheConfig *cache.Config

	flushed bool
	debug   bool
	stats   Statistics
}

// debugEnabled reports whether per-cycle Debug entries would be written.
// Loggers that cannot report their level are assumed to want them.
func debugEnabled(logger logrus.FieldLogger) bool {
	switch l := logger.(type) {
	case *logrus.Logger:
		return l.IsLevelEnabled(logrus.DebugLevel)
	case *logrus.Entry:
		return l.Logger.IsLevelEnabled(logrus.DebugLevel)
	}
	return true
}

// NewPipeline creates a pipeline operating on regFile and bus.
func NewPipeline(regFile *emu.RegFile, bus emu.Bus, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		regFile: regFile,
		bus:     bus,
		decoder: insts.NewDecoder(),
		logger:  logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	coreBus := p.bus
	if p.cacheConfig != nil {
		if err := p.cacheConfig.Validate(); err != nil {
			p.logger.WithError(err).Warn("invalid cache config, using default")
		}
		p.cache = cache.NewBusCache(*p.cacheConfig, p.bus)
		coreBus = p.cache
	}

	p.fetchStage = NewFetchStage(coreBus)
	p.decodeStage = NewDecodeStage(p.decoder)
	p.executeStage = NewExecuteStage(regFile, coreBus)

	return p
}

// RegFile returns the register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// Cache returns the line cache, or nil when none is configured.
func (p *Pipeline) Cache() *cache.Cache {
	return p.cache
}

// PC returns the address of the next fetch.
func (p *Pipeline) PC() uint32 {
	return p.regFile.PC()
}

// SetPC empties the pipeline and sets the next fetch address.
func (p *Pipeline) SetPC(pc uint32) {
	p.fetch.Clear()
	p.decode.Clear()
	p.flushed = false
	p.regFile.SetPC(pc)
}

// FetchLatch returns a copy of the fetch latch.
func (p *Pipeline) FetchLatch() Latch {
	return p.fetch
}

// DecodeLatch returns a copy of the decode latch.
func (p *Pipeline) DecodeLatch() Latch {
	return p.decode
}

// State reports latch occupancy.
func (p *Pipeline) State() State {
	switch {
	case p.fetch.Valid && p.decode.Valid:
		return StateSteady
	case p.fetch.Valid:
		return StateFilling
	case p.flushed:
		return StateFlushed
	default:
		return StateEmpty
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Flush clears both latches. R15 must already hold the redirected target.
func (p *Pipeline) Flush() {
	p.fetch.Clear()
	p.decode.Clear()
	p.flushed = true
	p.stats.Flushes++
}

// Reset empties the pipeline and clears statistics.
func (p *Pipeline) Reset() {
	p.fetch.Clear()
	p.decode.Clear()
	p.flushed = false
	p.stats = Statistics{}
	if p.cache != nil {
		p.cache.Reset()
	}
}

// Advance runs one cycle: fetch at R15, execute the word in the decode
// latch, then either shift the latches and step R15 or flush. On error the
// cycle has no effect.
func (p *Pipeline) Advance() error {
	pc := p.regFile.PC()
	p.debug = debugEnabled(p.logger)

	if p.regFile.CPSR.State == emu.StateThumb {
		return fmt.Errorf("advance at 0x%08X: %w", pc, ErrThumbState)
	}

	fetched := p.fetchStage.Fetch(pc)

	var result ExecuteResult
	executed := false
	if p.decode.Valid {
		inst, err := p.decodeStage.Decode(p.decode)
		if err != nil {
			return err
		}

		result, err = p.executeStage.Execute(inst, p.decode.PC)
		if err != nil {
			return err
		}
		executed = true

		if p.debug {
			p.logger.WithFields(logrus.Fields{
				"pc":   fmt.Sprintf("0x%08X", p.decode.PC),
				"word": fmt.Sprintf("0x%08X", p.decode.Word),
				"cond": inst.Cond.String(),
			}).Debugf("execute %v", inst.Format())
		}
	}

	p.stats.Cycles++
	if executed {
		p.stats.Instructions++
		if result.Skipped {
			p.stats.Skipped++
		}
	}

	if result.Outcome == emu.OutcomeRedirected {
		if p.debug {
			p.logger.WithFields(logrus.Fields{
				"target": fmt.Sprintf("0x%08X", p.regFile.PC()),
				"state":  p.regFile.CPSR.State.String(),
			}).Debug("flush")
		}
		p.Flush()
		return nil
	}

	p.decode = p.fetch
	p.fetch = fetched
	p.flushed = false
	p.regFile.SetPC(pc + wordSize)

	return nil
}
