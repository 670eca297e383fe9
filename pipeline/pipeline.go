// Package pipeline assembles a complete gearstream run from a config:
// a word source, the gearbox, an optional FIFO, an optional zero run-length
// encoder and the memory sink.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sarchlab/gearstream/config"
	"github.com/sarchlab/gearstream/fifo"
	"github.com/sarchlab/gearstream/gearbox"
	"github.com/sarchlab/gearstream/logging"
	"github.com/sarchlab/gearstream/rle"
	"github.com/sarchlab/gearstream/stream"
	"github.com/sarchlab/gearstream/timing/cache"
	"github.com/sarchlab/gearstream/timing/core"
	"github.com/sarchlab/gearstream/timing/engine"
	"github.com/sarchlab/gearstream/timing/sink"
)

var (
	// ErrStuck is returned when a run stopped without draining its input.
	ErrStuck = errors.New("pipeline stopped making progress")

	// ErrBadInput is returned for input words that do not fit the input
	// stream.
	ErrBadInput = errors.New("input word does not fit the input stream")
)

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithInputPattern sets when the source offers words.
func WithInputPattern(p stream.Pattern) Option {
	return func(pl *Pipeline) {
		pl.inputPattern = p
	}
}

// WithOutputPattern sets when the sink device accepts words.
func WithOutputPattern(p stream.Pattern) Option {
	return func(pl *Pipeline) {
		pl.outputPattern = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(pl *Pipeline) {
		pl.log = logger
	}
}

// WithEngine runs the simulation on the Akita serial engine instead of a
// plain tick loop.
func WithEngine() Option {
	return func(pl *Pipeline) {
		pl.useEngine = true
	}
}

// WithIdleLimit overrides the number of ticks without a transfer after which
// a run is abandoned.
func WithIdleLimit(ticks uint64) Option {
	return func(pl *Pipeline) {
		pl.idleLimit = ticks
	}
}

// WithMemory sets the store the sink drains into.
func WithMemory(m *cache.Memory) Option {
	return func(pl *Pipeline) {
		pl.memory = m
	}
}

// Result summarizes a run.
type Result struct {
	RunID string

	// Words are the words the sink accepted, in order.
	Words []stream.Word
	// Stored holds the payloads read back from memory after the flush.
	Stored []uint64

	// Packets is the number of completed packets at the sink.
	Packets int
	// OutputWidth is the width of the words at the sink.
	OutputWidth int
	// InputMax is the encoder literal bound, zero without an encoder.
	InputMax uint64

	Ticks     uint64
	Stuck     bool
	Simulator core.Statistics
	Gearbox   gearbox.Statistics
	Encoder   rle.Statistics
	Sink      sink.Statistics

	// FIFOMaxLevel is the highest FIFO occupancy, zero without a FIFO.
	FIFOMaxLevel int
}

// Pipeline is an assembled run.
type Pipeline struct {
	config *config.Config

	input   *stream.Stream
	source  *stream.Source
	gearbox *gearbox.Gearbox
	fifo    *fifo.FIFO
	encoder *rle.Encoder
	lines   *cache.Cache
	sink    *sink.MemorySink
	memory  *cache.Memory

	simulator *core.Simulator
	total     int

	inputPattern  stream.Pattern
	outputPattern stream.Pattern
	useEngine     bool
	idleLimit     uint64

	log zerolog.Logger
}

// New validates cfg and builds the stages that carry words to memory.
func New(cfg *config.Config, words []stream.Word, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		config:        cfg.Clone(),
		inputPattern:  stream.Always(),
		outputPattern: stream.Always(),
		idleLimit:     core.DefaultIdleLimit,
		log:           logging.Logger("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.memory == nil {
		p.memory = cache.NewMemory()
	}

	if err := p.build(words); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Pipeline) build(words []stream.Word) error {
	cfg := p.config

	p.input = stream.New("input", stream.Shape{
		Width: cfg.Gearbox.InputWidth,
		Last:  cfg.Gearbox.Packetized,
	})
	if err := checkWords(p.input.Shape(), words); err != nil {
		return err
	}
	p.source = stream.NewSource("source", p.input, words, p.inputPattern)
	p.total = len(words)

	var err error
	p.gearbox, err = gearbox.New(p.input, cfg.Gearbox.OutputWidth)
	if err != nil {
		return err
	}
	tail := p.gearbox.Output()
	components := []stream.Component{p.source, p.gearbox}

	if cfg.FIFO.Depth > 0 {
		p.fifo, err = fifo.New(tail, cfg.FIFO.Depth)
		if err != nil {
			return err
		}
		tail = p.fifo.Output()
		components = append(components, p.fifo)
	}

	if cfg.RLE.Enabled {
		p.encoder, err = rle.NewEncoder(tail, cfg.RLE.Code())
		if err != nil {
			return err
		}
		tail = p.encoder.Output()
		components = append(components, p.encoder)
	}

	p.lines, err = cache.New(cfg.Sink.Cache(), p.memory)
	if err != nil {
		return err
	}

	sinkOpts := []sink.Option{sink.WithDevicePattern(p.outputPattern)}
	if p.fifo != nil && cfg.Sink.BurstThreshold > 0 {
		sinkOpts = append(sinkOpts, sink.WithBurstGate(p.burstGate()))
	}
	p.sink, err = sink.New("sink", tail, p.lines, cfg.Sink.BaseAddr, sinkOpts...)
	if err != nil {
		return err
	}
	components = append(components, p.sink)

	p.simulator = core.NewSimulator(
		core.WithIdleLimit(p.idleLimit),
		core.WithMaxTicks(cfg.MaxTicks),
		core.WithLogger(p.log),
	)
	p.simulator.Add(components...)

	return nil
}

// burstGate opens once the FIFO holds a full burst or nothing more will
// arrive from the source.
func (p *Pipeline) burstGate() sink.Gate {
	threshold := p.config.Sink.BurstThreshold
	return func() bool {
		return p.fifo.Level() >= threshold || p.source.Done()
	}
}

// Simulator returns the simulator driving the stages.
func (p *Pipeline) Simulator() *core.Simulator { return p.simulator }

// Gearbox returns the gearbox stage.
func (p *Pipeline) Gearbox() *gearbox.Gearbox { return p.gearbox }

// FIFO returns the FIFO stage, nil when disabled.
func (p *Pipeline) FIFO() *fifo.FIFO { return p.fifo }

// Encoder returns the encoder stage, nil when disabled.
func (p *Pipeline) Encoder() *rle.Encoder { return p.encoder }

// Sink returns the memory sink.
func (p *Pipeline) Sink() *sink.MemorySink { return p.sink }

// Memory returns the store behind the sink.
func (p *Pipeline) Memory() *cache.Memory { return p.memory }

// Run simulates until the input is drained and returns the result. A run that
// ends with words still pending returns the partial result and ErrStuck.
func (p *Pipeline) Run() (*Result, error) {
	log, runID := logging.WithRun(p.log)
	log.Info().
		Int("in", p.config.Gearbox.InputWidth).
		Int("out", p.config.Gearbox.OutputWidth).
		Bool("rle", p.encoder != nil).
		Int("fifo", p.config.FIFO.Depth).
		Bool("engine", p.useEngine).
		Msg("run started")

	var ticks uint64
	if p.useEngine {
		var err error
		ticks, err = engine.Run(p.simulator, engine.FrequencyMHz(p.config.Clock.FrequencyMHz))
		if err != nil {
			return nil, err
		}
	} else {
		ticks = p.simulator.Run()
	}

	p.sink.Flush()
	result := p.result(runID, ticks)

	log.Info().
		Uint64("ticks", result.Ticks).
		Int("words", len(result.Words)).
		Int("packets", result.Packets).
		Float64("hit_rate", result.Sink.Cache.HitRate()).
		Msg("run finished")

	if result.Stuck || !p.source.Done() {
		result.Stuck = true
		return result, fmt.Errorf("%d of %d words sent after %d ticks: %w",
			p.source.Sent(), p.total, ticks, ErrStuck)
	}

	return result, nil
}

func (p *Pipeline) result(runID string, ticks uint64) *Result {
	r := &Result{
		RunID:       runID,
		Words:       append([]stream.Word(nil), p.sink.Words()...),
		Stored:      p.sink.ReadBack(),
		Packets:     len(p.sink.Packets()),
		OutputWidth: p.sink.Input().PayloadWidth(),
		Ticks:       ticks,
		Stuck:       p.simulator.Stuck(),
		Simulator:   p.simulator.Stats(),
		Gearbox:     p.gearbox.Stats(),
		Sink:        p.sink.Stats(),
	}
	if p.encoder != nil {
		r.InputMax = p.encoder.InputMax()
		r.Encoder = p.encoder.Stats()
	}
	if p.fifo != nil {
		r.FIFOMaxLevel = p.fifo.MaxLevel()
	}
	return r
}

func checkWords(shape stream.Shape, words []stream.Word) error {
	for i, w := range words {
		if w.Payload&^shape.Mask() != 0 {
			return fmt.Errorf("word %d: 0x%x wider than %d bits: %w",
				i, w.Payload, shape.Width, ErrBadInput)
		}
		if w.Last && !shape.Last {
			return fmt.Errorf("word %d: last on a basic stream: %w", i, ErrBadInput)
		}
	}
	return nil
}
