// Package benchmarks provides throughput benchmark infrastructure for
// gearstream pipelines.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/gearstream/config"
	"github.com/sarchlab/gearstream/pipeline"
	"github.com/sarchlab/gearstream/stream"
)

// BenchmarkResult holds the results of a single workload run.
type BenchmarkResult struct {
	// Name identifies the workload
	Name string `json:"name"`

	// Description explains what the workload exercises
	Description string `json:"description"`

	// Ticks is the simulated tick count
	Ticks uint64 `json:"ticks"`

	// WordsIn and WordsOut count words at the source and the sink
	WordsIn  int `json:"words_in"`
	WordsOut int `json:"words_out"`

	// BitsPerTick is the input bit rate achieved
	BitsPerTick float64 `json:"bits_per_tick"`

	// Utilization is the fraction of ticks the gearbox accepted input
	Utilization float64 `json:"utilization"`

	// CompressionRatio is output symbols per input symbol at the encoder
	CompressionRatio float64 `json:"compression_ratio,omitempty"`

	InputStalls  uint64 `json:"input_stalls"`
	OutputStalls uint64 `json:"output_stalls"`
	MissStalls   uint64 `json:"miss_stalls"`
	GateStalls   uint64 `json:"gate_stalls"`

	// Verified is true when the output decoded back to the input
	Verified bool `json:"verified"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Workload defines a single benchmark run.
type Workload struct {
	// Name identifies the workload
	Name string

	// Description explains what the workload exercises
	Description string

	// Configure adjusts the default config
	Configure func(c *config.Config)

	// Words is the input to stream
	Words []stream.Word

	// InputPattern and OutputPattern model producer and device stalls; nil
	// means always.
	InputPattern  func() stream.Pattern
	OutputPattern func() stream.Pattern
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// UseEngine drives runs with the Akita engine
	UseEngine bool

	// Verify decodes every output back to its input
	Verify bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Verify: true,
		Output: os.Stdout,
	}
}

// Harness runs workloads and reports results.
type Harness struct {
	config    HarnessConfig
	workloads []Workload
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{config: config}
}

// AddWorkload adds a workload to the harness.
func (h *Harness) AddWorkload(w Workload) {
	h.workloads = append(h.workloads, w)
}

// AddWorkloads adds multiple workloads to the harness.
func (h *Harness) AddWorkloads(workloads []Workload) {
	h.workloads = append(h.workloads, workloads...)
}

// RunAll executes all workloads and returns results. It stops at the first
// workload that fails to build, run or verify.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.workloads))

	for _, w := range h.workloads {
		result, err := h.run(w)
		if err != nil {
			return results, fmt.Errorf("%s: %w", w.Name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

func (h *Harness) run(w Workload) (BenchmarkResult, error) {
	cfg := config.DefaultConfig()
	if w.Configure != nil {
		w.Configure(cfg)
	}

	var opts []pipeline.Option
	if w.InputPattern != nil {
		opts = append(opts, pipeline.WithInputPattern(w.InputPattern()))
	}
	if w.OutputPattern != nil {
		opts = append(opts, pipeline.WithOutputPattern(w.OutputPattern()))
	}
	if h.config.UseEngine {
		opts = append(opts, pipeline.WithEngine())
	}

	p, err := pipeline.New(cfg, w.Words, opts...)
	if err != nil {
		return BenchmarkResult{}, err
	}

	start := time.Now()
	r, err := p.Run()
	wallTime := time.Since(start)
	if err != nil {
		return BenchmarkResult{}, err
	}

	result := BenchmarkResult{
		Name:         w.Name,
		Description:  w.Description,
		Ticks:        r.Ticks,
		WordsIn:      len(w.Words),
		WordsOut:     len(r.Words),
		InputStalls:  r.Gearbox.InputStalls,
		OutputStalls: r.Gearbox.OutputStalls,
		MissStalls:   r.Sink.MissStalls,
		GateStalls:   r.Sink.GateStalls,
		WallTime:     wallTime,
	}
	if r.Ticks > 0 {
		result.BitsPerTick = float64(r.Gearbox.BitsIn) / float64(r.Ticks)
		result.Utilization = float64(r.Gearbox.WordsIn) / float64(r.Ticks)
	}
	if r.InputMax > 0 {
		result.CompressionRatio = r.Encoder.Ratio()
	}

	if h.config.Verify {
		if err := pipeline.Verify(cfg, w.Words, r.Words); err != nil {
			return result, err
		}
		result.Verified = true
	}

	return result, nil
}

// PrintResults outputs results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	out := h.config.Output
	_, _ = fmt.Fprintln(out, "=== gearstream Throughput Results ===")
	_, _ = fmt.Fprintln(out, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "Workload: %s\n", r.Name)
		_, _ = fmt.Fprintf(out, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(out, "  Ticks:         %d\n", r.Ticks)
		_, _ = fmt.Fprintf(out, "  Words in/out:  %d / %d\n", r.WordsIn, r.WordsOut)
		_, _ = fmt.Fprintf(out, "  Bits/tick:     %.3f\n", r.BitsPerTick)
		_, _ = fmt.Fprintf(out, "  Utilization:   %.3f\n", r.Utilization)
		if r.CompressionRatio > 0 {
			_, _ = fmt.Fprintf(out, "  Compression:   %.3f\n", r.CompressionRatio)
		}
		_, _ = fmt.Fprintf(out, "  Input stalls:  %d\n", r.InputStalls)
		_, _ = fmt.Fprintf(out, "  Output stalls: %d\n", r.OutputStalls)
		_, _ = fmt.Fprintf(out, "  Miss stalls:   %d\n", r.MissStalls)
		_, _ = fmt.Fprintf(out, "  Gate stalls:   %d\n", r.GateStalls)
		_, _ = fmt.Fprintf(out, "  Verified: %t\n", r.Verified)
		_, _ = fmt.Fprintf(out, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(out, "")
	}
}

// PrintCSV outputs results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	out := h.config.Output
	_, _ = fmt.Fprintln(out,
		"name,ticks,words_in,words_out,bits_per_tick,utilization,compression,input_stalls,output_stalls,miss_stalls,gate_stalls")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "%s,%d,%d,%d,%.3f,%.3f,%.3f,%d,%d,%d,%d\n",
			r.Name,
			r.Ticks,
			r.WordsIn,
			r.WordsOut,
			r.BitsPerTick,
			r.Utilization,
			r.CompressionRatio,
			r.InputStalls,
			r.OutputStalls,
			r.MissStalls,
			r.GateStalls,
		)
	}
}

// PrintJSON outputs results as a JSON array.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	enc := json.NewEncoder(h.config.Output)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
