// Package main provides gearsim, the command-line front end that streams a
// word file through the gearbox, FIFO, zero run-length encoder and memory
// sink described by a config file.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sarchlab/gearstream/config"
	"github.com/sarchlab/gearstream/logging"
	"github.com/sarchlab/gearstream/pipeline"
	"github.com/sarchlab/gearstream/stream"
)

var (
	configPath = flag.String("config", "", "Path to run configuration (.json, .toml, .yaml)")
	outPath    = flag.String("out", "", "Write output words to this file")
	verify     = flag.Bool("verify", false, "Check that the output decodes back to the input")
	useEngine  = flag.Bool("engine", false, "Drive the run with the Akita event engine")
	logLevel   = flag.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	verbose    = flag.Bool("v", false, "Verbose output")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: gearsim [options] <words-file>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logging.ConfigureRuntime()
	if lvl, ok := logging.ParseLevel(*logLevel); ok {
		zerolog.SetGlobalLevel(lvl)
	} else if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	os.Exit(run(flag.Arg(0)))
}

func run(inputPath string) int {
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			return 1
		}
	}

	words, err := readWords(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading words: %v\n", err)
		return 1
	}

	var opts []pipeline.Option
	if *useEngine {
		opts = append(opts, pipeline.WithEngine())
	}
	p, err := pipeline.New(cfg, words, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building pipeline: %v\n", err)
		return 1
	}

	start := time.Now()
	result, err := p.Run()
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running pipeline: %v\n", err)
		if result == nil {
			return 1
		}
	}

	report(inputPath, words, result, elapsed)

	if *outPath != "" {
		if err := writeWords(*outPath, result); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			return 1
		}
	}

	if *verify {
		if err := pipeline.Verify(cfg, words, result.Words); err != nil {
			fmt.Fprintf(os.Stderr, "Verification failed: %v\n", err)
			return 1
		}
		fmt.Printf("Verification: OK\n")
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	if result.Stuck {
		return 1
	}
	return 0
}

func readWords(path string) ([]stream.Word, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return parseWords(f)
}

func writeWords(path string, result *pipeline.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := formatWords(f, result.Words, result.OutputWidth); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func report(inputPath string, words []stream.Word, r *pipeline.Result, elapsed time.Duration) {
	log.Debug().Str("run", r.RunID).Dur("elapsed", elapsed).Msg("report")

	ticks := r.Ticks
	if ticks == 0 {
		ticks = 1
	}

	fmt.Printf("\n")
	fmt.Printf("Input: %s\n", inputPath)
	fmt.Printf("Words in:  %d\n", len(words))
	fmt.Printf("Words out: %d (%d-bit)\n", len(r.Words), r.OutputWidth)
	fmt.Printf("Packets:   %d\n", r.Packets)
	fmt.Printf("Ticks:     %d\n", r.Ticks)
	fmt.Printf("Transfers/tick: %.2f\n", r.Simulator.TransfersPerTick())
	fmt.Printf("\n")
	fmt.Printf("Gearbox:\n")
	fmt.Printf("  Bits in/out:   %d / %d\n", r.Gearbox.BitsIn, r.Gearbox.BitsOut)
	fmt.Printf("  Padding bits:  %d\n", r.Gearbox.PaddingBits)
	fmt.Printf("  Input stalls:  %4d ticks (%5.1f%%)\n",
		r.Gearbox.InputStalls, 100.0*float64(r.Gearbox.InputStalls)/float64(ticks))
	fmt.Printf("  Output stalls: %4d ticks (%5.1f%%)\n",
		r.Gearbox.OutputStalls, 100.0*float64(r.Gearbox.OutputStalls)/float64(ticks))
	if r.FIFOMaxLevel > 0 {
		fmt.Printf("FIFO max level:  %d\n", r.FIFOMaxLevel)
	}
	if r.InputMax > 0 {
		fmt.Printf("Encoder:\n")
		fmt.Printf("  Literals:  %d\n", r.Encoder.Literals)
		fmt.Printf("  Runs:      %d (%d codes)\n", r.Encoder.Runs, r.Encoder.RunCodes)
		fmt.Printf("  Ratio:     %.3f\n", r.Encoder.Ratio())
	}
	fmt.Printf("Sink:\n")
	fmt.Printf("  Bursts:        %d\n", r.Sink.Bursts)
	fmt.Printf("  Miss stalls:   %d\n", r.Sink.MissStalls)
	fmt.Printf("  Gate stalls:   %d\n", r.Sink.GateStalls)
	fmt.Printf("  Line hit rate: %.1f%%\n", 100.0*r.Sink.Cache.HitRate())
	if *verbose {
		fmt.Printf("Elapsed: %v\n", elapsed)
	}
}
