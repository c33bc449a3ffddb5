// Package main implements a CHIP-8 emulator with SDL and terminal front-ends
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chirpvm/chirp8/internal/chip8"
	"github.com/chirpvm/chirp8/pkg/sdl"
	"github.com/chirpvm/chirp8/pkg/term"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

type optionFlags struct {
	rom string

	ui     string
	cycles int

	trace bool
	debug bool
	quiet bool
}

func main() {
	options := readArguments()
	logger := createLogger(options)

	if !options.quiet {
		printBanner(options)
	}

	if err := run(options, logger); err != nil {
		logger.Fatal(err.Error())
	}
}

func readArguments() optionFlags {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	options := optionFlags{}

	flags.StringVar(&options.ui, "ui", "sdl", "front-end to use: sdl, term")
	flags.IntVar(&options.cycles, "cycles", 10, "instruction cycles to run per 1/60s frame")
	flags.BoolVar(&options.trace, "trace", false, "log every executed instruction")
	flags.BoolVar(&options.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&options.quiet, "q", false, "perform operations quietly")

	err := flags.Parse(os.Args[1:])
	args := flags.Args()

	if err != nil || len(args) == 0 {
		printBanner(options)
		fmt.Printf("usage: chirp8 [options] <CHIP-8 ROM file>\n\n")
		flags.PrintDefaults()
		os.Exit(1)
	}
	options.rom = args[0]

	return options
}

func createLogger(options optionFlags) *log.Logger {
	cfg := log.DefaultConfig()
	if options.debug || options.trace {
		cfg.Level = log.DebugLevel
	} else if options.quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

func printBanner(options optionFlags) {
	if !options.quiet {
		fmt.Println("[----------------------------]")
		fmt.Println("[ chirp8 - a CHIP-8 emulator ]")
		fmt.Printf("[----------------------------]\n\n")
		fmt.Printf("version: %s\n\n", buildinfo.Version(version, commit, date))
	}
}

func run(options optionFlags, logger *log.Logger) error {
	data, err := os.ReadFile(options.rom)
	if err != nil {
		return fmt.Errorf("reading ROM file '%s': %w", options.rom, err)
	}

	vm := chip8.New(logger)
	vm.LoadROM(data)

	ctx := app.Context()

	switch options.ui {
	case "sdl":
		io := sdl.NewIO(vm, logger, options.cycles, options.trace)
		if err := io.SetupWindow("chirp8 | CHIP-8 Emulator"); err != nil {
			return err
		}
		defer io.Destroy()
		return io.Loop(ctx)

	case "term":
		ui := term.New(vm, logger, options.cycles, options.trace)
		return ui.Run(ctx)

	default:
		return fmt.Errorf("unsupported front-end '%s'", options.ui)
	}
}
