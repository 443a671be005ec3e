// klipper-host runs the motion filter host. It loads the printer
// config, binds the input shaper and smooth axis filters to the
// machine's steppers, and serves a Moonraker-compatible status API.
//
// Usage:
//
//	klipper-host -config ~/printer.cfg [options]
//
// Options:
//
//	-config string    Printer configuration file (required)
//	-moonraker string Moonraker API server address (default ":7125")
//	-loglevel string  Log level: debug, info, warn, error (default "info")
//	-logjson          Emit logs as JSON
//	-logfile string   Log file path (default: stderr)
//
// Commands are also accepted on stdin, one per line:
//
//	SET_INPUT_SHAPER AXIS=stepper_x TYPE=ei SPRING_PERIOD=0.025
//	SET_SMOOTH_AXIS SMOOTHER_FREQ_X=48.8
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nonanon1/klipper/pkg/config"
	"github.com/nonanon1/klipper/pkg/errors"
	"github.com/nonanon1/klipper/pkg/gcode"
	"github.com/nonanon1/klipper/pkg/inputshaper"
	"github.com/nonanon1/klipper/pkg/kinematics"
	"github.com/nonanon1/klipper/pkg/log"
	"github.com/nonanon1/klipper/pkg/moonraker"
	"github.com/nonanon1/klipper/pkg/printer"
	"github.com/nonanon1/klipper/pkg/smoothaxis"
	"github.com/nonanon1/klipper/pkg/toolhead"
)

func main() {
	configFile := flag.String("config", "", "Printer configuration file (required)")
	moonrakerAddr := flag.String("moonraker", ":7125", "Moonraker API server address")
	logLevel := flag.String("loglevel", "info", "Log level: debug, info, warn, error")
	logJSON := flag.Bool("logjson", false, "Emit logs as JSON")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logWriter := os.Stderr
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logWriter = f
	}
	logger := log.New(logWriter, log.ParseLevel(*logLevel))
	if *logJSON {
		logger.SetFormat(log.FormatJSON)
	}

	if err := run(*configFile, *moonrakerAddr, logger); err != nil {
		logger.Error("startup failed: %v", err)
		os.Exit(1)
	}
}

func run(configFile, moonrakerAddr string, logger *log.Logger) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	printerSection, err := cfg.GetSection("printer")
	if err != nil {
		return err
	}
	kinType, err := printerSection.GetChoice("kinematics",
		[]string{"cartesian", "corexy"})
	if err != nil {
		return err
	}
	kin, err := kinematics.New(kinType)
	if err != nil {
		return err
	}
	logger.InfoFields("host starting", log.Fields{
		"config":     configFile,
		"kinematics": kinType,
	})

	pr := printer.New(logger)
	th := toolhead.New(kin, logger)
	defer th.Close()
	// Stepper sections describe hardware below the scheduler boundary;
	// mark them read so they stay out of the unused-section report.
	for _, s := range kin.GetSteppers() {
		cfg.GetSectionOptional(s.GetName())
	}
	if err := pr.AddObject("toolhead", th); err != nil {
		return err
	}
	dispatcher := gcode.NewDispatcher(logger)

	registry := config.NewRegistry()
	registry.RegisterPrefix("input_shaper", func(section *config.Section) (config.Module, error) {
		return inputshaper.New(section, pr, dispatcher, logger)
	})
	registry.Register("smooth_axis", func(section *config.Section) (config.Module, error) {
		return smoothaxis.New(section, pr, dispatcher, logger)
	})
	modules, err := registry.LoadModules(cfg)
	if err != nil {
		return err
	}
	for name, module := range modules {
		if err := pr.AddObject(name, module); err != nil {
			return err
		}
	}
	for _, name := range cfg.GetUnusedSections() {
		logger.Warn("config section [%s] is not used", name)
	}

	if err := pr.Connect(); err != nil {
		if errors.IsFatal(err) {
			return fmt.Errorf("connect: %w", err)
		}
		logger.Warn("connect finished with non-fatal error: %v", err)
	}

	server := moonraker.New(moonrakerAddr, moonraker.NewPrinterAdapter(pr, dispatcher), logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("status API server stopped: %v", err)
		}
	}()
	defer server.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	lineCh := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lineCh <- scanner.Text()
		}
		close(lineCh)
	}()

	logger.Info("host ready, status API on %s", moonrakerAddr)
	for {
		select {
		case <-sigCh:
			logger.Info("shutdown signal received")
			return nil
		case line, ok := <-lineCh:
			if !ok {
				return nil
			}
			responses, err := dispatcher.Dispatch(line)
			if err != nil {
				fmt.Fprintf(os.Stdout, "!! %v\n", err)
				continue
			}
			for _, resp := range responses {
				fmt.Fprintf(os.Stdout, "// %s\n", resp)
			}
		}
	}
}
