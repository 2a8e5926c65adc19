// Package main implements the zkconnect binary: it forwards realtime
// attendance punches from a ZKTeco terminal to an HTTP endpoint. It is
// meant to run under a process supervisor; every fatal fault exits
// non-zero so the supervisor restarts it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/otiza/ZkConnectSolution/internal/config"
	"github.com/otiza/ZkConnectSolution/internal/device"
	"github.com/otiza/ZkConnectSolution/internal/forward"
	applog "github.com/otiza/ZkConnectSolution/internal/log"
	"github.com/otiza/ZkConnectSolution/internal/relay"
	"github.com/otiza/ZkConnectSolution/internal/translog"
)

// Options holds the process-level configuration. Everything about the
// device and the endpoint lives in the YAML file.
type Options struct {
	Config   string `short:"c" env:"ZKCONNECT_CONF" long:"config" description:"Path to the YAML config file" default:"config.yaml"`
	LogLevel string `short:"l" env:"ZKCONNECT_LOG_LEVEL" long:"log-level" description:"Log level: debug|info|warn|error" default:"info"`
	Version  bool   `short:"v" long:"version" description:"Show version information"`
	Help     bool
}

// Exit codes, one per fault class, so supervisor logs show what died.
const (
	exitUsage   = 1
	exitConfig  = 2
	exitConnect = 3
	exitStream  = 4
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ParseCLI parses command-line arguments and returns the options
func ParseCLI(args []string) (cmdOpts *Options, err error) {
	cmdOpts = new(Options)
	parser := flags.NewParser(cmdOpts, flags.HelpFlag)
	nonParsedArgs, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			cmdOpts.Help = true
		}
		if !flags.WroteHelp(err) {
			parser.WriteHelp(os.Stdout)
		}
		return cmdOpts, err
	}
	if len(nonParsedArgs) > 0 { // we don't expect any non-parsed arguments
		return cmdOpts, fmt.Errorf("unknown argument(s): %v", nonParsedArgs)
	}
	return
}

// ShowVersion prints version information and exits
func ShowVersion() {
	fmt.Printf("zkconnect version %s\n", version)
	if commit != "none" && commit != "" {
		fmt.Printf("commit: %s\n", commit)
	}
	if date != "unknown" && date != "" {
		fmt.Printf("built: %s\n", date)
	}
}

// SetupLogging configures the operational logger on stderr
func SetupLogging(logLevel string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(applog.NewFormatter(false))

	logrus.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
		"pid":     os.Getpid(),
	}).Info("zkconnect logging initialized")

	return nil
}

// SetupCloseHandler creates a 'listener' on a new goroutine which will
// notify the program if it receives an interrupt from the OS. We then
// handle this by calling our clean up procedure and exiting the program.
func SetupCloseHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logrus.Debug("SetupCloseHandler received an interrupt from OS. Closing session...")
		cancel()
	}()
}

func main() {
	os.Exit(run())
}

func run() int {
	// Quick check for version flags before full parsing
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			ShowVersion()
			return 0
		}
	}

	opts, err := ParseCLI(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		fmt.Printf("Error: %s\n", err)
		return exitUsage
	}

	if err := SetupLogging(opts.LogLevel); err != nil {
		fmt.Printf("Error: %s\n", err)
		return exitUsage
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		logrus.WithError(err).Error("Failed to load configuration")
		// The configured log file name is unknown here; record the
		// fault in the default one.
		tlog := translog.Open(translog.DefaultFilename, false)
		tlog.Fault("config", err)
		_ = tlog.Close()
		return exitConfig
	}

	tlog := translog.Open(cfg.Log.Filename, cfg.Log.Split)
	defer func() {
		_ = tlog.Close()
	}()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SetupCloseHandler(cancel)

	terminal, err := device.Dial(cfg.Device.Host, cfg.Device.Port, cfg.Device.Timezone)
	if err != nil {
		logrus.WithError(err).Error("Failed to connect to attendance terminal")
		tlog.Fault("connect", err)
		return exitConnect
	}
	defer func() {
		if err := terminal.Disconnect(); err != nil {
			logrus.WithError(err).Warn("Failed to disconnect from terminal")
		}
	}()

	forwarder := forward.New(cfg.Endpoint, forward.Options{
		Timeout:     cfg.Forwarder.Timeout,
		MaxAttempts: cfg.Forwarder.MaxAttempts,
	})

	service := relay.NewService(terminal, forwarder, tlog, cfg.Transmission, cfg.Log.Split)
	if err := service.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			logrus.Info("Graceful shutdown completed")
			return 0
		}
		logrus.WithError(err).Error("Event processing stopped")
		tlog.Fault("stream", err)
		return exitStream
	}
	return 0
}
