// Package main serves the time log submitter over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/entrhq/timelog/pkg/config"
	"github.com/entrhq/timelog/pkg/logging"
	"github.com/entrhq/timelog/pkg/server"
	"github.com/entrhq/timelog/pkg/timelog"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	Addr        string
	LogLevel    string
	Quiet       bool
	ShowVersion bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("timelog-server v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cli); err != nil {
		stop()
		log.Printf("Server failed: %v", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML); defaults to $"+config.EnvConfigPath)
	flag.StringVar(&cli.Addr, "addr", "", "Listen address; defaults to server.addr or :$"+config.EnvPort)
	flag.StringVar(&cli.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flag.BoolVar(&cli.Quiet, "quiet", false, "Do not mirror the log to stderr")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "timelog-server - HTTP front door for the time log submitter\n\n")
		fmt.Fprintf(os.Stderr, "Usage: timelog-server [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEndpoints:\n")
		fmt.Fprintf(os.Stderr, "  POST   /submit-tasks  {\"tasks\": [...]}\n")
		fmt.Fprintf(os.Stderr, "  DELETE /session\n")
		fmt.Fprintf(os.Stderr, "  GET    /healthz\n\n")
	}

	flag.Parse()
	return cli
}

func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := config.Resolve(cli.ConfigFile, nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.Logging.Level
	if cli.LogLevel != "" {
		level = cli.LogLevel
	}
	logging.SetLevel(logging.ParseLevel(level))
	if logging.ParseLevel(level) != logging.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	if !cli.Quiet {
		logging.SetMirror(os.Stderr)
	}

	addr := cfg.Server.Addr
	if cli.Addr != "" {
		addr = cli.Addr
	}

	svc, cleanup, err := timelog.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cleanup(); cerr != nil {
			log.Printf("cleanup failed: %v", cerr)
		}
	}()

	return server.New(svc).ListenAndServe(ctx, addr)
}
