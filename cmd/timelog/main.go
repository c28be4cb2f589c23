// Package main provides the one-shot time log submitter.
// It reads a JSON task list, submits it and prints a result table.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/timelog/pkg/config"
	"github.com/entrhq/timelog/pkg/logging"
	"github.com/entrhq/timelog/pkg/metadata"
	"github.com/entrhq/timelog/pkg/timelog"
	"github.com/entrhq/timelog/pkg/types"
)

const version = "0.1.0"

var debugLog = logging.MustNew("cli")

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile   string
	TasksFile    string
	InspectFile  string
	ClearSession bool
	JSON         bool
	LogLevel     string
	ShowVersion  bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("timelog v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cli, os.Stdin, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		os.Exit(1)
	}
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML); defaults to $"+config.EnvConfigPath)
	flag.StringVar(&cli.TasksFile, "tasks", "", "JSON file with the tasks to submit, or - for stdin")
	flag.StringVar(&cli.InspectFile, "inspect", "", "Print the form metadata of a saved time log page and exit")
	flag.BoolVar(&cli.ClearSession, "clear-session", false, "Drop the cached session before running")
	flag.BoolVar(&cli.JSON, "json", false, "Print results as JSON")
	flag.StringVar(&cli.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "timelog - submit time log entries\n\n")
		fmt.Fprintf(os.Stderr, "Usage: timelog [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Submit a task list\n")
		fmt.Fprintf(os.Stderr, "  timelog -tasks today.json\n\n")
		fmt.Fprintf(os.Stderr, "  # Pipe tasks in and print JSON\n")
		fmt.Fprintf(os.Stderr, "  cat today.json | timelog -tasks - -json\n\n")
		fmt.Fprintf(os.Stderr, "  # Check what the extractor sees on a saved page\n")
		fmt.Fprintf(os.Stderr, "  timelog -inspect timelogs.html\n\n")
	}

	flag.Parse()
	return cli
}

func run(ctx context.Context, cli *CLIConfig, stdin io.Reader, stdout io.Writer) error {
	if cli.InspectFile != "" {
		return inspect(cli.InspectFile, cli.JSON, stdout)
	}

	cfg, err := config.Resolve(cli.ConfigFile, nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	level := cfg.Logging.Level
	if cli.LogLevel != "" {
		level = cli.LogLevel
	}
	logging.SetLevel(logging.ParseLevel(level))

	svc, cleanup, err := timelog.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cleanup(); cerr != nil {
			fmt.Fprintln(os.Stderr, renderError(cerr))
		}
	}()

	if cli.ClearSession {
		if err := svc.ClearSession(ctx); err != nil {
			return err
		}
		if cli.TasksFile == "" {
			fmt.Fprintln(stdout, mutedStyle.Render("session cleared"))
			return nil
		}
	}

	if cli.TasksFile == "" {
		return fmt.Errorf("-tasks is required")
	}
	tasks, err := readTasks(cli.TasksFile, stdin)
	if err != nil {
		return err
	}

	debugLog.Infof("submitting %d tasks from %s", len(tasks), cli.TasksFile)
	results, err := svc.Submit(ctx, tasks)
	if err != nil {
		return err
	}

	if cli.JSON {
		return writeJSON(stdout, results)
	}
	fmt.Fprintln(stdout, renderResults(results))
	fmt.Fprintln(stdout, mutedStyle.Render("log: "+debugLog.LogPath()))
	return nil
}

// readTasks accepts either a bare array or the {"tasks": [...]} body the
// server takes.
func readTasks(path string, stdin io.Reader) ([]types.TaskRequest, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	var tasks []types.TaskRequest
	if err := json.Unmarshal(data, &tasks); err == nil {
		return tasks, nil
	}

	var body struct {
		Tasks []types.TaskRequest `json:"tasks"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to parse tasks: %w", err)
	}
	if body.Tasks == nil {
		return nil, fmt.Errorf("failed to parse tasks: 'tasks' must be an array")
	}
	return body.Tasks, nil
}

func inspect(path string, asJSON bool, stdout io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()

	doc, err := metadata.ParseDocument(f)
	if err != nil {
		return err
	}
	meta, err := metadata.Extract(doc)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(stdout, meta)
	}
	fmt.Fprintln(stdout, renderMetadata(meta))
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
