package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/tsdata/refinery/internal/api"
	"github.com/tsdata/refinery/internal/config"
	"github.com/tsdata/refinery/internal/history"
	"github.com/tsdata/refinery/internal/logging"
	"github.com/tsdata/refinery/pkg/dataset"
	"github.com/tsdata/refinery/pkg/refinery"
	"github.com/tsdata/refinery/pkg/run"
)

var (
	version = "0.1.0-dev"
)

// RunFile is the one-shot request format accepted by -run: the same shape
// the /api/v1/clean endpoint takes.
type RunFile struct {
	Source     string            `json:"source_dataset"`
	Operations []refinery.OpSpec `json:"operations"`
}

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "Path to config file (JSON, TOML, or YAML)")
	runPath := flag.String("run", "", "Run a single cleaning request from a JSON file and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("refinery", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, logging.Level(cfg.LogLevel))

	naive, err := cfg.NaiveLocation()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	store, err := dataset.Open(cfg.DataDir, dataset.Options{NaiveLocation: naive})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	opts := refinery.Options{TimeColumn: cfg.TimeColumn, NaiveLocation: naive}
	runner := run.New(store, log)

	if *runPath != "" {
		if err := runOnce(runner, opts, *runPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = hist.Close() }()

	srv := api.New(store, runner, hist, log, opts, cfg.PreviewRows)
	log.Info("listening", "addr", cfg.Listen, "data_dir", cfg.DataDir)
	if err := http.ListenAndServe(cfg.Listen, srv.Handler()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runOnce(runner *run.Runner, opts refinery.Options, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var req RunFile
	if err := json.Unmarshal(b, &req); err != nil {
		return err
	}
	ops, err := refinery.CompileOperations(req.Operations, opts)
	if err != nil {
		return err
	}
	report, err := runner.Run(context.Background(), run.Request{Source: req.Source, Ops: ops})
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
