// Command korrektor integrates machine-generated review suggestions into
// DOCX documents as native Word comments.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/m2ix4i/korrektor/internal/analyzer"
	"github.com/m2ix4i/korrektor/internal/batch"
	"github.com/m2ix4i/korrektor/internal/config"
	"github.com/m2ix4i/korrektor/internal/logging"
	"github.com/m2ix4i/korrektor/internal/server"
	"github.com/m2ix4i/korrektor/pkg/annotate"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("korrektor version %s\n", version)
	case "annotate":
		err = runAnnotate(os.Args[2:])
	case "batch":
		err = runBatch(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "korrektor: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "korrektor - review-comment integration for DOCX documents")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage: korrektor <command> [arguments]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  annotate -in <doc> [-out <doc>] [-suggestions <json>|-analyze] [-backup]")
	fmt.Fprintln(os.Stderr, "  batch    -jobs <json> [-concurrency N]")
	fmt.Fprintln(os.Stderr, "  serve    [-addr :8085] [-config <yaml>]")
	fmt.Fprintln(os.Stderr, "  version")
}

func setup(configPath string) (*config.Config, *annotate.Integrator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logging.Init(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "korrektor",
	})
	return cfg, annotate.NewIntegrator(cfg.Author.Name, cfg.Author.Initials), nil
}

func runAnnotate(args []string) error {
	fs := flag.NewFlagSet("annotate", flag.ExitOnError)
	in := fs.String("in", "", "input document path")
	out := fs.String("out", "", "output document path (default: <in> with _annotated suffix)")
	suggestionsPath := fs.String("suggestions", "", "path to a JSON file with suggestions")
	analyze := fs.Bool("analyze", false, "produce suggestions via the configured analyzer")
	backup := fs.Bool("backup", false, "write a byte-identical backup of the input first")
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("annotate: -in is required")
	}
	if *suggestionsPath == "" && !*analyze {
		return fmt.Errorf("annotate: one of -suggestions or -analyze is required")
	}

	cfg, it, err := setup(*configPath)
	if err != nil {
		return err
	}

	output := *out
	if output == "" {
		output = strings.TrimSuffix(*in, ".docx") + "_annotated.docx"
	}

	if *backup {
		backupPath, err := annotate.Backup(*in)
		if err != nil {
			return err
		}
		fmt.Printf("backup written to %s\n", backupPath)
	}

	var suggestions []annotate.Suggestion
	if *analyze {
		client, err := analyzer.NewClient(analyzer.Options{
			BaseURL:        cfg.Analyzer.BaseURL,
			Model:          cfg.Analyzer.Model,
			APIKeyEnv:      cfg.Analyzer.APIKeyEnv,
			TimeoutSeconds: cfg.Analyzer.TimeoutSeconds,
			Temperature:    cfg.Analyzer.Temperature,
			MaxSuggestions: cfg.Analyzer.MaxSuggestions,
		})
		if err != nil {
			return err
		}
		text, err := annotate.DocumentText(*in)
		if err != nil {
			return err
		}
		suggestions, err = client.Analyze(context.Background(), text)
		if err != nil {
			return err
		}
	} else {
		data, err := os.ReadFile(*suggestionsPath)
		if err != nil {
			return fmt.Errorf("read suggestions: %w", err)
		}
		if err := json.Unmarshal(data, &suggestions); err != nil {
			return fmt.Errorf("decode suggestions: %w", err)
		}
	}

	report, err := it.Integrate(*in, output, suggestions)
	if err != nil {
		return err
	}

	fmt.Printf("processed %d suggestions, matched %d\n", report.Processed, report.Matched)
	for _, failure := range report.Failures {
		fmt.Printf("  skipped: %s\n", failure)
	}
	fmt.Printf("annotated document written to %s\n", output)
	return nil
}

func runBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	jobsPath := fs.String("jobs", "", "path to a JSON file with batch jobs")
	concurrency := fs.Int("concurrency", 0, "maximum documents in flight (default from config)")
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Parse(args)

	if *jobsPath == "" {
		return fmt.Errorf("batch: -jobs is required")
	}

	cfg, it, err := setup(*configPath)
	if err != nil {
		return err
	}
	if *concurrency <= 0 {
		*concurrency = cfg.Batch.Concurrency
	}

	data, err := os.ReadFile(*jobsPath)
	if err != nil {
		return fmt.Errorf("read jobs: %w", err)
	}
	var jobs []struct {
		Input       string                `json:"input"`
		Output      string                `json:"output"`
		Suggestions []annotate.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(data, &jobs); err != nil {
		return fmt.Errorf("decode jobs: %w", err)
	}

	batchJobs := make([]batch.Job, len(jobs))
	for i, j := range jobs {
		output := j.Output
		if output == "" {
			output = strings.TrimSuffix(j.Input, ".docx") + "_annotated.docx"
		}
		batchJobs[i] = batch.Job{Input: j.Input, Output: output, Suggestions: j.Suggestions}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, result := range batch.Run(ctx, it, batchJobs, *concurrency) {
		if result.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", result.Job.Input, result.Err)
			continue
		}
		fmt.Printf("%s: matched %d of %d\n",
			result.Job.Input, result.Report.Matched, result.Report.Processed)
	}
	if failed > 0 {
		return fmt.Errorf("batch: %d of %d jobs failed", failed, len(batchJobs))
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "listen address (overrides config)")
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Parse(args)

	cfg, it, err := setup(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	var az analyzer.Analyzer
	if client, err := analyzer.NewClient(analyzer.Options{
		BaseURL:        cfg.Analyzer.BaseURL,
		Model:          cfg.Analyzer.Model,
		APIKeyEnv:      cfg.Analyzer.APIKeyEnv,
		TimeoutSeconds: cfg.Analyzer.TimeoutSeconds,
		Temperature:    cfg.Analyzer.Temperature,
		MaxSuggestions: cfg.Analyzer.MaxSuggestions,
	}); err == nil {
		az = client
	} else {
		logging.Named("main").Warn().Err(err).Msg("analyzer disabled; uploads must carry suggestions")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, it, az).ListenAndServe(ctx)
}
