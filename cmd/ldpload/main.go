// Command ldpload runs a load pipeline run from a JSON run configuration:
// it extracts (or reads pre-staged page files), stages, and publishes every
// table in the configured catalog, one table per transaction.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ldp/internal/config"
	"ldp/internal/dbconn"
	"ldp/internal/extract"
	"ldp/internal/metrics"
	"ldp/internal/metrics/datadog"
	"ldp/internal/metrics/prompush"
	"ldp/internal/runner"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "load":
		runLoad(os.Args[2:])
	case "help", "-h", "-help", "--help":
		usage()
	default:
		fatalf("unknown subcommand %q", os.Args[1])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ldpload <command> [options]

commands:
  load    run a load pipeline run from a JSON run configuration
  help    show this message`)
}

func runLoad(args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)

	source := fs.String("source", "", "tenant API base URL (overrides the config file's source.base_url)")
	configPath := fs.String("config", "", "path to a JSON run configuration file (required)")
	sourceDir := fs.String("sourcedir", "", "load from pre-staged page files in this directory instead of extracting")
	noSSL := fs.Bool("nossl", false, "disable TLS certificate verification against the tenant API")
	saveTemps := fs.Bool("savetemps", false, "keep page files after a successful run")
	unsafe := fs.Bool("unsafe", false, "alias for -nossl, matching the original pipeline's CLI surface")
	verbose := fs.Bool("verbose", false, "set runtime.verbose in the run configuration (no logging depends on it)")
	debug := fs.Bool("debug", false, "set runtime.debug in the run configuration (no logging depends on it)")
	metricsBackend := fs.String("metrics-backend", "", "metrics backend: prompush, datadog, or empty for none (env LDP_METRICS_BACKEND)")
	metricsAddr := fs.String("metrics-addr", "", "metrics backend address (Pushgateway URL or DogStatsD addr; env LDP_METRICS_ADDR)")

	if err := fs.Parse(args); err != nil {
		fatalf("parsing flags: %v", err)
	}

	if *configPath == "" {
		fatalf("-config is required")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatalf("loading config: %v", err)
	}

	if *source != "" {
		cfg.Source.BaseURL = *source
	}
	if *sourceDir != "" {
		cfg.Source.LoadDir = *sourceDir
		cfg.Source.FromDir = true
	}
	if *noSSL || *unsafe {
		cfg.Source.Insecure = true
	}
	if *saveTemps {
		cfg.Source.SaveTemps = true
	}
	if *verbose {
		cfg.Runtime.Verbose = true
	}
	if *debug {
		cfg.Runtime.Debug = true
	}

	if issues := config.ValidateRunConfig(cfg); len(issues) > 0 {
		fatal := false
		for _, issue := range issues {
			log.Printf("config: %s", issue.Error())
			if issue.Severity == config.SeverityError {
				fatal = true
			}
		}
		if fatal {
			os.Exit(1)
		}
	}

	setupMetricsBackend(envOr("LDP_METRICS_BACKEND", *metricsBackend), envOr("LDP_METRICS_ADDR", *metricsAddr), cfg.Job)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fatalf("run failed: %v", err)
	}
}

func run(ctx context.Context, cfg config.RunConfig) error {
	pool, err := dbconn.Open(ctx, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer pool.Close()

	flavor, err := dbconn.NewFlavor(cfg.Storage.Flavor)
	if err != nil {
		return fmt.Errorf("resolving storage flavor: %w", err)
	}

	r := &runner.Runner{
		Config: cfg,
		DB:     pool,
		Flavor: flavor,
	}
	if !cfg.Source.FromDir {
		r.Extractor = extract.New(extract.Config{
			BaseURL:  cfg.Source.BaseURL,
			Insecure: cfg.Source.Insecure,
			PageSize: cfg.Source.Options.Int("page_size", extract.DefaultPageSize),
			Headers:  authHeaders(cfg.Source.Options),
		})
	}

	outcomes, err := r.Run(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			log.Printf("ldpload: table=%s status=failed error=%v", o.TableName, o.Err)
		} else {
			log.Printf("ldpload: table=%s status=published", o.TableName)
		}
	}
	log.Printf("ldpload: job=%s tables=%d failed=%d", cfg.Job, len(outcomes), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d tables failed", failed, len(outcomes))
	}
	return nil
}

func authHeaders(opts config.Options) http.Header {
	token := opts.String("auth_token", "")
	if token == "" {
		return nil
	}
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	return h
}

func loadConfig(path string) (config.RunConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return config.RunConfig{}, err
	}
	defer f.Close()

	var cfg config.RunConfig
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return config.RunConfig{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return cfg, nil
}

func setupMetricsBackend(backend, addr, job string) {
	switch backend {
	case "":
		return
	case "prompush":
		b, err := prompush.NewBackend(job, addr)
		if err != nil {
			log.Printf("metrics: prompush backend disabled: %v", err)
			return
		}
		metrics.SetBackend(b)
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "ldp."})
		if err != nil {
			log.Printf("metrics: datadog backend disabled: %v", err)
			return
		}
		metrics.SetBackend(b)
	default:
		log.Printf("metrics: unknown backend %q, metrics disabled", backend)
	}
}

func envOr(envKey, flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envKey)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ldpload: "+format+"\n", args...)
	os.Exit(1)
}
