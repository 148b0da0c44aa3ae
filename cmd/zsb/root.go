package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-zsb/infrastructure/llm"
	"github.com/ahrav/go-zsb/infrastructure/middleware"
	"github.com/ahrav/go-zsb/infrastructure/storage"
	"github.com/ahrav/go-zsb/internal/application"
	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/log"
	"github.com/ahrav/go-zsb/internal/ports"
)

var version = "dev"

// errUsage marks command-line mistakes cobra does not catch itself.
var errUsage = errors.New("usage error")

// backendFactory builds the generation backend for a model configuration.
type backendFactory func(cfg *application.ModelConfig, metrics ports.MetricsCollector) (ports.Generator, error)

func newLLMBackend(cfg *application.ModelConfig, metrics ports.MetricsCollector) (ports.Generator, error) {
	gen, err := llm.NewBackend(cfg.BackendConfig(metrics))
	if err != nil {
		return nil, err
	}
	return gen, nil
}

// app holds the state shared by every subcommand of one invocation.
type app struct {
	debug       bool
	modelConfig string
	metricsAddr string

	out       io.Writer
	registry  *prometheus.Registry
	metrics   ports.MetricsCollector
	validator *application.Validator
	backend   backendFactory
	server    *http.Server
}

func newApp() (*app, error) {
	val, err := application.NewValidator()
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &app{
		out:       os.Stdout,
		registry:  reg,
		metrics:   middleware.NewPrometheusMetrics(reg),
		validator: val,
		backend:   newLLMBackend,
	}, nil
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zsb",
		Short: "zsb - zero-shot benchmarking with LLM-generated data",
		Long: `zsb builds evaluation sets from task descriptions and judges model answers.

It generates synthetic prompts from attribute combinations, samples answers
and MBR candidates, and grades answers by direct assessment, pairwise
comparison or safety rating.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&a.modelConfig, "model-config", "", "YAML file describing the generation backend")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if a.debug {
			log.SetLevel(log.LevelDebug)
		}
		a.out = cmd.OutOrStdout()
		return a.serveMetrics()
	}

	cmd.AddCommand(
		newPromptsCommand(a),
		newAnswersCommand(a),
		newCandidatesCommand(a),
		newMBRCommand(a),
		newJudgeBestCommand(a),
		newJudgeDACommand(a),
		newJudgePairwiseCommand(a),
		newJudgeSafetyCommand(a),
		newTasksCommand(a),
	)
	return cmd
}

// serveMetrics starts the /metrics endpoint when --metrics-addr is set.
// Binding happens synchronously so a busy port fails the command.
func (a *app) serveMetrics() error {
	if a.metricsAddr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", a.metricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener on %s: %w", a.metricsAddr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server stopped: %v", err)
		}
	}()
	log.Infof("serving metrics on %s/metrics", ln.Addr())
	return nil
}

func (a *app) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			log.Warnf("metrics server shutdown: %v", err)
		}
	}
	log.Sync()
}

// generator loads --model-config and builds its backend.
func (a *app) generator() (ports.Generator, error) {
	if a.modelConfig == "" {
		return nil, fmt.Errorf("--model-config is required for this command: %w", domain.ErrInvalidConfiguration)
	}
	cfg, err := application.LoadModelConfig(a.modelConfig)
	if err != nil {
		return nil, err
	}
	gen, err := a.backend(cfg, a.metrics)
	if err != nil {
		return nil, err
	}
	log.Debugf("using %s backend with model %s (batched=%t)", cfg.Backend, gen.Model(), gen.Batched())
	return gen, nil
}

// imageIndex loads dir into a name to data URL index. An empty dir yields
// a nil index.
func imageIndex(dir string) (map[string]string, error) {
	if dir == "" {
		return nil, nil
	}
	images, err := storage.LoadImages(dir)
	if err != nil {
		return nil, fmt.Errorf("loading images from %s: %w", dir, err)
	}
	return storage.ImageIndex(images), nil
}

func (a *app) writeRecords(path string, records []domain.Record) error {
	if err := storage.WriteJSONL(path, records); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %d records to %s\n", len(records), path)
	return nil
}

func execute() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCommand(a).ExecuteContext(ctx)
}
