// Command docqa uploads PDFs to a document QA backend and asks questions about them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/docqa-go/internal/adapters/backend"
	"github.com/0xcro3dile/docqa-go/internal/adapters/metrics"
	"github.com/0xcro3dile/docqa-go/internal/domain/apierr"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/config"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/logging"
)

// errReported marks a failure whose message was already printed.
var errReported = errors.New("failed")

// app holds what every command needs, built once the config is known.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	backend  ports.Backend
}

func (a *app) load(path string, logOut io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.New(logOut, cfg.AppEnv, cfg.LogLevel)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewMetrics(a.registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	client := backend.NewClient(cfg.API.BaseURL, cfg.API.HealthBaseURL,
		backend.WithTimeouts(cfg.API.ChatTimeout, cfg.API.UploadTimeout, cfg.API.HealthTimeout),
		backend.WithLogger(a.logger),
	)
	a.backend = metrics.Instrument(client, m)
	a.logger.Debug("backend configured", "base_url", client.BaseURL())
	return nil
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	a := &app{}

	root := &cobra.Command{
		Use:           "docqa",
		Short:         "Upload PDFs and chat with them through a document QA backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cfgPath, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./docqa.yaml)")

	root.AddCommand(
		healthCmd(a),
		docsCmd(a),
		uploadCmd(a),
		askCmd(a),
		chatCmd(a),
		watchCmd(a),
		serveCmd(a),
	)
	return root
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(stderr, "docqa:", apierr.Message(err))
		}
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}
