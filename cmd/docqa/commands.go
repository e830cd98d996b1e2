package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/docqa-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/docqa-go/internal/adapters/inspector"
	"github.com/0xcro3dile/docqa-go/internal/adapters/ledger"
	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
	webhttp "github.com/0xcro3dile/docqa-go/internal/infrastructure/http"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/terminal"
)

func healthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state := usecases.NewConnectionProbe(a.backend).Refresh(cmd.Context())
			terminal.RenderConnection(cmd.OutOrStdout(), state)
			if state != entities.ConnectionUp {
				return errReported
			}
			return nil
		},
	}
}

func docsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "List the documents the backend has indexed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib := usecases.NewDocumentLibrary(a.backend, a.logger)
			terminal.RenderDocuments(cmd.OutOrStdout(), lib.Refresh(cmd.Context()))
			return nil
		},
	}
}

func uploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a PDF for indexing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			flow := usecases.NewUploadFlow(a.backend, inspector.NewPDFInspector(), a.logger)

			if err := flow.SelectPath(cmd.Context(), args[0]); err != nil {
				terminal.RenderUpload(out, flow.Snapshot())
				return errReported
			}
			terminal.RenderSelection(out, flow.Snapshot().File)

			_, err := flow.Upload(cmd.Context())
			terminal.RenderUpload(out, flow.Snapshot())
			if err != nil {
				return errReported
			}
			return nil
		},
	}
}

func askCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question about the uploaded documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := usecases.NewChatSession(a.backend, a.logger)
			msg, err := session.Send(cmd.Context(), strings.Join(args, " "))
			if errors.Is(err, usecases.ErrEmptyQuestion) {
				return err
			}
			terminal.RenderMessage(cmd.OutOrStdout(), msg)
			if err != nil {
				return errReported
			}
			return nil
		},
	}
}

func chatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively with the uploaded documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repl := terminal.NewREPL(
				usecases.NewChatSession(a.backend, a.logger),
				usecases.NewDocumentLibrary(a.backend, a.logger),
				usecases.NewConnectionProbe(a.backend),
				cmd.InOrStdin(),
				cmd.OutOrStdout(),
			)
			return repl.Run(cmd.Context())
		},
	}
}

func watchCmd(a *app) *cobra.Command {
	var metricsAddr, stateFile string
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Upload every PDF that lands in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			watcher, err := filewatcher.NewFSNotifyWatcher(nil, a.logger)
			if err != nil {
				return fmt.Errorf("creating watcher: %w", err)
			}
			defer watcher.Stop()

			if metricsAddr != "" {
				e := echo.New()
				e.HideBanner = true
				e.HidePort = true
				e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
				go func() {
					if err := e.Start(metricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("metrics listener", "addr", metricsAddr, "error", err)
					}
				}()
				defer e.Close()
			}

			flow := usecases.NewUploadFlow(a.backend, inspector.NewPDFInspector(), a.logger)
			uploader := usecases.NewAutoUploader(watcher, flow, a.cfg.Watch.QuietPeriod, a.logger)
			uploader.OnSettled = func(path string, att entities.UploadAttempt) {
				terminal.RenderUpload(out, att)
			}
			if !cmd.Flags().Changed("state") {
				stateFile = a.cfg.Watch.StateFile
			}
			var store *ledger.SQLiteLedger
			if stateFile != "" {
				store, err = ledger.NewSQLiteLedger(stateFile)
				if err != nil {
					return err
				}
				defer store.Close()
				uploader.Ledger = store
			}

			if err := uploader.Run(cmd.Context(), args[0]); err != nil {
				return err
			}
			stats := uploader.Stats()
			fmt.Fprintf(out, "Uploaded %d, failed %d, skipped %d.\n", stats.Uploaded, stats.Failed, stats.Skipped)
			if store != nil {
				// cmd.Context() is already done here.
				n, err := store.Count(context.WithoutCancel(cmd.Context()))
				if err != nil {
					return fmt.Errorf("reading upload ledger: %w", err)
				}
				fmt.Fprintf(out, "%d files recorded in %s.\n", n, stateFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&stateFile, "state", "", "SQLite file remembering uploaded files across runs (default from watch.state_file)")
	return cmd
}

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload and chat pages in a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Web.Addr
			}
			srv, err := webhttp.NewServer(a.backend, inspector.NewPDFInspector(), a.logger, a.registry, webhttp.Options{
				Addr:          addr,
				MaxWorkspaces: a.cfg.Web.MaxWorkspaces,
				MaxUploadMB:   a.cfg.Web.MaxUploadMB,
			})
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from web.addr)")
	return cmd
}
