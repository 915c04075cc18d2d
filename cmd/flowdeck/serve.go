package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/flowdeck"
	"github.com/aretw0/flowdeck/internal/cli"
	"github.com/aretw0/flowdeck/internal/presentation/tui"
	httpAdapter "github.com/aretw0/flowdeck/pkg/adapters/http"
	"github.com/aretw0/flowdeck/pkg/adapters/memory"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/dsl"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow API over HTTP",
	Long: `Exposes the workflow API under /api/v1, with run events streamed over SSE at
/api/v1/workflows/{id}/events and Prometheus metrics at /metrics.

By default requests are forwarded to the backend at api.base_url and every execution is
followed by the server's orchestrator. With --memory the in-memory reference backend is
served instead, seeded with a small chat workflow. It is handy for developing a canvas
without the real backend.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		inMemory, _ := cmd.Flags().GetBool("memory")

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		streams := httpAdapter.NewStreamManager(logger)
		opts := []cli.AppOption{
			cli.WithRegisterer(prometheus.DefaultRegisterer),
			cli.WithRunHooks(streams.Hooks()),
		}
		if inMemory {
			backend := memory.NewBackend(memory.WithBackendLogger(logger))
			if err := seedDemo(backend); err != nil {
				return err
			}
			opts = append(opts, cli.WithAPI(backend))
		}
		app, err := cli.NewApp(cfg, logger, opts...)
		if err != nil {
			return err
		}
		defer app.Close()

		r := chi.NewRouter()
		r.Use(middleware.Recoverer)
		r.Mount("/api/v1", httpAdapter.NewHandler(app.API,
			httpAdapter.WithHandlerLogger(logger),
			httpAdapter.WithStreams(streams),
			httpAdapter.WithOrchestrator(app.Editor.Orchestrator()),
		))
		r.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: r,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			if tui.IsTerminal(cmd.OutOrStdout()) {
				tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(flowdeck.Version))
			}
			backend := cfg.API.BaseURL
			if inMemory {
				backend = "in-memory"
			}
			logger.Info("starting flowdeck server", "addr", srv.Addr, "backend", backend)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("start shutdown", "signal", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("flowdeck server stopped gracefully")
		}
		return nil
	},
}

// seedDemo stores a chat workflow that answers through a language model node.
func seedDemo(backend *memory.Backend) error {
	g, err := dsl.New("Demo chat").
		Describe("Chat input answered by a language model").
		Add("ask").Type(domain.NodeTypeChatInput).Label("Question").Into("llm", "user_prompt").
		Add("llm").Type(domain.NodeTypeLLM).Label("Assistant").
		Set(domain.ConfigKeyProvider, "openai").
		Set("system_prompt", "You are a helpful assistant.").
		Go("answer").
		Add("answer").Type(domain.NodeTypeChatOutput).Label("Answer").
		Build(1)
	if err != nil {
		return fmt.Errorf("build demo workflow: %w", err)
	}
	return backend.Put(g)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Bool("memory", false, "Serve the in-memory reference backend")
}
