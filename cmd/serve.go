package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/accountsync-cli/internal/store"
	syncer "github.com/sells-group/accountsync-cli/internal/sync"
)

var (
	servePort   int
	serveSource string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the watch loop with an HTTP status and trigger surface",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		src, err := e.sourceFor(serveSource)
		if err != nil {
			return err
		}

		interval := time.Duration(cfg.Sync.IntervalSecs) * time.Second
		sched := syncer.NewScheduler(e.Orch, src, interval)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(e, sched),
		}

		signalCtx := ctx
		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return sched.Run(ctx)
		})

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil && signalCtx.Err() == nil && !eris.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// newRouter builds the HTTP surface: health, status counters, and a manual
// pass trigger.
func newRouter(e *env, sched *syncer.Scheduler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		counts, err := e.Store.Counts(req.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history store unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"reconciled": e.Ledger.Len(),
			"attempts":   counts,
		})
	})

	r.Get("/attempts", func(w http.ResponseWriter, req *http.Request) {
		attempts, err := e.Store.ListAttempts(req.Context(), store.AttemptFilter{
			Address: req.URL.Query().Get("address"),
			Limit:   50,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history store unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
	})

	r.Post("/sync", func(w http.ResponseWriter, _ *http.Request) {
		if !sched.Trigger() {
			writeJSON(w, http.StatusConflict, map[string]string{"status": "already queued"})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveSource, "source", "file", "address source: file or crm")
	rootCmd.AddCommand(serveCmd)
}
