package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-screener/internal/model"
	"github.com/sells-group/kpi-screener/internal/screen"
)

var servePort int

// screenRunner executes one screening request end to end.
type screenRunner func(ctx context.Context, req *model.ScreeningRequest) (*model.ScreeningResult, error)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the screening API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		runner := func(ctx context.Context, req *model.ScreeningRequest) (*model.ScreeningResult, error) {
			instruments, err := env.Fetcher.Instruments(ctx)
			if err != nil {
				return nil, err
			}
			universe := screen.FilterUniverse(instruments, req.Universe)

			stockIDs := make([]int, len(universe))
			for i, inst := range universe {
				stockIDs[i] = inst.ID
			}
			data, err := env.Fetcher.Dataset(ctx, stockIDs, req.KPINames(), req.FrequencyFor)
			if err != nil {
				return nil, err
			}

			pipeline := screen.New(screen.Options{
				Parallelism:   cfg.Screen.Parallelism,
				ProgressEvery: cfg.Screen.ProgressEvery,
				WithAudit:     true,
			})
			return pipeline.Run(ctx, req, universe, data)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(runner),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(run screenRunner) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/screen", func(w http.ResponseWriter, r *http.Request) {
		var req model.ScreeningRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req.Normalize()
		if err := req.Validate(); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}

		result, err := run(r.Context(), &req)
		if err != nil {
			zap.L().Error("screening run failed",
				zap.String("request", req.Name),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "screening failed"})
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
