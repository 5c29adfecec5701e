package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/satgate/satgate-core/internal/config"
	"github.com/satgate/satgate-core/internal/logging"
	"github.com/satgate/satgate-core/pkg/challenge"
	"github.com/satgate/satgate-core/pkg/credential"
	"github.com/satgate/satgate-core/pkg/gateway"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the challenge-protected resource server",
	Long: `Run an HTTP server that prices every resource under /r/ behind the
challenge protocol. Configuration comes from the environment (see
SATGATE_* variables).`,
	RunE: func(*cobra.Command, []string) error {
		logCfg, err := config.LoadLog()
		if err != nil {
			return err
		}
		logging.Init(logCfg)

		issuerCfg, err := config.LoadIssuer()
		if err != nil {
			return err
		}
		gwCfg, err := config.LoadGateway()
		if err != nil {
			return err
		}

		minter, err := credential.NewMinter([]byte(issuerCfg.ServerSecret), issuerCfg.Location)
		if err != nil {
			return err
		}
		gw := gateway.NewClient(gwCfg.Endpoint, gwCfg.APIKey)
		gw.HTTPClient.Timeout = gwCfg.Timeout

		handler := challenge.NewHandler(minter, gw, challenge.Config{
			Service:      issuerCfg.Service,
			DefaultPrice: issuerCfg.DefaultPrice,
			Prices:       issuerCfg.ResourcePrices,
			Validity:     issuerCfg.TokenValidity,
		})

		server := &http.Server{
			Addr:              issuerCfg.HTTPAddr,
			Handler:           newRouter(handler),
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", issuerCfg.HTTPAddr).Msg("satgate listening")
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	},
}

func newRouter(handler *challenge.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Everything under /r/ is priced: the resource ID is the path
	// suffix, so /r/premium challenges and verifies against "premium".
	paywall := func(next http.Handler) http.Handler {
		return challenge.Middleware(handler, resourceFromPath, next)
	}
	r.With(paywall).Get("/r/*", protectedResource)

	return r
}

func resourceFromPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/r/")
}

func protectedResource(w http.ResponseWriter, r *http.Request) {
	result, _ := challenge.ResultFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"resource_id": resourceFromPath(r),
		"expires_at":  result.ExpiresAt,
		"content":     "paid content",
	})
}

func requestLogger() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{})),
		&httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("path", req.URL.Path),
				}
			},
		},
	)
}
