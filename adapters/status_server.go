package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const StatusServerShutdownTimeout = 5 * time.Second

type StatusServerParams struct {
	Addr     string
	Gatherer prometheus.Gatherer
	Metrics  *PrometheusMetrics

	Log zerolog.Logger
}

type healthResponse struct {
	Status string      `json:"status"`
	Nodes  []NodeState `json:"nodes"`
}

// NewStatusRouter serves /metrics and /healthz.
func NewStatusRouter(params StatusServerParams) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		resp := healthResponse{Status: "OK", Nodes: []NodeState{}}
		if params.Metrics != nil {
			resp.Nodes = params.Metrics.States()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			params.Log.Warn().Err(err).Msg("failed to write health response")
		}
	}).Methods(http.MethodGet)

	return r
}

// ServeStatus runs the status endpoint until ctx is cancelled.
func ServeStatus(ctx context.Context, params StatusServerParams) error {
	srv := &http.Server{
		Addr:              params.Addr,
		Handler:           NewStatusRouter(params),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		params.Log.Info().Str("addr", params.Addr).Msg("status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), StatusServerShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
