// Package metrics holds the Prometheus instrumentation of the server.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("texlsp.metrics")

const namespace = "texlsp"

// Registry collects every texlsp metric. It is separate from the default
// registerer so tests and embedding programs do not collide.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// Parses counts document parses by language.
	Parses = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "document",
		Name:      "parses_total",
		Help:      "Documents parsed, by language",
	}, []string{"language"})

	// ParseDuration measures lexing, parsing and extraction of one revision.
	ParseDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "document",
		Name:      "parse_duration_seconds",
		Help:      "Time to parse a document revision",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"language"})

	// Documents is the number of documents in the workspace.
	Documents = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "workspace",
		Name:      "documents",
		Help:      "Documents known to the workspace",
	})

	// CacheRequests counts analysis cache lookups by query and result.
	CacheRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Analysis cache lookups, by query and result (hit or miss)",
	}, []string{"query", "result"})

	// CacheEvictions counts entries dropped by invalidation.
	CacheEvictions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Analysis cache entries evicted by invalidation",
	})

	// Tasks counts pipeline tasks by outcome (applied, superseded, failed).
	Tasks = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "tasks_total",
		Help:      "Pipeline tasks, by outcome",
	}, []string{"outcome"})

	// QueueDepth is the number of tasks waiting in the scheduler.
	QueueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "queue_depth",
		Help:      "Tasks waiting for a worker",
	})

	// Requests counts protocol requests by method.
	Requests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "requests_total",
		Help:      "Protocol requests handled, by method",
	}, []string{"method"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on address until ctx is canceled.
func Serve(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("metrics available at http://%s/metrics", listener.Addr())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
