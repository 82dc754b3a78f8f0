package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/minicrawler/internal/crawler"
	"github.com/nao1215/minicrawler/internal/model"
)

const namespace = "minicrawler"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder records crawl events into a Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	pages    *prometheus.CounterVec
	records  prometheus.Counter
	duration prometheus.Histogram
	inFlight prometheus.Gauge
	state    prometheus.Gauge
}

var _ crawler.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder labelled with the crawled site.
func NewRecorder(site string) *Recorder {
	labels := prometheus.Labels{"site": site}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "pages_total",
			Help:        "Pages processed, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "records_total",
			Help:        "Records extracted from successful pages.",
			ConstLabels: labels,
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "page_duration_seconds",
			Help:        "Time spent on one page, including rate limiting.",
			ConstLabels: labels,
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "fetches_in_flight",
			Help:        "Fetches currently in progress.",
			ConstLabels: labels,
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "crawl_state",
			Help:        "Crawl lifecycle state: 0 idle, 1 seeded, 2 running, 3 draining, 4 done.",
			ConstLabels: labels,
		}),
	}

	// Pre-create both outcome series so they are exported as 0.
	r.pages.WithLabelValues(OutcomeSuccess)
	r.pages.WithLabelValues(OutcomeFailure)

	r.registry.MustRegister(
		r.pages,
		r.records,
		r.duration,
		r.inFlight,
		r.state,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// StateChanged implements crawler.Observer.
func (r *Recorder) StateChanged(_, to crawler.State) {
	r.state.Set(float64(to))
}

// FetchStarted implements crawler.Observer.
func (r *Recorder) FetchStarted(string, time.Time) {
	r.inFlight.Inc()
}

// PageCompleted implements crawler.Observer.
func (r *Recorder) PageCompleted(outcome model.PageOutcome, elapsed time.Duration) {
	r.duration.Observe(elapsed.Seconds())
	if outcome.Succeeded() {
		r.pages.WithLabelValues(OutcomeSuccess).Inc()
		r.records.Add(float64(len(outcome.Records)))
	} else {
		r.pages.WithLabelValues(OutcomeFailure).Inc()
	}
	if outcome.Fetched {
		r.inFlight.Dec()
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler serving the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Server exposes a Recorder on /metrics.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds addr and prepares a server for r. Use ":0" for a random port.
func Listen(addr string, r *Recorder, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until ctx is done, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving metrics", "addr", s.Addr())
		errCh <- s.srv.Serve(s.ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
