package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every exported metric.
const Namespace = "tails"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	moduleCompile *prom.HistogramVec
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	recompiles    *prom.CounterVec
	remoteFetches *prom.CounterVec
	eventsDropped *prom.CounterVec
	modules       prom.Gauge
	reloadClients prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		moduleCompile: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: Namespace,
			Name:      "module_compile_duration_seconds",
			Help:      "Duration of single module compilation",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"kind", "result"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: Namespace,
			Name:      "build_duration_seconds",
			Help:      "Total full build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "build_outcomes_total",
			Help:      "Full build outcomes by final status",
		}, []string{"outcome"}),
		recompiles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "recompiles_total",
			Help:      "Watch-triggered recompilations by result",
		}, []string{"result"}),
		remoteFetches: prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "remote_fetches_total",
			Help:      "Remote module resolutions by source",
		}, []string{"source"}),
		eventsDropped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "watch_events_dropped_total",
			Help:      "Filesystem events ignored by the watch loop",
		}, []string{"reason"}),
		modules: prom.NewGauge(prom.GaugeOpts{
			Namespace: Namespace,
			Name:      "modules",
			Help:      "Modules held by the handler",
		}),
		reloadClients: prom.NewGauge(prom.GaugeOpts{
			Namespace: Namespace,
			Name:      "livereload_clients",
			Help:      "Connected live reload clients",
		}),
	}
	reg.MustRegister(pr.moduleCompile, pr.buildDuration, pr.buildOutcome, pr.recompiles,
		pr.remoteFetches, pr.eventsDropped, pr.modules, pr.reloadClients)
	return pr
}

func result(success bool) string {
	if success {
		return string(ResultSuccess)
	}
	return string(ResultFailed)
}

func (p *PrometheusRecorder) ObserveModuleCompile(kind string, d time.Duration, success bool) {
	if p == nil {
		return
	}
	p.moduleCompile.WithLabelValues(kind, result(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncRecompile(r ResultLabel) {
	if p == nil {
		return
	}
	p.recompiles.WithLabelValues(string(r)).Inc()
}

func (p *PrometheusRecorder) IncRemoteFetch(source FetchSource) {
	if p == nil {
		return
	}
	p.remoteFetches.WithLabelValues(string(source)).Inc()
}

func (p *PrometheusRecorder) IncEventsDropped(reason string) {
	if p == nil {
		return
	}
	p.eventsDropped.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) SetModules(n int) {
	if p == nil {
		return
	}
	p.modules.Set(float64(n))
}

func (p *PrometheusRecorder) SetLiveReloadClients(n int) {
	if p == nil {
		return
	}
	p.reloadClients.Set(float64(n))
}
