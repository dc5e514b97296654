package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
)

const namespace = "orchestra"

var _ output.MetricsPort = (*Collector)(nil)

// Collector owns its own registry so several instances can live in one
// process (tests, embedded use).
type Collector struct {
	registry *prometheus.Registry

	rounds        prometheus.Counter
	roundDuration prometheus.Histogram
	roundSize     prometheus.Histogram
	tasks         *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	runs          *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Rounds executed across all runs.",
		}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Wall time from dispatch to barrier for one round.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		roundSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_tasks",
			Help:      "Tasks dispatched per round.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Finished task invocations by worker and status.",
		}, []string{"worker", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Worker invocation time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"worker"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by terminal state.",
		}, []string{"state", "budget_exhausted"}),
	}

	c.registry.MustRegister(c.rounds, c.roundDuration, c.roundSize, c.tasks, c.taskDuration, c.runs)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RoundCompleted(tasks int, seconds float64) {
	c.rounds.Inc()
	c.roundSize.Observe(float64(tasks))
	c.roundDuration.Observe(seconds)
}

func (c *Collector) TaskFinished(worker string, status entity.TaskStatus, seconds float64) {
	c.tasks.WithLabelValues(worker, string(status)).Inc()
	c.taskDuration.WithLabelValues(worker).Observe(seconds)
}

func (c *Collector) RunFinished(state entity.RunState, budgetExhausted bool) {
	c.runs.WithLabelValues(string(state), strconv.FormatBool(budgetExhausted)).Inc()
}
