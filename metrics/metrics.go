package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "metrics")

// Collector owns a private registry with the planner and service metrics.
type Collector struct {
	reg *prometheus.Registry

	Plans      *prometheus.CounterVec // status label: optimal|timeout|timeout_no_tour|infeasible
	PlanErrors prometheus.Counter

	OptimizeDuration prometheus.Histogram
	NodesExplored    prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	NetworkIntersections prometheus.Gauge
	NetworkRoads         prometheus.Gauge
	TimeLimit            prometheus.Gauge // seconds, -1 when unlimited
}

func NewCollector(timeLimit time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourplan_plans_total",
			Help: "Tour computations by outcome status.",
		}, []string{"status"}),
		PlanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourplan_plan_errors_total",
			Help: "Tour computations rejected or failed.",
		}),
		OptimizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tourplan_optimize_duration_seconds",
			Help:    "Wall time spent in branch and bound.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18),
		}),
		NodesExplored: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tourplan_optimize_nodes",
			Help:    "Search nodes expanded per optimization.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 14),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourplan_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourplan_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tourplan_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tourplan_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		NetworkIntersections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tourplan_network_intersections",
			Help: "Intersections of the loaded road network.",
		}),
		NetworkRoads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tourplan_network_roads",
			Help: "Roads of the loaded road network.",
		}),
		TimeLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tourplan_time_limit_seconds",
			Help: "Optimizer time limit, -1 when unlimited.",
		}),
	}

	reg.MustRegister(
		c.Plans, c.PlanErrors,
		c.OptimizeDuration, c.NodesExplored,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.NetworkIntersections, c.NetworkRoads, c.TimeLimit,
	)

	if timeLimit < 0 {
		c.TimeLimit.Set(-1)
	} else {
		c.TimeLimit.Set(timeLimit.Seconds())
	}
	return c
}

// ObserveTour records one optimizer run.
func (c *Collector) ObserveTour(status string, elapsed time.Duration, nodes int) {
	c.Plans.WithLabelValues(status).Inc()
	c.OptimizeDuration.Observe(elapsed.Seconds())
	c.NodesExplored.Observe(float64(nodes))
}

func (c *Collector) PlanErrorInc() { c.PlanErrors.Inc() }

func (c *Collector) SetNetwork(intersections, roads int) {
	c.NetworkIntersections.Set(float64(intersections))
	c.NetworkRoads.Set(float64(roads))
}

// publisher hooks

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server error: %v", err)
		}
	}()
	log.Infof("metrics listening on %s", addr)
	return srv
}
