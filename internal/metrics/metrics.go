// Package metrics exposes the state of a session as Prometheus metrics.
// Gauges follow the registries through bus subscriptions, so the package
// never reaches into them directly.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/events"
	"github.com/dshills/manivault/internal/event/topic"
)

const namespace = "manivault"

// Metrics holds the session collectors.
type Metrics struct {
	Datasets        *prometheus.GaugeVec
	Actions         prometheus.Gauge
	PublicActions   prometheus.Gauge
	Connections     prometheus.Gauge
	PluginInstances *prometheus.GaugeVec
	Events          *prometheus.CounterVec
	Projects        *prometheus.CounterVec
	Deferred        prometheus.Counter
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		Datasets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "datasets",
			Help:      "Live datasets by data kind",
		}, []string{"kind"}),
		Actions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "registered",
			Help:      "Registered actions, public ones included",
		}),
		PublicActions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "public",
			Help:      "Registered public actions",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "connections",
			Help:      "Private actions connected to a public action",
		}),
		PluginInstances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "plugins",
			Name:      "instances",
			Help:      "Live plugin instances by kind",
		}, []string{"kind", "type"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events published on the bus by topic",
		}, []string{"topic"}),
		Projects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projects",
			Name:      "total",
			Help:      "Project documents saved and loaded",
		}, []string{"op", "format"}),
		Deferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "removals_deferred_total",
			Help:      "Dataset removals deferred by a locked item",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Datasets, m.Actions, m.PublicActions, m.Connections,
		m.PluginInstances, m.Events, m.Projects, m.Deferred,
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRuntime adds the Go runtime and process collectors.
func WithRuntime() Option {
	return func(r *Registry) { r.runtime = true }
}

// Registry owns a Prometheus registry fed by bus events.
type Registry struct {
	prom    *prometheus.Registry
	metrics *Metrics
	logger  *zap.Logger
	runtime bool
	subs    []event.Subscription
}

// NewRegistry registers the session collectors and subscribes them to bus.
func NewRegistry(bus event.Bus, opts ...Option) (*Registry, error) {
	r := &Registry{
		prom:    prometheus.NewRegistry(),
		metrics: NewMetrics(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("metrics")

	if err := r.Register(r.metrics.collectors()...); err != nil {
		return nil, err
	}
	if r.runtime {
		if err := r.Register(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		); err != nil {
			return nil, err
		}
	}
	if err := r.RegisterBus(bus); err != nil {
		return nil, err
	}
	if err := r.subscribe(bus); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Metrics returns the session collectors.
func (r *Registry) Metrics() *Metrics { return r.metrics }

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry { return r.prom }

// Register adds collectors to the registry.
func (r *Registry) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := r.prom.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RegisterBus exports the delivery counters of bus.
func (r *Registry) RegisterBus(bus event.Bus) error {
	stat := func(name, help string, value func(event.Stats) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(bus.Stats()) })
	}
	return r.Register(
		stat("handlers_executed_total", "Event handlers run", func(s event.Stats) float64 { return float64(s.HandlersExecuted) }),
		stat("handler_errors_total", "Event handlers that returned an error", func(s event.Stats) float64 { return float64(s.HandlerErrors) }),
		stat("handler_panics_total", "Event handlers that panicked", func(s event.Stats) float64 { return float64(s.HandlerPanics) }),
		stat("async_dropped_total", "Asynchronous deliveries dropped", func(s event.Stats) float64 { return float64(s.AsyncDropped) }),
	)
}

// FeedStats is implemented by the event feed.
type FeedStats interface {
	Clients() int
	Sent() uint64
	Dropped() uint64
}

// RegisterFeed exports the client and message counts of the event feed.
func (r *Registry) RegisterFeed(f FeedStats) error {
	return r.Register(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "feed", Name: "clients",
			Help: "Connected feed clients",
		}, func() float64 { return float64(f.Clients()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "messages_sent_total",
			Help: "Feed messages queued to clients",
		}, func() float64 { return float64(f.Sent()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "messages_dropped_total",
			Help: "Feed messages lost to slow clients",
		}, func() float64 { return float64(f.Dropped()) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorLog:          zap.NewStdLog(r.logger),
	})
}

// Close cancels the bus subscriptions. Collected values stay readable.
func (r *Registry) Close() {
	for _, sub := range r.subs {
		sub.Cancel()
	}
	r.subs = nil
}

func (r *Registry) subscribe(bus event.Bus) error {
	m := r.metrics
	opts := []event.SubscriptionOption{event.WithPriority(event.PriorityLow)}

	add := func(sub event.Subscription, err error) error {
		if err != nil {
			return err
		}
		r.subs = append(r.subs, sub)
		return nil
	}

	return firstError(
		add(bus.SubscribeFunc(topic.WildcardMulti, func(_ context.Context, ev any) error {
			if tp, ok := ev.(event.TopicProvider); ok {
				m.Events.WithLabelValues(tp.EventTopic().String()).Inc()
			}
			return nil
		}, opts...)),

		add(event.Subscribe(bus, events.TopicDatasetAdded, func(_ context.Context, ev event.Event[events.DatasetAdded]) error {
			m.Datasets.WithLabelValues(ev.Payload.Kind).Inc()
			return nil
		}, opts...)),
		add(event.Subscribe(bus, events.TopicDatasetRemoved, func(_ context.Context, ev event.Event[events.DatasetRemoved]) error {
			m.Datasets.WithLabelValues(ev.Payload.Kind).Dec()
			return nil
		}, opts...)),
		add(event.Subscribe(bus, events.TopicDatasetRemovalDeferred, func(context.Context, event.Event[events.DatasetRemovalDeferred]) error {
			m.Deferred.Inc()
			return nil
		}, opts...)),

		add(event.Subscribe(bus, events.TopicActionAdded, func(context.Context, event.Event[events.ActionEvent]) error {
			m.Actions.Inc()
			return nil
		}, opts...)),
		add(event.Subscribe(bus, events.TopicActionRemoved, func(context.Context, event.Event[events.ActionEvent]) error {
			m.Actions.Dec()
			return nil
		}, opts...)),
		add(event.Subscribe(bus, events.TopicPublicActionAdded, func(context.Context, event.Event[events.ActionEvent]) error {
			m.PublicActions.Inc()
			return nil
		}, opts...)),
		add(event.Subscribe(bus, events.TopicPublicActionRemoved, func(context.Context, event.Event[events.ActionEvent]) error {
			m.PublicActions.Dec()
			return nil
		}, opts...)),
		add(event.Subscribe(bus, events.TopicActionConnected, func(context.Context, event.Event[events.ActionLink]) error {
			m.Connections.Inc()
			return nil
		}, opts...)),
		add(event.Subscribe(bus, events.TopicActionDisconnected, func(context.Context, event.Event[events.ActionLink]) error {
			m.Connections.Dec()
			return nil
		}, opts...)),

		add(event.Subscribe(bus, events.TopicPluginAdded, func(_ context.Context, ev event.Event[events.PluginInstance]) error {
			m.PluginInstances.WithLabelValues(ev.Payload.Kind, ev.Payload.Type).Set(float64(ev.Payload.Instances))
			return nil
		}, opts...)),
		add(event.Subscribe(bus, events.TopicPluginDestroyed, func(_ context.Context, ev event.Event[events.PluginInstance]) error {
			m.PluginInstances.WithLabelValues(ev.Payload.Kind, ev.Payload.Type).Set(float64(ev.Payload.Instances))
			return nil
		}, opts...)),

		add(event.Subscribe(bus, events.TopicProjectSaved, func(_ context.Context, ev event.Event[events.ProjectEvent]) error {
			m.Projects.WithLabelValues("save", ev.Payload.Format).Inc()
			return nil
		}, opts...)),
		add(event.Subscribe(bus, events.TopicProjectLoaded, func(_ context.Context, ev event.Event[events.ProjectEvent]) error {
			m.Projects.WithLabelValues("load", ev.Payload.Format).Inc()
			return nil
		}, opts...)),
	)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
