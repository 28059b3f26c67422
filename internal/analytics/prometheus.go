package analytics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"casevalue/internal/model"
)

const namespace = "casevalue"

// Prometheus 导出计算器埋点指标
type Prometheus struct {
	events   *prometheus.CounterVec
	midpoint *prometheus.HistogramVec
	duration *prometheus.HistogramVec
}

// NewPrometheus 注册指标；重复注册时复用已有 collector
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prometheus{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculator_events_total",
			Help:      "Calculator funnel events by calculator and action.",
		}, []string{"calculator", "action"}),
		midpoint: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "estimate_midpoint_dollars",
			Help:      "Midpoint of completed compensation estimates.",
			Buckets:   prometheus.ExponentialBuckets(10_000, 4, 10),
		}, []string{"calculator"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculator_duration_seconds",
			Help:      "Time from session start to calculated or abandoned.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		}, []string{"calculator", "action"}),
	}

	if err := reg.Register(p.events); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register calculator events counter: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register calculator events counter: %w", err)
		}
		p.events = existing
	}
	if err := reg.Register(p.midpoint); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register estimate histogram: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("register estimate histogram: %w", err)
		}
		p.midpoint = existing
	}
	if err := reg.Register(p.duration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register duration histogram: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("register duration histogram: %w", err)
		}
		p.duration = existing
	}
	return p, nil
}

// Track 实现 Tracker
func (p *Prometheus) Track(_ context.Context, e model.CalculatorEvent) error {
	if p == nil {
		return nil
	}
	p.events.WithLabelValues(e.CalculatorID, string(e.Action)).Inc()
	if e.Action == model.ActionCalculated && e.EstimatedValue != nil {
		p.midpoint.WithLabelValues(e.CalculatorID).Observe(float64(*e.EstimatedValue))
	}
	if e.DurationMs != nil {
		p.duration.WithLabelValues(e.CalculatorID, string(e.Action)).Observe(float64(*e.DurationMs) / 1000)
	}
	return nil
}
