// Package zaplog is an o11y.Provider that writes spans and log events as structured zap entries.
//
// Finished spans are logged at debug level unless they carry a warning or an error, log events
// at info level. Metrics recorded on spans are sent to the configured statsd client when the
// span ends.
package zaplog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/circleci/mongoclient/o11y"
)

type Config struct {
	Logger *zap.Logger
	// Metrics receives span metrics, it defaults to a no-op statsd client.
	Metrics o11y.MetricsProvider
}

type Provider struct {
	logger  *zap.Logger
	metrics o11y.MetricsProvider

	mu      sync.RWMutex
	globals map[string]interface{}
}

func New(cfg Config) *Provider {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &statsd.NoOpClient{}
	}
	return &Provider{
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		globals: map[string]interface{}{},
	}
}

type spanKey struct{}

type span struct {
	provider *Provider
	name     string
	traceID  uuid.UUID
	id       uuid.UUID
	parentID uuid.UUID
	started  time.Time

	mu      sync.Mutex
	fields  map[string]interface{}
	metrics []o11y.Metric
	ended   bool
}

func (p *Provider) AddGlobalField(key string, val interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.globals[key] = val
}

func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	s := &span{
		provider: p,
		name:     name,
		id:       uuid.New(),
		started:  time.Now(),
		fields:   map[string]interface{}{},
	}
	if parent := getSpan(ctx); parent != nil {
		s.traceID = parent.traceID
		s.parentID = parent.id
	} else {
		s.traceID = uuid.New()
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

func (p *Provider) GetSpan(ctx context.Context) o11y.Span {
	if s := getSpan(ctx); s != nil {
		return s
	}
	return nil
}

func getSpan(ctx context.Context) *span {
	s, _ := ctx.Value(spanKey{}).(*span)
	return s
}

func (p *Provider) AddField(ctx context.Context, key string, val interface{}) {
	if s := getSpan(ctx); s != nil {
		s.AddField(key, val)
	}
}

func (p *Provider) Log(ctx context.Context, name string, fields ...o11y.Pair) {
	zfs := p.globalFields()
	if s := getSpan(ctx); s != nil {
		zfs = append(zfs, zap.Stringer("trace_id", s.traceID), zap.Stringer("parent_id", s.id))
	}
	for _, f := range fields {
		zfs = append(zfs, zap.Any("app."+f.Key, f.Value))
	}
	p.logger.Info(name, zfs...)
}

func (p *Provider) Close(_ context.Context) {
	_ = p.logger.Sync()
}

func (p *Provider) MetricsProvider() o11y.MetricsProvider {
	return p.metrics
}

func (p *Provider) globalFields() []zap.Field {
	p.mu.RLock()
	defer p.mu.RUnlock()
	zfs := make([]zap.Field, 0, len(p.globals))
	for _, k := range sortedKeys(p.globals) {
		zfs = append(zfs, zap.Any(k, p.globals[k]))
	}
	return zfs
}

func (s *span) AddField(key string, val interface{}) {
	s.AddRawField("app."+key, val)
}

func (s *span) AddRawField(key string, val interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[key] = val
}

func (s *span) RecordMetric(metric o11y.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, metric)
}

func (s *span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	duration := time.Since(s.started)
	s.fields["duration_ms"] = float64(duration) / float64(time.Millisecond)
	fields := make(map[string]interface{}, len(s.fields))
	for k, v := range s.fields {
		fields[k] = v
	}
	metrics := s.metrics
	s.mu.Unlock()

	s.log(fields)
	for _, m := range metrics {
		s.provider.emit(m, fields)
	}
}

func (s *span) log(fields map[string]interface{}) {
	level := zapcore.DebugLevel
	switch {
	case fields["error"] != nil:
		level = zapcore.ErrorLevel
	case fields["warning"] != nil:
		level = zapcore.WarnLevel
	}

	ce := s.provider.logger.Check(level, s.name)
	if ce == nil {
		return
	}
	zfs := append(s.provider.globalFields(),
		zap.Stringer("trace_id", s.traceID),
		zap.Stringer("span_id", s.id),
		zap.Time("started", s.started),
	)
	if s.parentID != uuid.Nil {
		zfs = append(zfs, zap.Stringer("parent_id", s.parentID))
	}
	for _, k := range sortedKeys(fields) {
		zfs = append(zfs, zap.Any(k, fields[k]))
	}
	ce.Write(zfs...)
}

func (p *Provider) emit(m o11y.Metric, fields map[string]interface{}) {
	tags := make([]string, 0, len(m.TagFields))
	for _, tf := range m.TagFields {
		v, ok := fields[tf]
		if !ok {
			v, ok = fields["app."+tf]
		}
		if ok {
			tags = append(tags, fmt.Sprintf("%s:%v", tf, v))
		}
	}

	var err error
	switch m.Type {
	case o11y.MetricTimer:
		if v, ok := toFloat(fields[m.Field]); ok {
			err = p.metrics.TimeInMilliseconds(m.Name, v, tags, 1)
		}
	case o11y.MetricGauge:
		if v, ok := toFloat(fields[m.Field]); ok {
			err = p.metrics.Gauge(m.Name, v, tags, 1)
		}
	case o11y.MetricCount:
		n := int64(1)
		if v, ok := toFloat(fields[m.Field]); ok {
			n = int64(v)
		}
		err = p.metrics.Count(m.Name, n, tags, 1)
	}
	if err != nil {
		p.logger.Debug("zaplog: metric not sent", zap.String("metric", m.Name), zap.Error(err))
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
