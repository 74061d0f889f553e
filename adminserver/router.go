package adminserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hellofresh/health-go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/circleci/mongoclient/o11y"
	"github.com/circleci/mongoclient/system"
)

const checkTimeout = 5 * time.Second

var once sync.Once

// NewHandler builds the admin router. A nil gatherer leaves /metrics unregistered.
func NewHandler(ctx context.Context, checked []system.HealthChecker, gatherer prometheus.Gatherer) (http.Handler, error) {
	once.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	live, ready, err := newHealthHandlers(checked)
	if err != nil {
		return nil, fmt.Errorf("failed to create health checks: %w", err)
	}

	r := gin.New()
	r.Use(middleware(o11y.FromContext(ctx)), gin.Recovery())

	r.GET("/live", gin.WrapH(live.Handler()))
	r.GET("/ready", gin.WrapH(ready.Handler()))
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/debug/pprof/*profile", profile)

	return r, nil
}

func profile(c *gin.Context) {
	switch strings.Trim(c.Param("profile"), "/") {
	case "cmdline":
		pprof.Cmdline(c.Writer, c.Request)
	case "profile":
		pprof.Profile(c.Writer, c.Request)
	case "symbol":
		pprof.Symbol(c.Writer, c.Request)
	case "trace":
		pprof.Trace(c.Writer, c.Request)
	default:
		pprof.Index(c.Writer, c.Request)
	}
}

// middleware gives every request a span. Probes are frequent, so they are named by route only.
func middleware(provider o11y.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := o11y.WithProvider(c.Request.Context(), provider)
		route := c.FullPath()
		if route == "" {
			route = "not-found"
		}
		ctx, span := o11y.StartSpan(ctx, "admin: "+route)
		defer span.End()
		span.RecordMetric(o11y.Timing("admin.request", "http.route", "http.status_code"))
		span.AddRawField("http.route", route)
		span.AddRawField("http.method", c.Request.Method)

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.AddRawField("http.status_code", c.Writer.Status())
	}
}

func newHealthHandlers(checked []system.HealthChecker) (live, ready *health.Health, err error) {
	live, err = health.New()
	if err != nil {
		return nil, nil, err
	}
	ready, err = health.New()
	if err != nil {
		return nil, nil, err
	}

	for _, c := range checked {
		name, readyCheck, liveCheck := c.HealthChecks()
		if readyCheck != nil {
			err = ready.Register(health.Config{Name: name, Timeout: checkTimeout, Check: readyCheck})
			if err != nil {
				return nil, nil, err
			}
		}
		if liveCheck != nil {
			err = live.Register(health.Config{Name: name, Timeout: checkTimeout, Check: liveCheck})
			if err != nil {
				return nil, nil, err
			}
		}
	}
	return live, ready, nil
}
