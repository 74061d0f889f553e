package adminserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/circleci/mongoclient/o11y"
	"github.com/circleci/mongoclient/system"
)

type Server struct {
	listener net.Listener
	server   *http.Server
}

// New listens on addr straight away, so a port of 0 can be read back from Addr.
func New(ctx context.Context, addr string, handler http.Handler) (s *Server, err error) {
	_, span := o11y.StartSpan(ctx, "adminserver: listen")
	defer o11y.End(span, &err)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	span.AddField("address", ln.Addr().String())

	return &Server{
		listener: ln,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       55 * time.Second,
			WriteTimeout:      55 * time.Second,
		},
	}, nil
}

// Serve blocks until ctx is done, then gives in flight requests a few seconds to finish.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(cctx); err != nil {
			return fmt.Errorf("admin server shutdown failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := s.server.Serve(s.listener)
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return g.Wait()
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Load serves the health checks already registered with sys, so it should be called after
// everything else has been loaded.
func Load(ctx context.Context, addr string, gatherer prometheus.Gatherer, sys *system.System) (*Server, error) {
	h, err := NewHandler(ctx, sys.HealthChecks(), gatherer)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, addr, h)
	if err != nil {
		return nil, fmt.Errorf("error starting admin server: %w", err)
	}
	sys.AddService(s.Serve)
	return s, nil
}
