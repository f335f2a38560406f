// Package control serves the JSON control surface: stats, input listing
// and selection, input restart requests, and live ts-adjustment tuning.
// Routing follows the teacher's http.ServeMux 1.22 method-pattern style
// (internal/distribution.Server.registerAPIRoutes); the resource model and
// exact endpoint semantics follow the original's controller.cpp.
package control

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/metamix/internal/certs"
	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/input"
	"github.com/zsiec/metamix/internal/metadata"
)

const serverHeader = "metamix"

// Config is everything Server needs beyond the shared application state:
// where to listen, and (optionally) a certificate to also serve the same
// API over HTTP/3.
type Config struct {
	Address string

	// QUICAddress, if non-empty, additionally serves the API over HTTP/3
	// on this address. Cert is required when it is set.
	QUICAddress string
	Cert        *certs.CertInfo
}

// Server is the control surface: one HTTP (and optionally HTTP/3) listener
// serving the same handlers.
type Server struct {
	cfg Config

	registry     *input.Registry
	group        *metadata.Group
	clk          *clock.Clock
	tsAdjustment *atomic.Int64

	log *slog.Logger

	httpSrv *http.Server
	h3Srv   *http3.Server
}

// NewServer returns a Server bound to the given shared application state.
// tsAdjustment is the live-mutable offset the injector's seiInjector reads;
// POST /config writes through it directly.
func NewServer(cfg Config, registry *input.Registry, group *metadata.Group, clk *clock.Clock, tsAdjustment *atomic.Int64, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:          cfg,
		registry:     registry,
		group:        group,
		clk:          clk,
		tsAdjustment: tsAdjustment,
		log:          log.With("component", "control"),
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /input", s.handleListInputs)
	mux.HandleFunc("GET /input/current", s.handleCurrentInput)
	mux.HandleFunc("POST /input/current", s.handleSetCurrentInput)
	mux.HandleFunc("POST /input/restart", s.handleRestartInput)
	mux.HandleFunc("GET /config", s.handleGetConfig)
	mux.HandleFunc("POST /config", s.handleSetConfig)
	return serverHeaderMiddleware(mux)
}

func serverHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", serverHeader)
		next.ServeHTTP(w, r)
	})
}

// Run serves the control surface's HTTP listener, and its HTTP/3 listener
// if Config.QUICAddress is set, until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	handler := s.routes()

	s.httpSrv = &http.Server{Addr: s.cfg.Address, Handler: handler}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("listening", "addr", s.cfg.Address)
		err := s.httpSrv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control: http listener: %w", err)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	})

	if s.cfg.QUICAddress != "" {
		if s.cfg.Cert == nil {
			return fmt.Errorf("control: quic-address configured without a certificate")
		}

		s.h3Srv = &http3.Server{
			Addr:    s.cfg.QUICAddress,
			Handler: handler,
			TLSConfig: &tls.Config{
				Certificates: []tls.Certificate{s.cfg.Cert.TLSCert},
			},
			QUICConfig: &quic.Config{MaxIdleTimeout: 30 * time.Second},
		}

		g.Go(func() error {
			s.log.Info("listening over HTTP/3", "addr", s.cfg.QUICAddress)
			err := s.h3Srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("control: http3 listener: %w", err)
		})
		g.Go(func() error {
			<-ctx.Done()
			return s.h3Srv.Close()
		})
	}

	return g.Wait()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("control: encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
