// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tamzrod/gsmlink/internal/command"
	"github.com/tamzrod/gsmlink/internal/link"
	"github.com/tamzrod/gsmlink/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Controller is the part of the link machine the API drives.
type Controller interface {
	State() link.State
	Command(d command.Directive) error
}

// Server is the local status and control surface.
type Server struct {
	addr string
	ctrl Controller
	log  logging.Logger
	r    chi.Router
}

// New builds the router. metrics may be nil.
func New(addr string, ctrl Controller, metrics http.Handler, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{addr: addr, ctrl: ctrl, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok", "service": "gsmlink"})
	})
	r.Get("/status", s.status)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/link", func(r chi.Router) {
		r.Post("/{directive}", s.directive)
	})

	s.r = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "HTTP API listening", logging.String("addr", s.addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return nil
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) directive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "directive")
	d, ok := command.Parse(name)
	if !ok {
		errorResponse(w, http.StatusNotFound, "unknown directive "+name)
		return
	}

	if err := s.ctrl.Command(d); err != nil {
		if errors.Is(err, link.ErrStopped) {
			errorResponse(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info(r.Context(), "Directive accepted", logging.String("directive", d.String()))
	jsonResponse(w, http.StatusAccepted, map[string]string{"status": "ok", "message": d.String() + " queued"})
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	b, err := sonic.Marshal(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]any{
		"error": message,
		"code":  status,
	})
}
