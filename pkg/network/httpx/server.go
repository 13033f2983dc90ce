package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/vineetpathak08/remote-classroom/pkg/logger"
)

type Server struct {
	http.Server

	listener *Listener
	log      *logger.Logger
}

type (
	Mux struct {
		*http.ServeMux
		prefix string
	}
	Handler        = http.Handler
	HandlerFunc    = http.HandlerFunc
	ResponseWriter = http.ResponseWriter
	Request        = http.Request
)

// NewServeMux allocates and returns a new ServeMux.
func NewServeMux(prefix string) *Mux {
	return &Mux{ServeMux: http.NewServeMux(), prefix: prefix}
}

func (m *Mux) Handle(pattern string, handler Handler) *Mux {
	m.ServeMux.Handle(m.prefix+pattern, handler)
	return m
}

func (m *Mux) HandleFunc(pattern string, handler func(ResponseWriter, *Request)) *Mux {
	m.ServeMux.HandleFunc(m.prefix+pattern, handler)
	return m
}

func (m *Mux) ServeHTTP(w ResponseWriter, r *Request) { m.ServeMux.ServeHTTP(w, r) }

func NewServer(address string, handler func(*Server) Handler, rollPorts bool, log *logger.Logger) (*Server, error) {
	server := &Server{
		Server: http.Server{
			Addr:         address,
			IdleTimeout:  120 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: log,
	}
	server.Handler = handler(server)

	listener, err := NewListener(address, rollPorts)
	if err != nil {
		return nil, err
	}
	server.listener = listener
	server.Addr = listener.Addr().String()

	return server, nil
}

func (s *Server) Mux() *Mux { return NewServeMux("") }

func (s *Server) Run() { go s.run() }

func (s *Server) run() {
	s.log.Debug().Msgf("http server on %s", s.Addr)
	if err := s.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		s.log.Error().Err(err).Msg("http server fail")
	}
}

func (s *Server) Shutdown(ctx context.Context) error { return s.Server.Shutdown(ctx) }

func (s *Server) Stop() error { return s.Server.Close() }
