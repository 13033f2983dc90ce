package monitoring

import (
	"context"
	"fmt"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vineetpathak08/remote-classroom/pkg/config"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
	"github.com/vineetpathak08/remote-classroom/pkg/network/httpx"
)

// Monitoring exposes Prometheus metrics and pprof profiles over HTTP.
type Monitoring struct {
	conf   config.Monitoring
	log    *logger.Logger
	server *httpx.Server
}

// New creates a new monitoring service.
// The tag param specifies the owner label for logs.
func New(conf config.Monitoring, tag string, log *logger.Logger) *Monitoring {
	serv, err := httpx.NewServer(
		fmt.Sprintf(":%d", conf.Port),
		func(serv *httpx.Server) httpx.Handler {
			h := httpx.NewServeMux(conf.URLPrefix)

			if conf.ProfilingEnabled {
				log.Info().Msgf("[%v] profiling at %v%v/debug/pprof", tag, serv.Addr, conf.URLPrefix)
				h.HandleFunc("/debug/pprof/", pprof.Index)
				h.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
				h.HandleFunc("/debug/pprof/profile", pprof.Profile)
				h.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
				h.HandleFunc("/debug/pprof/trace", pprof.Trace)
				h.Handle("/debug/pprof/allocs", pprof.Handler("allocs"))
				h.Handle("/debug/pprof/block", pprof.Handler("block"))
				h.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
				h.Handle("/debug/pprof/heap", pprof.Handler("heap"))
				h.Handle("/debug/pprof/mutex", pprof.Handler("mutex"))
				h.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
			}

			if conf.MetricEnabled {
				log.Info().Msgf("[%v] metrics at %v%v/metrics", tag, serv.Addr, conf.URLPrefix)
				h.Handle("/metrics", promhttp.Handler())
			}

			return h
		},
		false,
		log,
	)
	if err != nil {
		log.Error().Err(err).Msg("monitoring server init fail")
		return &Monitoring{conf: conf, log: log}
	}
	return &Monitoring{conf: conf, log: log, server: serv}
}

func (m *Monitoring) Run() {
	if m.server == nil {
		return
	}
	m.log.Info().Msgf("starting monitoring server at %v", m.server.Addr)
	m.server.Run()
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
