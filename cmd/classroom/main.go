package main

import (
	"context"
	goflag "flag"
	"net/url"

	flag "github.com/spf13/pflag"
	"github.com/vineetpathak08/remote-classroom/pkg/api"
	"github.com/vineetpathak08/remote-classroom/pkg/bandwidth"
	"github.com/vineetpathak08/remote-classroom/pkg/classapi"
	"github.com/vineetpathak08/remote-classroom/pkg/com"
	"github.com/vineetpathak08/remote-classroom/pkg/config"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
	"github.com/vineetpathak08/remote-classroom/pkg/media"
	"github.com/vineetpathak08/remote-classroom/pkg/monitoring"
	"github.com/vineetpathak08/remote-classroom/pkg/os"
	"github.com/vineetpathak08/remote-classroom/pkg/recorder"
	"github.com/vineetpathak08/remote-classroom/pkg/session"
	"github.com/vineetpathak08/remote-classroom/pkg/signaling"
	"github.com/vineetpathak08/remote-classroom/pkg/webrtc"
)

var Version = "?"

func main() {
	var (
		confPath = flag.StringP("conf", "c", "", "custom configuration file path")
		room     = flag.String("room", "", "class room id to join")
		userId   = flag.String("user", "", "user id (random if empty)")
		userName = flag.String("name", "student", "display name")
		role     = flag.String("role", "student", "role: instructor or student")
		debug    = flag.BoolP("debug", "d", false, "debug logging")
	)
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()

	var conf config.ClassroomConfig
	if err := config.LoadConfig(&conf, *confPath); err != nil {
		panic(err)
	}
	log := logger.NewConsole(*debug, "c", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	if *room == "" {
		log.Fatal().Msg("no room id, use --room")
	}
	if *userId == "" {
		*userId = com.NewUid().String()
	}

	// one client per machine, the capture devices are exclusive
	lock, err := os.NewFileLock(conf.Classroom.LibraryLock)
	if err != nil {
		log.Fatal().Err(err).Msg("lock file fail")
	}
	if ok, err := lock.TryLock(); err != nil || !ok {
		log.Fatal().Err(err).Msg("another classroom client is running")
	}
	defer func() { _ = lock.Unlock() }()

	address, err := url.Parse(conf.Classroom.RelayAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("bad relay address")
	}
	transport, err := signaling.Connect(*address, conf.Session.CallTimeout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("relay connect fail")
	}

	apiFactory, err := webrtc.NewApiFactory(conf.Webrtc, log, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc init fail")
	}
	// a failed capture setup degrades the session, it never aborts it
	tracks, err := media.NewTrackSet(log)
	if err != nil {
		log.Warn().Err(err).Msg("media init fail, joining without outbound media")
		tracks = nil
	}

	var rec *recorder.Recording
	if conf.Recording.Enabled {
		sink, err := recorder.NewSink(conf.Recording.Storage)
		if err != nil {
			log.Fatal().Err(err).Msg("storage init fail")
		}
		rec = recorder.New(conf.Recording, sink, log)
	}

	mon := monitoring.New(conf.Monitoring, "c", log)
	mon.Run()
	defer func() { _ = mon.Shutdown(context.Background()) }()

	s := session.New(
		transport,
		session.NewPionLinks(apiFactory, tracks, log),
		conf.Session,
		classapi.New(conf.ClassApi, log),
		rec,
		bandwidth.NewMonitor(conf.Bandwidth, log),
		log,
	)
	s.BindTracks(tracks)
	closed := make(chan struct{}, 1)
	s.OnClosed(func(reason string) {
		log.Info().Msgf("session closed: %v", reason)
		closed <- struct{}{}
	})

	if err := s.Join(*room, *userId, *userName, api.Role(*role)); err != nil {
		log.Fatal().Err(err).Msg("join fail")
	}
	defer s.Leave()

	select {
	case <-os.ExpectTermination():
	case <-closed:
	case <-transport.Wait():
		log.Error().Msg("relay connection lost")
	}
}
