package main

import (
	"context"
	goflag "flag"

	flag "github.com/spf13/pflag"
	"github.com/vineetpathak08/remote-classroom/pkg/config"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
	"github.com/vineetpathak08/remote-classroom/pkg/monitoring"
	"github.com/vineetpathak08/remote-classroom/pkg/os"
	"github.com/vineetpathak08/remote-classroom/pkg/relay"
)

var Version = "?"

func main() {
	var (
		confPath = flag.StringP("conf", "c", "", "custom configuration file path")
		debug    = flag.BoolP("debug", "d", false, "debug logging")
	)
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()

	var conf config.RelayConfig
	if err := config.LoadConfig(&conf, *confPath); err != nil {
		panic(err)
	}
	log := logger.NewConsole(*debug, "r", false)
	log.Info().Msgf("version %s", Version)

	r, err := relay.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("relay init fail")
	}
	r.Run()

	mon := monitoring.New(conf.Monitoring, "r", log)
	mon.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := r.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("relay shutdown errors")
		}
		_ = mon.Shutdown(ctx)
	}()
	<-os.ExpectTermination()
	cancel()
}
