package session

import (
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
	"github.com/vineetpathak08/remote-classroom/pkg/media"
	"github.com/vineetpathak08/remote-classroom/pkg/webrtc"
)

// PionLinks is the production LinkFactory: every link comes out of one
// shared pion API with the local tracks already attached.
type PionLinks struct {
	api    *webrtc.ApiFactory
	tracks *media.TrackSet
	log    *logger.Logger
}

func NewPionLinks(api *webrtc.ApiFactory, tracks *media.TrackSet, log *logger.Logger) *PionLinks {
	return &PionLinks{api: api, tracks: tracks, log: log}
}

func (f *PionLinks) NewLink() (Link, error) {
	link, err := f.api.NewLink(f.log)
	if err != nil {
		return nil, err
	}
	if f.tracks != nil {
		if err = link.AddTrack(f.tracks.Audio); err != nil {
			link.Destroy()
			return nil, err
		}
		if err = link.AddTrack(f.tracks.Video); err != nil {
			link.Destroy()
			return nil, err
		}
	}
	return link, nil
}
