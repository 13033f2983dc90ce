package config

import (
	"time"
)

type (
	// ClassroomConfig is the client-side application config.
	ClassroomConfig struct {
		Classroom  Classroom
		Bandwidth  Bandwidth
		ClassApi   ClassApi
		Recording  Recording
		Session    Session
		Webrtc     Webrtc
		Monitoring Monitoring
	}
	// RelayConfig is the signaling relay config.
	RelayConfig struct {
		Relay      Relay
		Monitoring Monitoring
	}
)

type Classroom struct {
	// relay websocket endpoint, e.g. ws://localhost:9000/ws
	RelayAddress string
	LogLevel     int
	LibraryLock  string
}

type Relay struct {
	Address  string
	Origin   string
	LogLevel int
}

type Session struct {
	// how often the roster reconciliation sweep runs
	DedupInterval time.Duration
	// blocking relay request timeout
	CallTimeout time.Duration
}

type Bandwidth struct {
	// active speed probe target; empty disables probing
	ProbeUrl      string
	ProbeInterval time.Duration
	// below this rate (Mbps) the session enforces audio-only
	AudioOnlyBelow float64
}

type ClassApi struct {
	// REST collaborator base url; empty disables the client
	Address string
	Token   string
	Timeout time.Duration
}

type Recording struct {
	Enabled bool
	Folder  string
	Name    string
	// segment flush period
	Segment time.Duration
	Storage Storage
}

type Storage struct {
	// one of: google (gcs bucket), http (pre-authenticated put), or empty for none
	Provider string
	Key      string
}

type Webrtc struct {
	DisableDefaultInterceptors bool
	IceServers                 []IceServer
	IcePorts                   struct {
		Min uint16
		Max uint16
	}
	IceIpMap string
	IceLite  bool
	LogLevel int
}

type IceServer struct {
	Urls       string
	Username   string
	Credential string
}

type Monitoring struct {
	Port             int
	URLPrefix        string `fig:"urlPrefix"`
	ProfilingEnabled bool
	MetricEnabled    bool
}

func (w *Webrtc) HasPortRange() bool { return w.IcePorts.Min > 0 && w.IcePorts.Max > 0 }
func (w *Webrtc) HasIceIpMap() bool  { return w.IceIpMap != "" }

func (r *Recording) HasStorage() bool { return r.Storage.Provider != "" }
