package bandwidth

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cavaliercoder/grab"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vineetpathak08/remote-classroom/pkg/config"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
)

var (
	metricDownlink = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classroom_bandwidth_downlink_mbps",
		Help: "Last estimated downlink rate.",
	})
	metricAudioOnly = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classroom_bandwidth_audio_only",
		Help: "Whether the session runs in audio-only mode (1) or not (0).",
	})
)

// Monitor merges passive readings and active probes into one estimate
// stream. Level changes fire the OnChange callback; same-level updates
// are dropped to keep the room traffic down.
type Monitor struct {
	conf config.Bandwidth
	log  *logger.Logger

	onChange func(Estimate)
	last     Estimate
	done     chan struct{}
	once     sync.Once
	mu       sync.Mutex
}

func NewMonitor(conf config.Bandwidth, log *logger.Logger) *Monitor {
	return &Monitor{conf: conf, log: log, done: make(chan struct{})}
}

func (m *Monitor) OnChange(fn func(Estimate)) { m.mu.Lock(); m.onChange = fn; m.mu.Unlock() }

func (m *Monitor) Last() Estimate { m.mu.Lock(); defer m.mu.Unlock(); return m.last }

// Report feeds one passive reading into the monitor.
func (m *Monitor) Report(r Reading) { m.apply(Classify(r)) }

// Start launches the periodic download probe when one is configured.
func (m *Monitor) Start() {
	if m.conf.ProbeUrl == "" {
		m.log.Debug().Msg("bandwidth probe is off")
		return
	}
	go m.probeLoop()
}

func (m *Monitor) Stop() { m.once.Do(func() { close(m.done) }) }

func (m *Monitor) probeLoop() {
	interval := m.conf.ProbeInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			est, err := m.probe()
			if err != nil {
				m.log.Warn().Err(err).Msg("bandwidth probe fail")
				// an unreachable probe host is itself a signal
				est = Estimate{Level: LevelVeryLow, Quality: QualityPoor, AudioOnly: true}
			}
			m.apply(est)
		}
	}
}

// probe downloads the configured file into a scratch path and derives
// the rate from the transfer itself.
func (m *Monitor) probe() (Estimate, error) {
	dst := filepath.Join(os.TempDir(), "classroom_probe")
	defer func() { _ = os.Remove(dst) }()

	req, err := grab.NewRequest(dst, m.conf.ProbeUrl)
	if err != nil {
		return Estimate{}, err
	}
	req.NoResume = true
	resp := grab.NewClient().Do(req)
	<-resp.Done
	if err := resp.Err(); err != nil {
		return Estimate{}, err
	}
	mbps := resp.BytesPerSecond() * 8 / 1e6
	m.log.Debug().Msgf("probe: %v bytes at %.2f Mbps", resp.BytesComplete(), mbps)
	return ClassifyRate(mbps), nil
}

func (m *Monitor) apply(est Estimate) {
	if m.conf.AudioOnlyBelow > 0 && est.Mbps < m.conf.AudioOnlyBelow {
		est.AudioOnly = true
	}
	metricDownlink.Set(est.Mbps)
	if est.AudioOnly {
		metricAudioOnly.Set(1)
	} else {
		metricAudioOnly.Set(0)
	}

	m.mu.Lock()
	changed := est.Level != m.last.Level || est.AudioOnly != m.last.AudioOnly
	m.last = est
	fn := m.onChange
	m.mu.Unlock()

	if changed {
		m.log.Info().Msgf("bandwidth level %v (%.2f Mbps, audio-only: %v)", est.Level, est.Mbps, est.AudioOnly)
		if fn != nil {
			fn(est)
		}
	}
}
