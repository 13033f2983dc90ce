// Package bandwidth estimates the usable downlink of a participant and
// maps it to a streaming level. Estimates come from two sources: passive
// readings reported by the network layer and an optional active download
// probe. Either path ends in Classify, so both agree on the thresholds.
package bandwidth

type (
	// Level is the streaming tier a session runs at.
	Level string
	// Quality is the per-participant label shared with the room.
	Quality string
)

const (
	LevelHigh    Level = "high"
	LevelMedium  Level = "medium"
	LevelLow     Level = "low"
	LevelVeryLow Level = "very_low"

	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// Reading is a passive connectivity sample (network type plus the
// advertised downlink rate in Mbps).
type Reading struct {
	NetworkType  string
	DownlinkMbps float64
}

type Estimate struct {
	Level     Level
	Quality   Quality
	AudioOnly bool
	Mbps      float64
}

// Profile is the recommended encoder ceiling for a level.
type Profile struct {
	Width     int
	Height    int
	VideoKbps int
	AudioKbps int
}

func (l Level) Profile() Profile {
	switch l {
	case LevelHigh:
		return Profile{Width: 1280, Height: 720, VideoKbps: 1500, AudioKbps: 128}
	case LevelMedium:
		return Profile{Width: 854, Height: 480, VideoKbps: 800, AudioKbps: 96}
	case LevelLow:
		return Profile{Width: 640, Height: 360, VideoKbps: 400, AudioKbps: 64}
	}
	return Profile{AudioKbps: 32}
}

// Classify maps a passive reading to an estimate. Unknown network types
// fall through to the lowest tier, so a missing reading never upgrades
// anyone.
func Classify(r Reading) Estimate {
	t, mbps := r.NetworkType, r.DownlinkMbps
	switch {
	case t == "4g" && mbps > 2:
		return Estimate{Level: LevelHigh, Quality: QualityExcellent, Mbps: mbps}
	case (t == "4g" || t == "3g") && mbps > 1:
		return Estimate{Level: LevelMedium, Quality: QualityGood, Mbps: mbps}
	case t == "3g" || t == "2g":
		return Estimate{Level: LevelLow, Quality: QualityFair, AudioOnly: mbps < 0.5, Mbps: mbps}
	}
	return Estimate{Level: LevelVeryLow, Quality: QualityPoor, AudioOnly: true, Mbps: mbps}
}

// ClassifyRate maps a measured download rate to an estimate.
func ClassifyRate(mbps float64) Estimate {
	switch {
	case mbps > 2:
		return Estimate{Level: LevelHigh, Quality: QualityExcellent, Mbps: mbps}
	case mbps > 1:
		return Estimate{Level: LevelMedium, Quality: QualityGood, Mbps: mbps}
	case mbps > 0.5:
		return Estimate{Level: LevelLow, Quality: QualityFair, Mbps: mbps}
	}
	return Estimate{Level: LevelVeryLow, Quality: QualityPoor, AudioOnly: true, Mbps: mbps}
}
