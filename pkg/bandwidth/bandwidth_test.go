package bandwidth

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		reading   Reading
		level     Level
		quality   Quality
		audioOnly bool
	}{
		{"fast 4g", Reading{"4g", 5}, LevelHigh, QualityExcellent, false},
		{"slow 4g", Reading{"4g", 1.5}, LevelMedium, QualityGood, false},
		{"good 3g", Reading{"3g", 1.2}, LevelMedium, QualityGood, false},
		{"plain 3g", Reading{"3g", 0.8}, LevelLow, QualityFair, false},
		{"starved 3g", Reading{"3g", 0.3}, LevelLow, QualityFair, true},
		{"2g", Reading{"2g", 0.2}, LevelLow, QualityFair, true},
		{"unknown", Reading{"", 10}, LevelVeryLow, QualityPoor, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.reading)
			if got.Level != tc.level || got.Quality != tc.quality || got.AudioOnly != tc.audioOnly {
				t.Errorf("got %+v, want %v/%v audioOnly=%v", got, tc.level, tc.quality, tc.audioOnly)
			}
		})
	}
}

func TestClassifyRate(t *testing.T) {
	tests := []struct {
		mbps      float64
		level     Level
		audioOnly bool
	}{
		{3.0, LevelHigh, false},
		{1.5, LevelMedium, false},
		{0.7, LevelLow, false},
		{0.2, LevelVeryLow, true},
	}
	for _, tc := range tests {
		got := ClassifyRate(tc.mbps)
		if got.Level != tc.level || got.AudioOnly != tc.audioOnly {
			t.Errorf("%v Mbps: got %+v, want %v audioOnly=%v", tc.mbps, got, tc.level, tc.audioOnly)
		}
	}
}

func TestProfilePerLevel(t *testing.T) {
	if p := LevelHigh.Profile(); p.Height != 720 {
		t.Errorf("high should cap at 720p, got %v", p.Height)
	}
	if p := LevelVeryLow.Profile(); p.VideoKbps != 0 {
		t.Errorf("very_low should carry no video, got %v kbps", p.VideoKbps)
	}
}
