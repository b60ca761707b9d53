package catalog

import "fmt"

// AssignmentDefaults are the conservative practice parameters derived
// from a pack's groove.
type AssignmentDefaults struct {
	TempoStartBPM   float64 `json:"tempo_start_bpm"`
	TempoTargetBPM  float64 `json:"tempo_target_bpm"`
	TempoCeilingBPM float64 `json:"tempo_ceiling_bpm"`
	BarsPerLoop     int     `json:"bars_per_loop"`
	StrictWindowMS  float64 `json:"strict_window_ms"`
	GhostVelMax     int     `json:"ghost_vel_max"`
	SwingRatio      float64 `json:"swing_ratio"`
	Subdivision     string  `json:"subdivision"`
	Difficulty      string  `json:"difficulty"`
}

// Defaults derives assignment defaults from p. Practice starts at the
// bottom of the tempo range and targets its midpoint; swung and compound
// feels get a wider timing window.
func Defaults(p *Pack) AssignmentDefaults {
	lo, hi := p.Groove.TempoRangeBPM[0], p.Groove.TempoRangeBPM[1]

	window := 35.0
	switch p.Groove.Subdivision {
	case SubdivisionTernary:
		window = 50.0
	case SubdivisionCompound:
		window = 45.0
	}

	return AssignmentDefaults{
		TempoStartBPM:   lo,
		TempoTargetBPM:  (lo + hi) / 2,
		TempoCeilingBPM: hi,
		BarsPerLoop:     p.Groove.CycleBars,
		StrictWindowMS:  window,
		GhostVelMax:     p.PerformanceProfile.VelocityRange.GhostMax,
		SwingRatio:      p.Groove.SwingRatio,
		Subdivision:     p.Groove.Subdivision,
		Difficulty:      p.PracticeMapping.DifficultyRating,
	}
}

// TempoRange formats the start-to-ceiling range for display.
func (d AssignmentDefaults) TempoRange() string {
	return fmt.Sprintf("%.0f-%.0f BPM", d.TempoStartBPM, d.TempoCeilingBPM)
}
