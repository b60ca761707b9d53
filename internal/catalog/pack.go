// Package catalog loads dance packs and curated pack sets. The bundled
// content is embedded at compile time; packs and sets can also be read
// from standalone YAML files.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/pathutil"
)

const (
	PackSchemaID      = "dance_pack"
	PackSchemaVersion = "v1"
)

// Subdivisions.
const (
	SubdivisionBinary   = "binary"
	SubdivisionTernary  = "ternary"
	SubdivisionCompound = "compound"
)

var difficulties = map[string]bool{
	"beginner": true, "easy": true, "medium": true,
	"hard": true, "advanced": true, "expert": true,
}

// Pack is a dance pack: groove, harmony and performance constraints for
// one dance form, plus how practice on it is evaluated.
type Pack struct {
	SchemaID           string             `yaml:"schema_id" json:"schema_id"`
	SchemaVersion      string             `yaml:"schema_version" json:"schema_version"`
	Metadata           PackMetadata       `yaml:"metadata" json:"metadata"`
	Groove             Groove             `yaml:"groove" json:"groove"`
	HarmonyConstraints HarmonyConstraints `yaml:"harmony_constraints" json:"harmony_constraints"`
	PerformanceProfile PerformanceProfile `yaml:"performance_profile" json:"performance_profile"`
	PracticeMapping    PracticeMapping    `yaml:"practice_mapping" json:"practice_mapping"`
	Extensions         map[string]any     `yaml:"extensions" json:"extensions"`
}

type PackMetadata struct {
	ID                  string   `yaml:"id" json:"id"`
	DisplayName         string   `yaml:"display_name" json:"display_name"`
	DanceFamily         string   `yaml:"dance_family" json:"dance_family"`
	Version             string   `yaml:"version" json:"version"`
	Author              string   `yaml:"author" json:"author"`
	License             string   `yaml:"license" json:"license"`
	EngineCompatibility string   `yaml:"engine_compatibility" json:"engine_compatibility"`
	Tags                []string `yaml:"tags" json:"tags"`
}

type Groove struct {
	Meter         string     `yaml:"meter" json:"meter"`
	CycleBars     int        `yaml:"cycle_bars" json:"cycle_bars"`
	Subdivision   string     `yaml:"subdivision" json:"subdivision"`
	TempoRangeBPM []float64  `yaml:"tempo_range_bpm" json:"tempo_range_bpm"`
	SwingRatio    float64    `yaml:"swing_ratio" json:"swing_ratio"`
	AccentGrid    AccentGrid `yaml:"accent_grid" json:"accent_grid"`
	Clave         Clave      `yaml:"clave" json:"clave"`
}

type AccentGrid struct {
	StrongBeats     []int   `yaml:"strong_beats" json:"strong_beats"`
	SecondaryBeats  []int   `yaml:"secondary_beats" json:"secondary_beats"`
	GhostAllowed    bool    `yaml:"ghost_allowed" json:"ghost_allowed"`
	OffbeatEmphasis float64 `yaml:"offbeat_emphasis" json:"offbeat_emphasis"`
}

type Clave struct {
	Type      string `yaml:"type" json:"type"`
	Pattern   []int  `yaml:"pattern" json:"pattern"`
	Direction string `yaml:"direction" json:"direction"`
}

type HarmonyConstraints struct {
	HarmonicRhythm   HarmonicRhythm   `yaml:"harmonic_rhythm" json:"harmonic_rhythm"`
	DominantBehavior DominantBehavior `yaml:"dominant_behavior" json:"dominant_behavior"`
	TritoneUsage     TritoneUsage     `yaml:"tritone_usage" json:"tritone_usage"`
	ChromaticDrift   ChromaticDrift   `yaml:"chromatic_drift" json:"chromatic_drift"`
	ModalConstraints ModalConstraints `yaml:"modal_constraints" json:"modal_constraints"`
}

type HarmonicRhythm struct {
	MaxChangesPerCycle     int     `yaml:"max_changes_per_cycle" json:"max_changes_per_cycle"`
	MinBeatsBetweenChanges float64 `yaml:"min_beats_between_changes" json:"min_beats_between_changes"`
	ChangeOnStrongBeat     string  `yaml:"change_on_strong_beat" json:"change_on_strong_beat"`
}

type DominantBehavior struct {
	Allowed            bool   `yaml:"allowed" json:"allowed"`
	ResolutionStrength string `yaml:"resolution_strength" json:"resolution_strength"`
	SecondaryDominants bool   `yaml:"secondary_dominants" json:"secondary_dominants"`
}

type TritoneUsage struct {
	Allowed          bool   `yaml:"allowed" json:"allowed"`
	Weight           string `yaml:"weight" json:"weight"`
	ForbiddenOnBeats []int  `yaml:"forbidden_on_beats" json:"forbidden_on_beats"`
}

type ChromaticDrift struct {
	Allowed      bool `yaml:"allowed" json:"allowed"`
	MaxSemitones int  `yaml:"max_semitones" json:"max_semitones"`
}

type ModalConstraints struct {
	ParallelMinorAllowed  bool   `yaml:"parallel_minor_allowed" json:"parallel_minor_allowed"`
	ModalInterchangeLevel string `yaml:"modal_interchange_level" json:"modal_interchange_level"`
}

type PerformanceProfile struct {
	VelocityRange     VelocityRange     `yaml:"velocity_range" json:"velocity_range"`
	PickupBias        PickupBias        `yaml:"pickup_bias" json:"pickup_bias"`
	ContourPreference ContourPreference `yaml:"contour_preference" json:"contour_preference"`
	OrnamentDensity   string            `yaml:"ornament_density" json:"ornament_density"`
	RegisterBias      string            `yaml:"register_bias" json:"register_bias"`
	Articulation      Articulation      `yaml:"articulation" json:"articulation"`
}

type VelocityRange struct {
	Min       int `yaml:"min" json:"min"`
	Max       int `yaml:"max" json:"max"`
	GhostMax  int `yaml:"ghost_max" json:"ghost_max"`
	AccentMin int `yaml:"accent_min" json:"accent_min"`
}

type PickupBias struct {
	Probability    float64 `yaml:"probability" json:"probability"`
	MaxOffsetBeats float64 `yaml:"max_offset_beats" json:"max_offset_beats"`
}

type ContourPreference struct {
	StepwiseWeight  float64 `yaml:"stepwise_weight" json:"stepwise_weight"`
	LeapWeight      float64 `yaml:"leap_weight" json:"leap_weight"`
	MaxLeapInterval int     `yaml:"max_leap_interval" json:"max_leap_interval"`
}

type Articulation struct {
	DefaultDurationRatio float64 `yaml:"default_duration_ratio" json:"default_duration_ratio"`
	StaccatoProbability  float64 `yaml:"staccato_probability" json:"staccato_probability"`
	LegatoProbability    float64 `yaml:"legato_probability" json:"legato_probability"`
}

type PracticeMapping struct {
	PrimaryFocus      []string          `yaml:"primary_focus" json:"primary_focus"`
	EvaluationWeights EvaluationWeights `yaml:"evaluation_weights" json:"evaluation_weights"`
	CommonErrors      []string          `yaml:"common_errors" json:"common_errors"`
	DifficultyRating  string            `yaml:"difficulty_rating" json:"difficulty_rating"`
	PrerequisiteForms []string          `yaml:"prerequisite_forms" json:"prerequisite_forms"`
}

type EvaluationWeights struct {
	TimingAccuracy float64 `yaml:"timing_accuracy" json:"timing_accuracy"`
	HarmonicChoice float64 `yaml:"harmonic_choice" json:"harmonic_choice"`
	DynamicControl float64 `yaml:"dynamic_control" json:"dynamic_control"`
	GrooveFeel     float64 `yaml:"groove_feel" json:"groove_feel"`
}

// Sum returns the total of all weights.
func (w EvaluationWeights) Sum() float64 {
	return w.TimingAccuracy + w.HarmonicChoice + w.DynamicControl + w.GrooveFeel
}

// newPack returns a Pack carrying the defaults for optional fields.
// Decoding fills in whatever the document provides.
func newPack() *Pack {
	return &Pack{
		SchemaID:      PackSchemaID,
		SchemaVersion: PackSchemaVersion,
		Metadata:      PackMetadata{Author: "system", License: "core", Tags: []string{}},
		Groove: Groove{
			AccentGrid: AccentGrid{GhostAllowed: true, SecondaryBeats: []int{}},
			Clave:      Clave{Type: "none", Direction: "forward", Pattern: []int{}},
		},
		HarmonyConstraints: HarmonyConstraints{
			HarmonicRhythm:   HarmonicRhythm{MinBeatsBetweenChanges: 1.0, ChangeOnStrongBeat: "preferred"},
			DominantBehavior: DominantBehavior{Allowed: true, ResolutionStrength: "medium"},
			TritoneUsage:     TritoneUsage{Weight: "none", ForbiddenOnBeats: []int{}},
			ModalConstraints: ModalConstraints{ModalInterchangeLevel: "diatonic_only"},
		},
		PerformanceProfile: PerformanceProfile{
			VelocityRange:     VelocityRange{GhostMax: 24, AccentMin: 78},
			PickupBias:        PickupBias{MaxOffsetBeats: 0.25},
			ContourPreference: ContourPreference{StepwiseWeight: 0.6, LeapWeight: 0.4, MaxLeapInterval: 7},
			OrnamentDensity:   "low",
			RegisterBias:      "mid",
			Articulation:      Articulation{DefaultDurationRatio: 0.8},
		},
		PracticeMapping: PracticeMapping{CommonErrors: []string{}, PrerequisiteForms: []string{}},
		Extensions:      map[string]any{},
	}
}

// Validate checks the pack against the dance_pack v1 rules.
func (p *Pack) Validate() error {
	if p.SchemaID != PackSchemaID || p.SchemaVersion != PackSchemaVersion {
		return packInvalid(p, "schema %s/%s, want %s/%s", p.SchemaID, p.SchemaVersion, PackSchemaID, PackSchemaVersion)
	}

	m := p.Metadata
	if err := pathutil.ValidateName(m.ID); err != nil {
		return packInvalid(p, "metadata.id: %v", err)
	}
	for field, v := range map[string]string{
		"display_name":         m.DisplayName,
		"dance_family":         m.DanceFamily,
		"version":              m.Version,
		"engine_compatibility": m.EngineCompatibility,
	} {
		if v == "" {
			return packInvalid(p, "metadata.%s is required", field)
		}
	}

	g := p.Groove
	if g.Meter == "" {
		return packInvalid(p, "groove.meter is required")
	}
	if g.CycleBars < 1 {
		return packInvalid(p, "groove.cycle_bars must be positive")
	}
	switch g.Subdivision {
	case SubdivisionBinary, SubdivisionTernary, SubdivisionCompound:
	default:
		return packInvalid(p, "groove.subdivision %q", g.Subdivision)
	}
	if len(g.TempoRangeBPM) != 2 {
		return packInvalid(p, "groove.tempo_range_bpm needs [min, max]")
	}
	if g.TempoRangeBPM[0] <= 0 || g.TempoRangeBPM[0] > g.TempoRangeBPM[1] {
		return packInvalid(p, "groove.tempo_range_bpm %v is not an ascending positive range", g.TempoRangeBPM)
	}
	if g.SwingRatio < 0 || g.SwingRatio >= 1 {
		return packInvalid(p, "groove.swing_ratio %v out of [0, 1)", g.SwingRatio)
	}
	if len(g.AccentGrid.StrongBeats) == 0 {
		return packInvalid(p, "groove.accent_grid.strong_beats is required")
	}
	if g.Clave.Type != "none" && len(g.Clave.Pattern) == 0 {
		return packInvalid(p, "groove.clave type %q needs a pattern", g.Clave.Type)
	}

	if p.HarmonyConstraints.HarmonicRhythm.MaxChangesPerCycle < 0 {
		return packInvalid(p, "harmony_constraints.harmonic_rhythm.max_changes_per_cycle is negative")
	}

	v := p.PerformanceProfile.VelocityRange
	if v.Min < 0 || v.Max > 127 || v.Min > v.Max {
		return packInvalid(p, "performance_profile.velocity_range %d-%d", v.Min, v.Max)
	}

	pm := p.PracticeMapping
	if len(pm.PrimaryFocus) == 0 {
		return packInvalid(p, "practice_mapping.primary_focus is required")
	}
	if total := pm.EvaluationWeights.Sum(); math.Abs(total-1.0) > 0.01 {
		return packInvalid(p, "evaluation_weights must sum to 1.0 (got %.3f)", total)
	}
	if !difficulties[pm.DifficultyRating] {
		return packInvalid(p, "practice_mapping.difficulty_rating %q", pm.DifficultyRating)
	}
	return nil
}

func packInvalid(p *Pack, format string, args ...any) error {
	id := p.Metadata.ID
	if id == "" {
		id = "<unnamed>"
	}
	return errclass.ErrPackInvalid.WithMessagef("%s: %s", id, fmt.Sprintf(format, args...))
}

// DecodePack parses and validates a pack document. Unknown keys are
// rejected.
func DecodePack(data []byte) (*Pack, error) {
	p := newPack()
	if err := decodeStrict(data, p); err != nil {
		return nil, errclass.ErrPackInvalid.WithMessagef("decode: %v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadPackFile reads a pack from the filesystem.
func LoadPackFile(path string) (*Pack, error) {
	data, err := readInput(path, "dance pack")
	if err != nil {
		return nil, err
	}
	p, err := DecodePack(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty document")
		}
		return err
	}
	return nil
}

func readInput(path, what string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errclass.ErrFileNotFound.WithMessagef("%s file %s", what, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
