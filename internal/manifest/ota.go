package manifest

import (
	"encoding/json"
	"math"
	"time"

	"github.com/smartguitar/sgc/pkg/errclass"
)

// Mode discriminates the shape of an OTA manifest.
type Mode string

const (
	ModeSingleSession Mode = "single-session"
	ModeSinglePack    Mode = "single-pack"
	ModePerPack       Mode = "per-pack"
	ModeMultiPack     Mode = "multi-pack"
)

// SetSummary is the display summary of a pack set.
type SetSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Tier        string `json:"tier"`
	PackCount   int    `json:"pack_count"`
}

// SetInfo identifies the pack set a build was expanded from.
type SetInfo struct {
	ID      string     `json:"id"`
	PackIDs []string   `json:"pack_ids"`
	Summary SetSummary `json:"summary"`
}

// PackInfo identifies the single pack of a single-pack build.
type PackInfo struct {
	PackID      string `json:"pack_id"`
	DisplayName string `json:"display_name"`
	DanceFamily string `json:"dance_family,omitempty"`
	Version     string `json:"version,omitempty"`
}

// SessionInfo identifies the assignment of a single-session build.
type SessionInfo struct {
	SessionID    string `json:"session_id"`
	AssignmentID string `json:"assignment_id"`
}

// SubPack ties a sub-bundle of a multi-pack bundle to its pack.
type SubPack struct {
	DancePackID  string `json:"dance_pack_id"`
	DisplayName  string `json:"display_name"`
	SubBundleDir string `json:"sub_bundle_dir"`
	ManifestPath string `json:"manifest_path"`
}

// Output describes one produced bundle.
type Output struct {
	BundleDir   string    `json:"bundle_dir"`
	ZipPath     *string   `json:"zip_path"`
	DancePackID string    `json:"dance_pack_id,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Packs       []SubPack `json:"packs,omitempty"`
}

// OTA is the top-level ota_manifest.json. Build one with the New*
// constructors; exactly the members belonging to Mode are populated.
type OTA struct {
	SchemaID        string       `json:"schema_id"`
	SchemaVersion   string       `json:"schema_version"`
	Mode            Mode         `json:"mode"`
	GeneratedAtUnix int64        `json:"generated_at_unix"`
	ElapsedS        float64      `json:"elapsed_s"`
	Set             *SetInfo     `json:"set"`
	Pack            *PackInfo    `json:"pack"`
	Session         *SessionInfo `json:"session,omitempty"`
	Outputs         []Output     `json:"outputs"`
}

func newOTA(mode Mode, outputs []Output) *OTA {
	return &OTA{
		SchemaID:      OTASchemaID,
		SchemaVersion: SchemaVersion,
		Mode:          mode,
		Outputs:       outputs,
	}
}

// NewSingleSession describes a bundle built from a session file.
func NewSingleSession(session SessionInfo, out Output) *OTA {
	m := newOTA(ModeSingleSession, []Output{out})
	m.Session = &session
	return m
}

// NewSinglePack describes a bundle built from one pack.
func NewSinglePack(pack PackInfo, out Output) *OTA {
	m := newOTA(ModeSinglePack, []Output{out})
	m.Pack = &pack
	return m
}

// NewPerPack describes one bundle per pack of set, in set order.
func NewPerPack(set SetInfo, outs []Output) *OTA {
	m := newOTA(ModePerPack, outs)
	m.Set = &set
	return m
}

// NewMultiPack describes one combined bundle holding every pack of set.
func NewMultiPack(set SetInfo, out Output) *OTA {
	m := newOTA(ModeMultiPack, []Output{out})
	m.Set = &set
	return m
}

// Stamp records the build start and elapsed wall time, in seconds rounded
// to milliseconds.
func (m *OTA) Stamp(started, finished time.Time) {
	m.GeneratedAtUnix = started.Unix()
	m.ElapsedS = math.Round(finished.Sub(started).Seconds()*1000) / 1000
}

// Validate enforces the mode-specific shape.
func (m *OTA) Validate() error {
	if m.SchemaID != OTASchemaID || m.SchemaVersion != SchemaVersion {
		return errclass.ErrManifestInvalid.WithMessagef("contract %s/%s, want %s/%s", m.SchemaID, m.SchemaVersion, OTASchemaID, SchemaVersion)
	}
	seen := make(map[string]bool, len(m.Outputs))
	for _, o := range m.Outputs {
		if o.BundleDir == "" {
			return errclass.ErrManifestInvalid.WithMessage("output without bundle_dir")
		}
		if seen[o.BundleDir] {
			return errclass.ErrNameCollision.WithMessagef("two outputs share %s", o.BundleDir)
		}
		seen[o.BundleDir] = true
	}

	switch m.Mode {
	case ModeSingleSession:
		if m.Session == nil || m.Set != nil || m.Pack != nil {
			return invalidShape(m.Mode, "session only")
		}
		return m.requireOutputs(1)
	case ModeSinglePack:
		if m.Pack == nil || m.Pack.PackID == "" || m.Set != nil || m.Session != nil {
			return invalidShape(m.Mode, "pack only")
		}
		return m.requireOutputs(1)
	case ModePerPack:
		if err := m.requireSet(); err != nil {
			return err
		}
		if err := m.requireOutputs(len(m.Set.PackIDs)); err != nil {
			return err
		}
		for i, o := range m.Outputs {
			if o.DancePackID != m.Set.PackIDs[i] {
				return errclass.ErrManifestInvalid.WithMessagef("output %d carries pack %q, want %q", i, o.DancePackID, m.Set.PackIDs[i])
			}
			if len(o.Packs) != 0 {
				return invalidShape(m.Mode, "no nested packs")
			}
		}
		return nil
	case ModeMultiPack:
		if err := m.requireSet(); err != nil {
			return err
		}
		if err := m.requireOutputs(1); err != nil {
			return err
		}
		packs := m.Outputs[0].Packs
		if len(packs) != len(m.Set.PackIDs) {
			return errclass.ErrManifestInvalid.WithMessagef("multi-pack output lists %d packs, set has %d", len(packs), len(m.Set.PackIDs))
		}
		for i, p := range packs {
			if p.DancePackID != m.Set.PackIDs[i] {
				return errclass.ErrManifestInvalid.WithMessagef("sub-pack %d is %q, want %q", i, p.DancePackID, m.Set.PackIDs[i])
			}
		}
		return nil
	default:
		return errclass.ErrManifestInvalid.WithMessagef("unknown mode %q", m.Mode)
	}
}

func (m *OTA) requireOutputs(n int) error {
	if len(m.Outputs) != n {
		return errclass.ErrManifestInvalid.WithMessagef("%s manifest needs %d outputs, has %d", m.Mode, n, len(m.Outputs))
	}
	return nil
}

func (m *OTA) requireSet() error {
	if m.Set == nil || m.Pack != nil || m.Session != nil {
		return invalidShape(m.Mode, "set only")
	}
	if m.Set.ID == "" || len(m.Set.PackIDs) == 0 {
		return errclass.ErrManifestInvalid.WithMessagef("%s manifest needs a set id and pack ids", m.Mode)
	}
	return nil
}

func invalidShape(mode Mode, want string) error {
	return errclass.ErrManifestInvalid.WithMessagef("%s manifest must populate %s", mode, want)
}

// WriteOTA validates m and writes it to path as canonical JSON.
func WriteOTA(path string, m *OTA) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return writeDoc(path, m)
}

// ReadOTA parses and validates an ota_manifest.json.
func ReadOTA(path string) (*OTA, error) {
	raw, err := readDoc(path)
	if err != nil {
		return nil, err
	}
	var m OTA
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errclass.ErrManifestInvalid.WithMessagef("parse %s: %v", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
