package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/pathutil"
)

// Tiers.
const (
	TierCore = "core"
	TierPlus = "plus"
	TierPro  = "pro"
)

// Set is a curated, versioned collection of dance packs. Sets only
// reference packs by id; the monetization fields do not change behavior.
type Set struct {
	ID                  string       `yaml:"id" json:"id"`
	DisplayName         string       `yaml:"display_name" json:"display_name"`
	Version             string       `yaml:"version" json:"version"`
	License             string       `yaml:"license" json:"license"`
	EngineCompatibility string       `yaml:"engine_compatibility" json:"engine_compatibility"`
	Description         *Description `yaml:"description" json:"description"`
	SKU                 *string      `yaml:"sku" json:"sku"`
	Tier                string       `yaml:"tier" json:"tier"`
	Unlock              Unlock       `yaml:"unlock" json:"unlock"`
	Tags                []string     `yaml:"tags" json:"tags"`
	Packs               []PackRef    `yaml:"packs" json:"packs"`
}

type Description struct {
	Short string `yaml:"short" json:"short"`
	Long  string `yaml:"long" json:"long"`
}

type Unlock struct {
	Flags    []string `yaml:"flags" json:"flags"`
	Requires []string `yaml:"requires" json:"requires"`
}

// PackRef names a pack in a set. In YAML it is either a mapping with a
// single pack_id key or a bare string.
type PackRef struct {
	PackID string `yaml:"pack_id" json:"pack_id"`
}

func (r *PackRef) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Decode(&r.PackID)
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if key != "pack_id" {
				return fmt.Errorf("line %d: field %s not found in pack reference", n.Content[i].Line, key)
			}
			if err := n.Content[i+1].Decode(&r.PackID); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: pack reference must be a string or a mapping", n.Line)
	}
}

// PackIDs returns the referenced pack ids in set order.
func (s *Set) PackIDs() []string {
	ids := make([]string, len(s.Packs))
	for i, p := range s.Packs {
		ids[i] = p.PackID
	}
	return ids
}

func newSet() *Set {
	return &Set{
		License:             "core",
		EngineCompatibility: ">=0.0.0",
		Tier:                TierCore,
		Unlock:              Unlock{Flags: []string{}, Requires: []string{}},
		Tags:                []string{},
	}
}

// Validate checks field bounds and that pack ids are present and unique.
// It does not resolve the ids; see Registry.ValidateReferences.
func (s *Set) Validate() error {
	if err := lengthIn("id", s.ID, 3, 128); err != nil {
		return err
	}
	if err := pathutil.ValidateName(s.ID); err != nil {
		return errclass.ErrSetInvalid.WithMessagef("id: %v", err)
	}
	if err := lengthIn("display_name", s.DisplayName, 1, 200); err != nil {
		return err
	}
	if err := lengthIn("version", s.Version, 1, 50); err != nil {
		return err
	}
	if err := lengthIn("license", s.License, 1, 64); err != nil {
		return err
	}
	if err := lengthIn("engine_compatibility", s.EngineCompatibility, 1, 64); err != nil {
		return err
	}
	if s.SKU != nil {
		if err := lengthIn("sku", *s.SKU, 3, 128); err != nil {
			return err
		}
	}
	switch s.Tier {
	case TierCore, TierPlus, TierPro:
	default:
		return errclass.ErrSetInvalid.WithMessagef("%s: tier %q is not one of core, plus, pro", s.ID, s.Tier)
	}
	if len(s.Packs) == 0 {
		return errclass.ErrSetInvalid.WithMessagef("%s: packs must list at least one pack", s.ID)
	}
	seen := make(map[string]bool, len(s.Packs))
	for _, p := range s.Packs {
		if err := lengthIn("packs[].pack_id", p.PackID, 1, 128); err != nil {
			return err
		}
		if seen[p.PackID] {
			return errclass.ErrSetInvalid.WithMessagef("%s: duplicate pack_id %s", s.ID, p.PackID)
		}
		seen[p.PackID] = true
	}
	return nil
}

func lengthIn(field, v string, lo, hi int) error {
	if n := len([]rune(v)); n < lo || n > hi {
		return errclass.ErrSetInvalid.WithMessagef("%s must be %d..%d characters, got %d", field, lo, hi, n)
	}
	return nil
}

// DecodeSet parses and validates a pack set document.
func DecodeSet(data []byte) (*Set, error) {
	s := newSet()
	if err := decodeStrict(data, s); err != nil {
		return nil, errclass.ErrSetInvalid.WithMessagef("decode: %v", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadSetFile reads a pack set from the filesystem.
func LoadSetFile(path string) (*Set, error) {
	data, err := readInput(path, "pack set")
	if err != nil {
		return nil, err
	}
	s, err := DecodeSet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
