package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"

	"github.com/smartguitar/sgc/pkg/errclass"
)

//go:embed data/packs data/sets
var dataFS embed.FS

// Registry indexes packs and sets by id.
type Registry struct {
	packs   map[string]*Pack
	packIDs []string
	sets    map[string]*Set
	setIDs  []string
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	sub, err := fs.Sub(dataFS, "data")
	if err != nil {
		return nil, err
	}
	return New(sub)
})

// Default returns the registry of bundled content. It is built on first
// use; a failure means the embedded content is broken.
func Default() (*Registry, error) {
	return defaultRegistry()
}

// New builds a registry from fsys, reading every packs/**/*.yaml and
// sets/*.yaml. Set references are resolved against the packs found.
func New(fsys fs.FS) (*Registry, error) {
	r := &Registry{packs: map[string]*Pack{}, sets: map[string]*Set{}}

	err := fs.WalkDir(fsys, "packs", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".yaml" {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read pack %s: %w", p, err)
		}
		pack, err := DecodePack(data)
		if err != nil {
			return fmt.Errorf("pack %s: %w", p, err)
		}
		if _, dup := r.packs[pack.Metadata.ID]; dup {
			return errclass.ErrPackInvalid.WithMessagef("pack id %s defined twice (%s)", pack.Metadata.ID, p)
		}
		r.packs[pack.Metadata.ID] = pack
		r.packIDs = append(r.packIDs, pack.Metadata.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(fsys, "sets")
	if err != nil {
		return nil, fmt.Errorf("read sets: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		p := path.Join("sets", e.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read set %s: %w", p, err)
		}
		set, err := DecodeSet(data)
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
		if _, dup := r.sets[set.ID]; dup {
			return nil, errclass.ErrSetInvalid.WithMessagef("set id %s defined twice (%s)", set.ID, p)
		}
		if err := r.ValidateReferences(set); err != nil {
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
		r.sets[set.ID] = set
		r.setIDs = append(r.setIDs, set.ID)
	}

	sort.Strings(r.packIDs)
	sort.Strings(r.setIDs)
	return r, nil
}

// PackIDs returns all pack ids, sorted.
func (r *Registry) PackIDs() []string {
	return append([]string(nil), r.packIDs...)
}

// SetIDs returns all set ids, sorted.
func (r *Registry) SetIDs() []string {
	return append([]string(nil), r.setIDs...)
}

// Pack looks up a pack by id.
func (r *Registry) Pack(id string) (*Pack, error) {
	p, ok := r.packs[id]
	if !ok {
		return nil, errclass.ErrPackNotFound.WithMessagef("unknown dance pack %q", id)
	}
	return p, nil
}

// Set looks up a set by id.
func (r *Registry) Set(id string) (*Set, error) {
	s, ok := r.sets[id]
	if !ok {
		return nil, errclass.ErrSetNotFound.WithMessagef("unknown pack set %q", id)
	}
	return s, nil
}

// Sets returns all sets ordered by id.
func (r *Registry) Sets() []*Set {
	out := make([]*Set, 0, len(r.setIDs))
	for _, id := range r.setIDs {
		out = append(out, r.sets[id])
	}
	return out
}

// ValidateReferences checks that every pack the set names exists.
func (r *Registry) ValidateReferences(s *Set) error {
	for _, ref := range s.Packs {
		if _, ok := r.packs[ref.PackID]; !ok {
			return errclass.ErrPackNotFound.WithMessagef("set %s references unknown dance pack %q", s.ID, ref.PackID)
		}
	}
	return nil
}

// Binding pairs a pack of a set with its derived assignment defaults.
type Binding struct {
	PackID   string
	Pack     *Pack
	Defaults AssignmentDefaults
}

// Bindings resolves every pack of s, in set order.
func (r *Registry) Bindings(s *Set) ([]Binding, error) {
	out := make([]Binding, 0, len(s.Packs))
	for _, ref := range s.Packs {
		p, err := r.Pack(ref.PackID)
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", s.ID, err)
		}
		out = append(out, Binding{PackID: ref.PackID, Pack: p, Defaults: Defaults(p)})
	}
	return out, nil
}

// PackSummary is one display row of a set summary.
type PackSummary struct {
	PackID      string `json:"pack_id"`
	DisplayName string `json:"display_name"`
	Difficulty  string `json:"difficulty"`
	TempoRange  string `json:"tempo_range"`
	Subdivision string `json:"subdivision"`
}

// SetSummary is the displayable view of a set.
type SetSummary struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"display_name"`
	Tier        string        `json:"tier"`
	Tags        []string      `json:"tags"`
	PackCount   int           `json:"pack_count"`
	Packs       []PackSummary `json:"packs"`
}

// Summarize resolves s and returns its summary.
func (r *Registry) Summarize(s *Set) (*SetSummary, error) {
	bindings, err := r.Bindings(s)
	if err != nil {
		return nil, err
	}
	sum := &SetSummary{
		ID:          s.ID,
		DisplayName: s.DisplayName,
		Tier:        s.Tier,
		Tags:        append([]string{}, s.Tags...),
		PackCount:   len(s.Packs),
		Packs:       make([]PackSummary, 0, len(bindings)),
	}
	for _, b := range bindings {
		sum.Packs = append(sum.Packs, PackSummary{
			PackID:      b.PackID,
			DisplayName: b.Pack.Metadata.DisplayName,
			Difficulty:  b.Defaults.Difficulty,
			TempoRange:  b.Defaults.TempoRange(),
			Subdivision: b.Defaults.Subdivision,
		})
	}
	return sum, nil
}
