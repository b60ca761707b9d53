package catalog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartguitar/sgc/internal/catalog"
	"github.com/smartguitar/sgc/pkg/errclass"
)

const minimalPack = `
metadata:
  id: test_pack_v1
  display_name: Test Pack
  dance_family: fusion
  version: "1.0.0"
  engine_compatibility: ">=0.1.0"
groove:
  meter: "3/4"
  cycle_bars: 2
  subdivision: compound
  tempo_range_bpm: [60, 100]
  accent_grid:
    strong_beats: [1]
harmony_constraints:
  harmonic_rhythm:
    max_changes_per_cycle: 2
performance_profile:
  velocity_range:
    min: 40
    max: 100
practice_mapping:
  primary_focus: [timing]
  evaluation_weights:
    timing_accuracy: 0.5
    harmonic_choice: 0.25
    dynamic_control: 0.25
  difficulty_rating: beginner
`

func defaultRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	r, err := catalog.Default()
	require.NoError(t, err)
	return r
}

func TestDefault_BundledContent(t *testing.T) {
	r := defaultRegistry(t)
	assert.Len(t, r.PackIDs(), 13)
	assert.Equal(t, []string{"dominant_tension_v1", "groove_foundations_v1", "syncopation_ghosts_v1"}, r.SetIDs())

	gf, err := r.Set("groove_foundations_v1")
	require.NoError(t, err)
	assert.Equal(t, "Groove Foundations", gf.DisplayName)
	assert.Equal(t, catalog.TierCore, gf.Tier)
	assert.Equal(t, []string{
		"rock_straight_v1", "disco_four_on_floor_v1", "house_grid_v1",
		"country_train_beat_v1", "hiphop_boom_bap_v1",
	}, gf.PackIDs())

	// Bare string references decode the same as mappings.
	sg, err := r.Set("syncopation_ghosts_v1")
	require.NoError(t, err)
	assert.Equal(t, "funk_16th_pocket_v1", sg.Packs[0].PackID)
	assert.Equal(t, catalog.TierPro, sg.Tier)
}

func TestDefault_PackFields(t *testing.T) {
	r := defaultRegistry(t)

	samba, err := r.Pack("samba_traditional_v1")
	require.NoError(t, err)
	assert.Equal(t, "afro_brazilian", samba.Metadata.DanceFamily)
	assert.Equal(t, "2/4", samba.Groove.Meter)

	salsa, err := r.Pack("salsa_clave_locked_v1")
	require.NoError(t, err)
	assert.Equal(t, "explicit", salsa.Groove.Clave.Type)
	assert.NotEmpty(t, salsa.Groove.Clave.Pattern)

	blues, err := r.Pack("jazz_blues_12bar_v1")
	require.NoError(t, err)
	assert.Equal(t, 12, blues.Groove.CycleBars)
	assert.Equal(t, "heavy", blues.HarmonyConstraints.TritoneUsage.Weight)

	rock, err := r.Pack("rock_straight_v1")
	require.NoError(t, err)
	assert.False(t, rock.HarmonyConstraints.TritoneUsage.Allowed)
	assert.Equal(t, "none", rock.Groove.Clave.Type)

	house, err := r.Pack("house_grid_v1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, house.PerformanceProfile.PickupBias.Probability)
}

func TestDefaults(t *testing.T) {
	r := defaultRegistry(t)
	get := func(id string) catalog.AssignmentDefaults {
		p, err := r.Pack(id)
		require.NoError(t, err)
		return catalog.Defaults(p)
	}

	samba := get("samba_traditional_v1")
	assert.Equal(t, 2, samba.BarsPerLoop)
	assert.Equal(t, 88.0, samba.TempoStartBPM)
	assert.Equal(t, 96.0, samba.TempoTargetBPM)
	assert.Equal(t, 104.0, samba.TempoCeilingBPM)
	assert.Equal(t, 0.0, samba.SwingRatio)
	assert.Equal(t, "binary", samba.Subdivision)
	assert.Equal(t, 35.0, samba.StrictWindowMS)

	blues := get("jazz_blues_12bar_v1")
	assert.Equal(t, 12, blues.BarsPerLoop)
	assert.Equal(t, 0.55, blues.SwingRatio)
	assert.Equal(t, 50.0, blues.StrictWindowMS)

	gospel := get("gospel_shout_v1")
	assert.Equal(t, 45.0, gospel.StrictWindowMS)

	house := get("house_grid_v1")
	assert.Equal(t, 8, house.BarsPerLoop)
	assert.Equal(t, "easy", house.Difficulty)

	rc := get("rhythm_changes_v1")
	assert.Equal(t, "advanced", rc.Difficulty)
	assert.Equal(t, 280.0, rc.TempoCeilingBPM)
	assert.Equal(t, "140-280 BPM", rc.TempoRange())
}

func TestRegistry_NotFound(t *testing.T) {
	r := defaultRegistry(t)
	_, err := r.Pack("nonexistent_pack_v99")
	assert.ErrorIs(t, err, errclass.ErrPackNotFound)
	_, err = r.Set("nonexistent_set_v99")
	assert.ErrorIs(t, err, errclass.ErrSetNotFound)
}

func TestSummarize(t *testing.T) {
	r := defaultRegistry(t)
	s, err := r.Set("groove_foundations_v1")
	require.NoError(t, err)

	sum, err := r.Summarize(s)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.PackCount)
	require.Len(t, sum.Packs, 5)
	assert.Equal(t, catalog.PackSummary{
		PackID:      "rock_straight_v1",
		DisplayName: "Straight Rock",
		Difficulty:  "easy",
		TempoRange:  "90-140 BPM",
		Subdivision: "binary",
	}, sum.Packs[0])
}

func TestDecodePack_AppliesDefaults(t *testing.T) {
	p, err := catalog.DecodePack([]byte(minimalPack))
	require.NoError(t, err)
	assert.Equal(t, "system", p.Metadata.Author)
	assert.Equal(t, "core", p.Metadata.License)
	assert.True(t, p.Groove.AccentGrid.GhostAllowed)
	assert.Equal(t, "none", p.Groove.Clave.Type)
	assert.Equal(t, 24, p.PerformanceProfile.VelocityRange.GhostMax)
	assert.Equal(t, 78, p.PerformanceProfile.VelocityRange.AccentMin)
	assert.Equal(t, "preferred", p.HarmonyConstraints.HarmonicRhythm.ChangeOnStrongBeat)
	assert.Equal(t, 45.0, catalog.Defaults(p).StrictWindowMS)
}

func TestDecodePack_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown top-level key": minimalPack + "bogus: 1\n",
		"weights off":           strings.Replace(minimalPack, "dynamic_control: 0.25", "dynamic_control: 0.5", 1),
		"bad subdivision":       strings.Replace(minimalPack, "subdivision: compound", "subdivision: quintuple", 1),
		"inverted tempo":        strings.Replace(minimalPack, "[60, 100]", "[100, 60]", 1),
		"bad difficulty":        strings.Replace(minimalPack, "beginner", "trivial", 1),
		"id with slash":         strings.Replace(minimalPack, "id: test_pack_v1", "id: a/b", 1),
		"wrong schema":          "schema_id: other\n" + minimalPack,
		"clave without pattern": strings.Replace(minimalPack, "strong_beats: [1]", "strong_beats: [1]\n  clave:\n    type: son", 1),
		"empty":                 "",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.DecodePack([]byte(doc))
			assert.ErrorIs(t, err, errclass.ErrPackInvalid)
		})
	}
}

func TestDecodeSet(t *testing.T) {
	s, err := catalog.DecodeSet([]byte(`
id: my_set_v1
display_name: Mine
version: "1"
packs:
  - pack_id: a_v1
  - b_v1
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a_v1", "b_v1"}, s.PackIDs())
	assert.Equal(t, catalog.TierCore, s.Tier)
	assert.Equal(t, ">=0.0.0", s.EngineCompatibility)
	assert.Nil(t, s.SKU)
}

func TestDecodeSet_Rejects(t *testing.T) {
	cases := map[string]string{
		"duplicate pack":  "id: s_v1\ndisplay_name: S\nversion: '1'\npacks: [a, a]\n",
		"no packs":        "id: s_v1\ndisplay_name: S\nversion: '1'\npacks: []\n",
		"short id":        "id: s\ndisplay_name: S\nversion: '1'\npacks: [a]\n",
		"bad tier":        "id: s_v1\ndisplay_name: S\nversion: '1'\ntier: gold\npacks: [a]\n",
		"short sku":       "id: s_v1\ndisplay_name: S\nversion: '1'\nsku: x\npacks: [a]\n",
		"unknown key":     "id: s_v1\ndisplay_name: S\nversion: '1'\nprice: 3\npacks: [a]\n",
		"extra ref key":   "id: s_v1\ndisplay_name: S\nversion: '1'\npacks:\n  - pack_id: a\n    weight: 2\n",
		"missing display": "id: s_v1\nversion: '1'\npacks: [a]\n",
		"path in id":      "id: x/../../victim\ndisplay_name: S\nversion: '1'\npacks: [a]\n",
		"space in id":     "id: my set\ndisplay_name: S\nversion: '1'\npacks: [a]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.DecodeSet([]byte(doc))
			assert.ErrorIs(t, err, errclass.ErrSetInvalid)
		})
	}
}

func TestNew_UnresolvedReference(t *testing.T) {
	fsys := fstest.MapFS{
		"packs/fusion/test_pack_v1.yaml": {Data: []byte(minimalPack)},
		"sets/s_v1.yaml":                 {Data: []byte("id: s_v1\ndisplay_name: S\nversion: '1'\npacks: [test_pack_v1, ghost_v1]\n")},
	}
	_, err := catalog.New(fsys)
	assert.ErrorIs(t, err, errclass.ErrPackNotFound)
}

func TestNew_CustomContent(t *testing.T) {
	fsys := fstest.MapFS{
		"packs/fusion/test_pack_v1.yaml": {Data: []byte(minimalPack)},
		"packs/README.md":                {Data: []byte("ignored")},
		"sets/s_v1.yaml":                 {Data: []byte("id: s_v1\ndisplay_name: S\nversion: '1'\npacks: [test_pack_v1]\n")},
	}
	r, err := catalog.New(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"test_pack_v1"}, r.PackIDs())
	bindings, err := r.Bindings(r.Sets()[0])
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, 80.0, bindings[0].Defaults.TempoTargetBPM)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := catalog.LoadPackFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, errclass.ErrFileNotFound)
	_, err = catalog.LoadSetFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, errclass.ErrFileNotFound)

	path := filepath.Join(dir, "pack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalPack), 0644))
	p, err := catalog.LoadPackFile(path)
	require.NoError(t, err)
	assert.Equal(t, "test_pack_v1", p.Metadata.ID)
}
