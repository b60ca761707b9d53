// Package bundle builds OTA bundles from a session file, a single dance
// pack or a dance pack set, and writes the top-level OTA manifest that
// describes what was emitted.
package bundle

import (
	"strings"
	"time"

	"github.com/smartguitar/sgc/internal/catalog"
	"github.com/smartguitar/sgc/internal/packager"
	"github.com/smartguitar/sgc/internal/signer"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/metrics"
	"github.com/smartguitar/sgc/pkg/pathutil"
	"github.com/smartguitar/sgc/pkg/progress"
)

// DefaultProduct is the product written into bundle manifests when the
// caller does not name one.
const DefaultProduct = "smart-guitar"

// NamePrefix prefixes every generated bundle name.
const NamePrefix = "ota_bundle__"

// Selector names the build input. Exactly one field must be set.
type Selector struct {
	SessionPath string
	PackID      string
	PackPath    string
	SetID       string
	SetPath     string
}

func (s Selector) set() []string {
	var flags []string
	if s.SessionPath != "" {
		flags = append(flags, "--session")
	}
	if s.PackID != "" {
		flags = append(flags, "--dance-pack")
	}
	if s.PackPath != "" {
		flags = append(flags, "--dance-pack-path")
	}
	if s.SetID != "" {
		flags = append(flags, "--dance-pack-set")
	}
	if s.SetPath != "" {
		flags = append(flags, "--dance-pack-set-path")
	}
	return flags
}

func (s Selector) isSet() bool {
	return s.SetID != "" || s.SetPath != ""
}

// Options configures a build.
type Options struct {
	Selector

	// Out is the directory bundles are created in. Required.
	Out string
	// ManifestPath overrides <Out>/ota_manifest.json.
	ManifestPath string
	// Name overrides the top-level bundle name. Not allowed in per-pack mode.
	Name string
	// MultiPack combines every pack of a set into one bundle.
	MultiPack bool
	// Zip additionally writes <name>.zip next to each top-level bundle.
	Zip bool

	Product     string
	DeviceModel string
	MinFirmware string
	// Attach lists files copied into attachments/ of every bundle.
	Attach []string

	// Compression applies to zips. The zero value stores entries.
	Compression packager.Level
	// Force replaces existing bundle directories and zips.
	Force bool

	// Signer signs every bundle manifest. Nil builds unsigned bundles.
	Signer *signer.Signer
	// Registry resolves pack and set ids. Nil means catalog.Default().
	Registry *catalog.Registry
	Metrics  *metrics.Registry
	Progress progress.Callback
	// Now is the clock; tests pin it.
	Now func() time.Time
}

// Validate checks the options without touching the filesystem.
func (o *Options) Validate() error {
	switch flags := o.Selector.set(); len(flags) {
	case 0:
		return errclass.ErrSelectorConflict.WithMessage("choose one of --session, --dance-pack, --dance-pack-path, --dance-pack-set, --dance-pack-set-path")
	case 1:
	default:
		return errclass.ErrSelectorConflict.WithMessagef("choose only one of %s", strings.Join(flags, ", "))
	}
	if o.Out == "" {
		return errclass.ErrSelectorConflict.WithMessage("--out is required")
	}
	if o.MultiPack && !o.isSet() {
		return errclass.ErrSelectorConflict.WithMessage("--multi-pack requires --dance-pack-set or --dance-pack-set-path")
	}
	if o.Name != "" {
		if o.isSet() && !o.MultiPack {
			return errclass.ErrNameCollision.WithMessage("--name cannot be used in per-pack mode: every bundle would share one name")
		}
		if err := pathutil.ValidateName(o.Name); err != nil {
			return err
		}
	}
	return nil
}

func (o *Options) withDefaults() {
	if o.Product == "" {
		o.Product = DefaultProduct
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Progress == nil {
		o.Progress = progress.Noop
	}
}
