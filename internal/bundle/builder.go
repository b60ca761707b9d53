package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/smartguitar/sgc/internal/artifact"
	"github.com/smartguitar/sgc/internal/assignment"
	"github.com/smartguitar/sgc/internal/catalog"
	"github.com/smartguitar/sgc/internal/manifest"
	"github.com/smartguitar/sgc/internal/packager"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/logging"
	"github.com/smartguitar/sgc/pkg/pathutil"
	"github.com/smartguitar/sgc/pkg/progress"
)

// Artifact paths inside every bundle.
const (
	AssignmentFile = "assignment.json"
	PackFile       = "pack.json"
	AttachmentsDir = "attachments"
)

// Result is what a build produced.
type Result struct {
	Mode         manifest.Mode
	ManifestPath string
	Manifest     *manifest.OTA
}

// Outputs returns the manifest outputs.
func (r *Result) Outputs() []manifest.Output {
	return r.Manifest.Outputs
}

// input is a resolved selector. Exactly one of session, pack and set is
// non-nil.
type input struct {
	session  *assignment.Session
	pack     *catalog.Pack
	set      *catalog.Set
	bindings []catalog.Binding
}

// Builder runs one build.
type Builder struct {
	opts Options
	log  *logging.Logger
}

// NewBuilder validates opts and returns a builder.
func NewBuilder(opts Options) (*Builder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.withDefaults()
	return &Builder{opts: opts, log: logging.Component("bundle")}, nil
}

// Build validates opts and runs the build.
func Build(ctx context.Context, opts Options) (*Result, error) {
	b, err := NewBuilder(opts)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx)
}

// Build resolves the selector, writes every bundle and finally the OTA
// manifest. All inputs are loaded and checked before anything is written.
// A failure part way leaves what was already written on disk.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	started := b.opts.Now()

	// Step 1: Resolve inputs
	in, err := b.resolve()
	if err != nil {
		return nil, err
	}
	if err := b.checkAttachments(); err != nil {
		return nil, err
	}

	// Step 2: Prepare the output directory
	if err := os.MkdirAll(b.opts.Out, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	manifestPath := b.opts.ManifestPath
	if manifestPath == "" {
		manifestPath = filepath.Join(b.opts.Out, manifest.OTAFile)
	}

	// Step 3: Build bundles
	var m *manifest.OTA
	switch {
	case in.session != nil:
		m, err = b.buildSession(ctx, in.session)
	case in.pack != nil:
		m, err = b.buildPack(ctx, in.pack)
	case b.opts.MultiPack:
		m, err = b.buildMultiPack(ctx, in.set, in.bindings)
	default:
		m, err = b.buildPerPack(ctx, in.set, in.bindings)
	}
	if err != nil {
		return nil, err
	}

	// Step 4: Write the OTA manifest
	finished := b.opts.Now()
	m.Stamp(started, finished)
	if err := os.MkdirAll(filepath.Dir(manifestPath), 0755); err != nil {
		return nil, fmt.Errorf("create manifest directory: %w", err)
	}
	if err := manifest.WriteOTA(manifestPath, m); err != nil {
		return nil, fmt.Errorf("write OTA manifest: %w", err)
	}

	bundles := len(m.Outputs)
	if m.Mode == manifest.ModeMultiPack {
		bundles = len(m.Outputs[0].Packs)
	}
	if b.opts.Metrics != nil {
		b.opts.Metrics.RecordBuild(string(m.Mode), bundles, finished.Sub(started))
	}
	b.log.Info("build finished", map[string]any{
		"mode":     string(m.Mode),
		"bundles":  bundles,
		"manifest": manifestPath,
		"elapsed":  m.ElapsedS,
	})
	return &Result{Mode: m.Mode, ManifestPath: manifestPath, Manifest: m}, nil
}

func (b *Builder) registry() (*catalog.Registry, error) {
	if b.opts.Registry != nil {
		return b.opts.Registry, nil
	}
	return catalog.Default()
}

func (b *Builder) resolve() (*input, error) {
	o := b.opts
	switch {
	case o.SessionPath != "":
		s, err := assignment.LoadSession(o.SessionPath)
		if err != nil {
			return nil, err
		}
		return &input{session: s}, nil

	case o.PackPath != "":
		p, err := catalog.LoadPackFile(o.PackPath)
		if err != nil {
			return nil, err
		}
		return &input{pack: p}, nil

	case o.PackID != "":
		reg, err := b.registry()
		if err != nil {
			return nil, err
		}
		p, err := reg.Pack(o.PackID)
		if err != nil {
			return nil, err
		}
		return &input{pack: p}, nil
	}

	reg, err := b.registry()
	if err != nil {
		return nil, err
	}
	var s *catalog.Set
	if o.SetPath != "" {
		s, err = catalog.LoadSetFile(o.SetPath)
	} else {
		s, err = reg.Set(o.SetID)
	}
	if err != nil {
		return nil, err
	}
	bindings, err := reg.Bindings(s)
	if err != nil {
		return nil, err
	}
	return &input{set: s, bindings: bindings}, nil
}

func (b *Builder) checkAttachments() error {
	seen := make(map[string]bool, len(b.opts.Attach))
	for _, p := range b.opts.Attach {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return errclass.ErrFileNotFound.WithMessagef("attachment %s", p)
			}
			return fmt.Errorf("stat attachment: %w", err)
		}
		if !info.Mode().IsRegular() {
			return errclass.ErrFileNotFound.WithMessagef("attachment %s is not a regular file", p)
		}
		base := filepath.Base(p)
		if seen[base] {
			return errclass.ErrNameCollision.WithMessagef("two attachments named %s", base)
		}
		seen[base] = true
	}
	return nil
}

func (b *Builder) buildSession(ctx context.Context, s *assignment.Session) (*manifest.OTA, error) {
	a := s.Assignment
	name := b.name(NamePrefix + a.SessionID)
	out, err := b.buildTopLevel(ctx, name, a, nil)
	if err != nil {
		return nil, err
	}
	info := manifest.SessionInfo{SessionID: a.SessionID, AssignmentID: a.AssignmentID}
	return manifest.NewSingleSession(info, out), nil
}

func (b *Builder) buildPack(ctx context.Context, p *catalog.Pack) (*manifest.OTA, error) {
	name := b.name(NamePrefix + p.Metadata.ID)
	out, err := b.buildTopLevel(ctx, name, assignment.FromPack(p), p)
	if err != nil {
		return nil, err
	}
	out.DancePackID = p.Metadata.ID
	out.DisplayName = p.Metadata.DisplayName
	return manifest.NewSinglePack(packInfo(p), out), nil
}

func (b *Builder) buildPerPack(ctx context.Context, s *catalog.Set, bindings []catalog.Binding) (*manifest.OTA, error) {
	// Claim every name first so that a collision aborts before any bundle
	// is written.
	for _, bind := range bindings {
		if err := b.claim(NamePrefix + bind.PackID); err != nil {
			return nil, err
		}
	}

	prog := progress.New(string(manifest.ModePerPack), len(bindings), b.opts.Progress)
	outs := make([]manifest.Output, 0, len(bindings))
	for _, bind := range bindings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := b.buildTopLevel(ctx, NamePrefix+bind.PackID, assignment.FromPack(bind.Pack), bind.Pack)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", bind.PackID, err)
		}
		out.DancePackID = bind.PackID
		out.DisplayName = bind.Pack.Metadata.DisplayName
		outs = append(outs, out)
		prog.Increment(bind.PackID)
	}
	prog.Done(s.ID)
	return manifest.NewPerPack(setInfo(s, bindings), outs), nil
}

func (b *Builder) buildMultiPack(ctx context.Context, s *catalog.Set, bindings []catalog.Binding) (*manifest.OTA, error) {
	name := b.name(NamePrefix + s.ID)
	dir := filepath.Join(b.opts.Out, name)
	if err := b.claim(name); err != nil {
		return nil, err
	}
	root, err := packager.NewMultiRoot(dir)
	if err != nil {
		return nil, err
	}

	prog := progress.New(string(manifest.ModeMultiPack), len(bindings), b.opts.Progress)
	for _, bind := range bindings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sub, err := root.AddSub(bind.PackID, bind.Pack.Metadata.DisplayName)
		if err != nil {
			return nil, err
		}
		if err := b.writeBundle(sub, bind.PackID, assignment.FromPack(bind.Pack), bind.Pack); err != nil {
			return nil, fmt.Errorf("pack %s: %w", bind.PackID, err)
		}
		prog.Increment(bind.PackID)
	}
	w, err := root.Finish(s.ID, s.DisplayName, s.Tier, b.opts.Signer)
	if err != nil {
		return nil, err
	}

	out := manifest.Output{BundleDir: dir, Packs: w.Packs}
	if b.opts.Zip {
		zp, err := b.zip(ctx, dir, name)
		if err != nil {
			return nil, err
		}
		out.ZipPath = &zp
	}
	prog.Done(s.ID)
	return manifest.NewMultiPack(setInfo(s, bindings), out), nil
}

// buildTopLevel writes one bundle directly below Out and zips it when
// asked to.
func (b *Builder) buildTopLevel(ctx context.Context, name string, a *assignment.Assignment, p *catalog.Pack) (manifest.Output, error) {
	dir := filepath.Join(b.opts.Out, name)
	if err := b.claim(name); err != nil {
		return manifest.Output{}, err
	}
	if err := b.writeBundle(dir, name, a, p); err != nil {
		return manifest.Output{}, err
	}
	out := manifest.Output{BundleDir: dir}
	if b.opts.Zip {
		zp, err := b.zip(ctx, dir, name)
		if err != nil {
			return manifest.Output{}, err
		}
		out.ZipPath = &zp
	}
	return out, nil
}

// claim frees <Out>/<name> and, for zip builds, <Out>/<name>.zip.
func (b *Builder) claim(name string) error {
	if err := pathutil.ValidateName(name); err != nil {
		return err
	}
	if err := packager.ClaimOutput(filepath.Join(b.opts.Out, name), b.opts.Force); err != nil {
		return err
	}
	if b.opts.Zip {
		return packager.ClaimOutput(filepath.Join(b.opts.Out, name+".zip"), b.opts.Force)
	}
	return nil
}

// writeBundle writes the artifacts of one bundle into dir and then its
// manifest.json.
func (b *Builder) writeBundle(dir, name string, a *assignment.Assignment, p *catalog.Pack) error {
	var opts []artifact.Option
	if b.opts.Metrics != nil {
		opts = append(opts, artifact.WithRecorder(func(art artifact.Artifact) {
			b.opts.Metrics.RecordArtifact(art.Size)
		}))
	}
	w := artifact.NewWriter(dir, opts...)

	payload, err := assignment.SignedPayload(a, b.opts.Signer)
	if err != nil {
		return err
	}
	if _, err := w.WriteRequired(AssignmentFile, payload, artifact.KindAssignment); err != nil {
		return err
	}
	if p != nil {
		if _, err := w.WriteJSON(PackFile, p, artifact.KindPack); err != nil {
			return err
		}
	}
	for _, src := range b.opts.Attach {
		rel := AttachmentsDir + "/" + filepath.Base(src)
		if _, err := w.CopyFile(rel, src, artifact.KindAttachment); err != nil {
			return err
		}
	}

	m := manifest.NewBundle(name, b.opts.Product, b.target())
	m.CreatedAtUnix = b.opts.Now().Unix()
	m.AssignmentID = a.AssignmentID
	m.SessionID = a.SessionID
	m.Artifacts = w.Artifacts()
	if err := manifest.WriteBundle(dir, m, b.opts.Signer); err != nil {
		return fmt.Errorf("write bundle manifest: %w", err)
	}
	b.log.Debug("bundle written", map[string]any{
		"dir":       dir,
		"artifacts": len(m.Artifacts),
		"signed":    m.Signature != nil,
	})
	return nil
}

func (b *Builder) zip(ctx context.Context, dir, name string) (string, error) {
	zp := filepath.Join(b.opts.Out, name+".zip")
	if _, err := packager.ZipDir(ctx, dir, zp, b.opts.Compression); err != nil {
		return "", fmt.Errorf("zip %s: %w", name, err)
	}
	return zp, nil
}

func (b *Builder) name(generated string) string {
	if b.opts.Name != "" {
		return b.opts.Name
	}
	return generated
}

func (b *Builder) target() manifest.Target {
	return manifest.Target{
		DeviceModel: manifest.StringPtr(b.opts.DeviceModel),
		MinFirmware: manifest.StringPtr(b.opts.MinFirmware),
	}
}

func packInfo(p *catalog.Pack) manifest.PackInfo {
	return manifest.PackInfo{
		PackID:      p.Metadata.ID,
		DisplayName: p.Metadata.DisplayName,
		DanceFamily: p.Metadata.DanceFamily,
		Version:     p.Metadata.Version,
	}
}

func setInfo(s *catalog.Set, bindings []catalog.Binding) manifest.SetInfo {
	ids := make([]string, len(bindings))
	for i, bind := range bindings {
		ids[i] = bind.PackID
	}
	return manifest.SetInfo{
		ID:      s.ID,
		PackIDs: ids,
		Summary: manifest.SetSummary{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			Tier:        s.Tier,
			PackCount:   len(ids),
		},
	}
}
