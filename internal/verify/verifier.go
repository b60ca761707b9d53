package verify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/smartguitar/sgc/internal/integrity"
	"github.com/smartguitar/sgc/internal/manifest"
	"github.com/smartguitar/sgc/internal/packager"
	"github.com/smartguitar/sgc/internal/signer"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/logging"
	"github.com/smartguitar/sgc/pkg/metrics"
	"github.com/smartguitar/sgc/pkg/pathutil"
)

// Options configures a Verifier.
type Options struct {
	// Signer checks manifest signatures. Nil skips the signature check.
	Signer *signer.Signer
	// AllowUnsigned accepts manifests without a signature when Signer is set.
	AllowUnsigned bool
	// Limits bounds zip extraction. The zero value means DefaultLimits.
	Limits packager.Limits
	// Metrics receives one observation per verification. Optional.
	Metrics *metrics.Registry
}

// Verifier verifies bundle folders and zips.
type Verifier struct {
	opts Options
	log  *logging.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(opts Options) *Verifier {
	if opts.Limits == (packager.Limits{}) {
		opts.Limits = packager.DefaultLimits
	}
	return &Verifier{opts: opts, log: logging.Component("verify")}
}

// VerifyPath verifies a folder or a zip, chosen by what p is. A missing
// path is reported as a folder that failed with FILE_MISSING.
func (v *Verifier) VerifyPath(ctx context.Context, p string) (*Result, error) {
	info, err := os.Stat(p)
	if err == nil && !info.IsDir() {
		return v.VerifyZip(ctx, p)
	}
	return v.VerifyFolder(ctx, p)
}

// VerifyFolder verifies the bundle in dir.
func (v *Verifier) VerifyFolder(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()
	res := &Result{Form: FormFolder}
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return v.reject(res, Failure{Reason: errclass.ErrFileMissing.Code, Path: dir, Message: "bundle directory does not exist"}, start), nil
	case err != nil:
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	case !info.IsDir():
		return v.reject(res, Failure{Reason: errclass.ErrFileMissing.Code, Path: dir, Message: "not a directory"}, start), nil
	}

	if err := v.verifyTree(ctx, dir, res); err != nil {
		return nil, err
	}
	v.record(res, start)
	return res, nil
}

// VerifyZip extracts zipPath into a temporary directory, verifies it and
// removes the directory again. A file that cannot be unpacked fails
// verification; only cancellation and local I/O faults are errors.
func (v *Verifier) VerifyZip(ctx context.Context, zipPath string) (*Result, error) {
	start := time.Now()
	res := &Result{Form: FormZip}
	if _, err := os.Stat(zipPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v.reject(res, Failure{Reason: errclass.ErrFileMissing.Code, Path: zipPath, Message: "bundle zip does not exist"}, start), nil
		}
		return nil, fmt.Errorf("stat %s: %w", zipPath, err)
	}

	tmp, err := os.MkdirTemp("", "sgc-verify-*")
	if err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := packager.Extract(ctx, zipPath, tmp, v.opts.Limits); err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, packager.ErrArchive):
			return v.reject(res, Failure{Reason: errclass.ErrManifestInvalid.Code, Path: zipPath, Message: err.Error()}, start), nil
		case errclass.Code(err) == errclass.ErrPathEscape.Code:
			return v.reject(res, failureFrom(err, ""), start), nil
		}
		return nil, err
	}
	if err := v.verifyTree(ctx, tmp, res); err != nil {
		return nil, err
	}
	v.record(res, start)
	return res, nil
}

// reject finishes res with a single failure about the input itself.
func (v *Verifier) reject(res *Result, f Failure, start time.Time) *Result {
	res.fail(f)
	res.finish()
	v.record(res, start)
	return res
}

func (v *Verifier) record(res *Result, start time.Time) {
	v.log.Info("verification finished", map[string]any{
		"form":     res.Form,
		"ok":       res.OK,
		"failures": len(res.Failures),
		"elapsed":  time.Since(start).String(),
	})
	if v.opts.Metrics != nil {
		v.opts.Metrics.RecordVerify(res.Form, res.OK, res.Reasons())
	}
}

// verifyTree locates the manifest below dir and verifies what it
// describes. Only operational errors are returned; verification
// outcomes land in res.
func (v *Verifier) verifyTree(ctx context.Context, dir string, res *Result) error {
	loc, err := locate(dir)
	if err != nil {
		res.fail(failureFrom(err, ""))
		res.finish()
		return nil
	}
	res.Kind = loc.kind
	res.Root = loc.rel
	v.log.Debug("manifest located", map[string]any{"root": loc.rel, "kind": loc.kind})

	root := filepath.Join(dir, filepath.FromSlash(loc.rel))
	switch loc.kind {
	case KindMultiPack:
		err = v.verifyMultiPack(ctx, root, res)
	default:
		var declared map[string]bool
		declared, err = v.verifyBundle(ctx, root, manifest.BundleFile, "", res)
		if err == nil && declared != nil {
			err = noteUndeclared(root, "", declared, nil, res)
		}
	}
	if err != nil {
		return err
	}
	res.finish()
	return nil
}

func (v *Verifier) verifyMultiPack(ctx context.Context, root string, res *Result) error {
	w, raw, err := manifest.ReadWrapper(filepath.Join(root, manifest.WrapperFile))
	if err != nil {
		// An untrusted wrapper gives no safe paths to follow.
		res.fail(failureFrom(err, manifest.WrapperFile))
		return nil
	}
	v.checkSignature(raw, manifest.WrapperFile, res)
	subDirs := make([]string, 0, len(w.Packs))
	for _, p := range w.Packs {
		if err := ctx.Err(); err != nil {
			return err
		}
		subDir := path.Clean(p.SubBundleDir)
		subDirs = append(subDirs, subDir)
		subRoot := filepath.Join(root, filepath.FromSlash(subDir))
		if err := pathutil.ValidatePathSafety(root, subRoot); err != nil {
			res.fail(failureFrom(err, subDir))
			continue
		}
		if info, err := os.Stat(subRoot); err != nil || !info.IsDir() {
			res.fail(Failure{Reason: errclass.ErrFileMissing.Code, Path: subDir, Message: "sub-bundle directory missing"})
			continue
		}
		manifestRel, _ := filepath.Rel(filepath.FromSlash(subDir), filepath.FromSlash(path.Clean(p.ManifestPath)))
		declared, err := v.verifyBundle(ctx, subRoot, filepath.ToSlash(manifestRel), subDir, res)
		if err != nil {
			return err
		}
		if declared != nil {
			if err := noteUndeclared(subRoot, subDir, declared, nil, res); err != nil {
				return err
			}
		}
	}
	return noteUndeclared(root, "", map[string]bool{manifest.WrapperFile: true}, subDirs, res)
}

// verifyBundle checks one bundle manifest. Failure paths are prefixed
// with prefix so that sub-bundle findings point into the right directory.
// It returns the bundle-relative paths the manifest declares, or nil when
// the manifest could not be read.
func (v *Verifier) verifyBundle(ctx context.Context, root, manifestRel, prefix string, res *Result) (map[string]bool, error) {
	manifestDisplay := join(prefix, manifestRel)
	b, raw, err := manifest.ReadBundle(filepath.Join(root, filepath.FromSlash(manifestRel)))
	switch {
	case errors.Is(err, errclass.ErrManifestNotFound):
		res.fail(Failure{Reason: errclass.ErrManifestNotFound.Code, Path: manifestDisplay})
		return nil, nil
	case errors.Is(err, errclass.ErrManifestInvalid):
		res.fail(failureFrom(err, manifestDisplay))
		return nil, nil
	case err != nil:
		return nil, err
	}
	if b.Contract.SchemaID != manifest.BundleSchemaID || b.Contract.SchemaVersion != manifest.SchemaVersion {
		res.fail(Failure{
			Reason:   errclass.ErrManifestInvalid.Code,
			Path:     manifestDisplay,
			Expected: manifest.BundleSchemaID + "/" + manifest.SchemaVersion,
			Actual:   b.Contract.SchemaID + "/" + b.Contract.SchemaVersion,
		})
		return nil, nil
	}
	res.Bundles++

	declared := map[string]bool{manifestRel: true}
	for _, a := range b.Artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if clean := v.checkArtifact(root, prefix, a.Path, a.SHA256, res); clean != "" {
			declared[clean] = true
		}
	}

	v.checkSignature(raw, manifestDisplay, res)
	return declared, nil
}

// checkSignature checks the signature embedded in raw when a secret was
// given. Without one, signatures are not looked at.
func (v *Verifier) checkSignature(raw []byte, display string, res *Result) {
	if v.opts.Signer == nil {
		return
	}
	status, err := v.opts.Signer.CheckDocument(raw, v.opts.AllowUnsigned)
	res.noteSignature(status)
	if err != nil {
		res.fail(failureFrom(err, display))
	}
	v.log.Debug("signature checked", map[string]any{"manifest": display, "status": string(status)})
}

// checkArtifact hashes one declared artifact and returns its cleaned
// path, or "" if the path itself is unusable.
func (v *Verifier) checkArtifact(root, prefix, rel string, want integrity.Digest, res *Result) string {
	res.Artifacts++
	clean, err := pathutil.CleanRel(rel)
	if err != nil {
		res.fail(failureFrom(err, join(prefix, rel)))
		return ""
	}
	display := join(prefix, clean)
	if _, err := integrity.ParseDigest(string(want)); err != nil {
		res.fail(failureFrom(errclass.ErrManifestInvalid.WithMessagef("%v", err), display))
		return clean
	}

	target := filepath.Join(root, filepath.FromSlash(clean))
	info, err := os.Lstat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.fail(Failure{Reason: errclass.ErrFileMissing.Code, Path: display, Expected: string(want)})
			return clean
		}
		res.fail(Failure{Reason: errclass.ErrFileMissing.Code, Path: display, Message: err.Error()})
		return clean
	}
	if !info.Mode().IsRegular() {
		res.fail(Failure{Reason: errclass.ErrPathEscape.Code, Path: display, Message: "not a regular file"})
		return clean
	}
	if err := pathutil.ValidatePathSafety(root, target); err != nil {
		res.fail(failureFrom(err, display))
		return clean
	}

	got, _, err := integrity.SumFile(target)
	if err != nil {
		res.fail(Failure{Reason: errclass.ErrFileMissing.Code, Path: display, Message: err.Error()})
		return clean
	}
	if got != want {
		res.fail(Failure{Reason: errclass.ErrDigestMismatch.Code, Path: display, Expected: string(want), Actual: string(got)})
		return clean
	}
	v.log.Debug("artifact hashed", map[string]any{"path": display})
	return clean
}

// noteUndeclared lists files below root that declared does not name.
// Files under skipDirs belong to sub-bundles and are accounted for there.
func noteUndeclared(root, prefix string, declared map[string]bool, skipDirs []string, res *Result) error {
	files, special, err := integrity.ListFiles(root)
	if err != nil {
		return err
	}
	for _, rel := range append(files, special...) {
		if declared[rel] || under(rel, skipDirs) {
			continue
		}
		res.Undeclared = append(res.Undeclared, join(prefix, rel))
	}
	return nil
}

func under(rel string, dirs []string) bool {
	for _, d := range dirs {
		if rel == d || len(rel) > len(d) && rel[:len(d)+1] == d+"/" {
			return true
		}
	}
	return false
}

func join(prefix, rel string) string {
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}
