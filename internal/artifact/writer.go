// Package artifact writes files into a bundle root and records their
// content addresses.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/smartguitar/sgc/internal/integrity"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/jsonutil"
	"github.com/smartguitar/sgc/pkg/pathutil"
)

// Kind classifies an artifact. It is informative only; integrity is
// decided by the digest.
type Kind string

const (
	KindAssignment Kind = "assignment"
	KindPack       Kind = "pack"
	KindMIDI       Kind = "midi"
	KindJSON       Kind = "json"
	KindText       Kind = "text"
	KindAttachment Kind = "attachment"
	KindBinary     Kind = "binary"
)

// Artifact is the record of one file written into a bundle.
type Artifact struct {
	Path   string           `json:"path"`
	SHA256 integrity.Digest `json:"sha256"`
	Kind   Kind             `json:"kind,omitempty"`
	Size   int64            `json:"size"`
}

// InferKind guesses a Kind from the file extension.
func InferKind(rel string) Kind {
	switch strings.ToLower(path.Ext(rel)) {
	case ".mid", ".midi":
		return KindMIDI
	case ".json":
		return KindJSON
	case ".txt", ".md":
		return KindText
	default:
		return KindBinary
	}
}

// Writer writes artifacts below a single bundle root.
type Writer struct {
	root      string
	onWrite   func(Artifact)
	artifacts []Artifact
}

// Option configures a Writer.
type Option func(*Writer)

// WithRecorder registers fn to be called after every successful write.
func WithRecorder(fn func(Artifact)) Option {
	return func(w *Writer) { w.onWrite = fn }
}

// NewWriter creates a Writer rooted at root. The root is created lazily.
func NewWriter(root string, opts ...Option) *Writer {
	w := &Writer{root: root}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the bundle root directory.
func (w *Writer) Root() string {
	return w.root
}

// Artifacts returns the artifacts written so far, in write order.
func (w *Writer) Artifacts() []Artifact {
	out := make([]Artifact, len(w.artifacts))
	copy(out, w.artifacts)
	return out
}

// Write stores content at rel and records it. Empty content is allowed.
func (w *Writer) Write(rel string, content []byte, kind Kind) (Artifact, error) {
	return w.write(rel, kind, func(f io.Writer) error {
		_, err := f.Write(content)
		return err
	})
}

// WriteRequired is Write but rejects empty content with ErrArtifactEmpty.
func (w *Writer) WriteRequired(rel string, content []byte, kind Kind) (Artifact, error) {
	if len(content) == 0 {
		return Artifact{}, errclass.ErrArtifactEmpty.WithMessagef("refusing to write empty artifact %s", rel)
	}
	return w.Write(rel, content, kind)
}

// WriteJSON stores v as indented canonical JSON.
func (w *Writer) WriteJSON(rel string, v any, kind Kind) (Artifact, error) {
	data, err := jsonutil.CanonicalIndent(v)
	if err != nil {
		return Artifact{}, fmt.Errorf("encode %s: %w", rel, err)
	}
	return w.WriteRequired(rel, data, kind)
}

// CopyFile streams src into the bundle at rel.
func (w *Writer) CopyFile(rel, src string, kind Kind) (Artifact, error) {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{}, errclass.ErrFileNotFound.WithMessagef("attachment %s", src)
		}
		return Artifact{}, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	return w.write(rel, kind, func(f io.Writer) error {
		_, err := io.Copy(f, in)
		return err
	})
}

func (w *Writer) write(rel string, kind Kind, fill func(io.Writer) error) (Artifact, error) {
	clean, err := pathutil.CleanRel(rel)
	if err != nil {
		return Artifact{}, err
	}
	dst := filepath.Join(w.root, filepath.FromSlash(clean))

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return Artifact{}, fmt.Errorf("create parent of %s: %w", clean, err)
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Artifact{}, errclass.ErrArtifactExists.WithMessagef("%s already exists", clean)
		}
		return Artifact{}, fmt.Errorf("create %s: %w", clean, err)
	}

	// The digest is taken over the bytes as they pass into the file.
	hw := newHashingWriter(f)
	if err := fill(hw); err != nil {
		f.Close()
		return Artifact{}, fmt.Errorf("write %s: %w", clean, err)
	}
	if err := f.Close(); err != nil {
		return Artifact{}, fmt.Errorf("close %s: %w", clean, err)
	}

	a := Artifact{
		Path:   clean,
		SHA256: hw.digest(),
		Kind:   kind,
		Size:   hw.n,
	}
	if a.Kind == "" {
		a.Kind = InferKind(clean)
	}
	w.artifacts = append(w.artifacts, a)
	if w.onWrite != nil {
		w.onWrite(a)
	}
	return a, nil
}
