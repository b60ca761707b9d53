// Package verify checks OTA bundles against their manifests: artifact
// digests, wrapper containment and, given a secret, manifest signatures.
// Verification never modifies the bundle.
package verify

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/smartguitar/sgc/internal/signer"
	"github.com/smartguitar/sgc/pkg/errclass"
)

// Forms of input.
const (
	FormFolder = "folder"
	FormZip    = "zip"
)

// Kinds of located bundle root.
const (
	KindBundle    = "bundle"
	KindMultiPack = "multi-pack"
)

// Failure is one reason a bundle did not verify. Reason is an errclass
// code.
type Failure struct {
	Reason   string `json:"reason"`
	Path     string `json:"path,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (f Failure) String() string {
	var b strings.Builder
	b.WriteString(f.Reason)
	if f.Path != "" {
		b.WriteString(": ")
		b.WriteString(f.Path)
	}
	if f.Expected != "" || f.Actual != "" {
		fmt.Fprintf(&b, " (expected %s, got %s)", f.Expected, f.Actual)
	}
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	return b.String()
}

func failureFrom(err error, path string) Failure {
	f := Failure{Reason: errclass.Code(err), Path: path, Message: err.Error()}
	var e *errclass.Error
	if errors.As(err, &e) {
		f.Message = e.Message
	}
	if f.Reason == "" {
		f.Reason = errclass.ErrManifestInvalid.Code
	}
	return f
}

// Result is the outcome of verifying one input.
type Result struct {
	Form       string        `json:"form"`
	Kind       string        `json:"kind,omitempty"`
	Root       string        `json:"root,omitempty"`
	OK         bool          `json:"ok"`
	Bundles    int           `json:"bundles"`
	Artifacts  int           `json:"artifacts"`
	Signature  signer.Status `json:"signature,omitempty"`
	Failures   []Failure     `json:"failures"`
	Undeclared []string      `json:"undeclared,omitempty"`
}

// Reasons returns the failure codes in report order.
func (r *Result) Reasons() []string {
	out := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Reason
	}
	return out
}

// Err returns nil for a passing result and otherwise an *errclass.Error
// carrying the first failure.
func (r *Result) Err() error {
	if r.OK || len(r.Failures) == 0 {
		return nil
	}
	f := r.Failures[0]
	return &errclass.Error{Code: f.Reason, Message: f.String()}
}

func (r *Result) fail(f Failure) {
	r.Failures = append(r.Failures, f)
}

// noteSignature folds one manifest's signature status into the result:
// any invalid manifest makes the whole result invalid, any unsigned one
// makes it unsigned.
func (r *Result) noteSignature(s signer.Status) {
	switch {
	case r.Signature == signer.StatusInvalid:
	case s == signer.StatusInvalid:
		r.Signature = s
	case r.Signature == signer.StatusUnsigned:
	default:
		r.Signature = s
	}
}

func (r *Result) finish() {
	sort.SliceStable(r.Failures, func(i, j int) bool {
		if r.Failures[i].Path != r.Failures[j].Path {
			return r.Failures[i].Path < r.Failures[j].Path
		}
		return r.Failures[i].Reason < r.Failures[j].Reason
	})
	sort.Strings(r.Undeclared)
	if r.Failures == nil {
		r.Failures = []Failure{}
	}
	r.OK = len(r.Failures) == 0
}
