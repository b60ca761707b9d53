// Package signer computes and checks HMAC-SHA256 signatures over canonical
// JSON documents. The signature lives in the document's top-level
// "signature" member and is excluded from the signed bytes.
package signer

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/jsonutil"
)

// Algorithm is the only supported signature algorithm.
const Algorithm = "HMAC-SHA256"

// Field is the top-level member that carries the signature.
const Field = "signature"

// Signature is the embedded signature section.
type Signature struct {
	Alg   string `json:"alg"`
	Value string `json:"value"`
}

// Status is the outcome of a signature check.
type Status string

const (
	StatusValid    Status = "valid"
	StatusUnsigned Status = "unsigned"
	StatusInvalid  Status = "invalid"
)

// Signer holds an HMAC secret.
type Signer struct {
	secret []byte
}

// New returns a Signer for secret. An empty secret is rejected; callers
// that have no secret should not construct a Signer.
func New(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errclass.ErrSecretInvalid.WithMessage("HMAC secret must not be empty")
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Signer{secret: s}, nil
}

// Payload returns the bytes covered by the signature: the canonical JSON of
// doc with its signature member removed. doc may be a Go value or raw JSON.
func Payload(doc any) ([]byte, error) {
	return jsonutil.CanonicalWithout(doc, Field)
}

// Sign computes the signature of doc.
func (s *Signer) Sign(doc any) (Signature, error) {
	payload, err := Payload(doc)
	if err != nil {
		return Signature{}, fmt.Errorf("sign: %w", err)
	}
	return Signature{Alg: Algorithm, Value: hex.EncodeToString(s.mac(payload))}, nil
}

// Verify recomputes the signature of doc and compares it to sig in
// constant time.
func (s *Signer) Verify(doc any, sig *Signature) error {
	if sig == nil {
		return errclass.ErrSignatureInvalid.WithMessage("document is unsigned")
	}
	if sig.Alg != Algorithm {
		return errclass.ErrSignatureInvalid.WithMessagef("unsupported signature algorithm %q", sig.Alg)
	}
	got, err := hex.DecodeString(strings.TrimSpace(sig.Value))
	if err != nil {
		return errclass.ErrSignatureInvalid.WithMessage("signature value is not hex")
	}
	payload, err := Payload(doc)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !hmac.Equal(got, s.mac(payload)) {
		return errclass.ErrSignatureInvalid.WithMessage("HMAC mismatch")
	}
	return nil
}

// CheckDocument verifies the signature embedded in raw. An unsigned
// document fails unless allowUnsigned is set.
func (s *Signer) CheckDocument(raw []byte, allowUnsigned bool) (Status, error) {
	sig, err := Extract(raw)
	if err != nil {
		return StatusInvalid, err
	}
	if sig == nil {
		if allowUnsigned {
			return StatusUnsigned, nil
		}
		return StatusUnsigned, errclass.ErrSignatureInvalid.WithMessage("document is unsigned")
	}
	if err := s.Verify(json.RawMessage(raw), sig); err != nil {
		return StatusInvalid, err
	}
	return StatusValid, nil
}

func (s *Signer) mac(payload []byte) []byte {
	m := hmac.New(sha256.New, s.secret)
	m.Write(payload)
	return m.Sum(nil)
}

// Extract returns the signature embedded in raw, or nil when the member is
// absent or null.
func Extract(raw []byte) (*Signature, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errclass.ErrManifestInvalid.WithMessagef("parse document: %v", err)
	}
	field, ok := doc[Field]
	if !ok || bytes.Equal(bytes.TrimSpace(field), []byte("null")) {
		return nil, nil
	}
	var sig Signature
	if err := json.Unmarshal(field, &sig); err != nil {
		return nil, errclass.ErrSignatureInvalid.WithMessagef("malformed signature section: %v", err)
	}
	return &sig, nil
}

// LoadSecret resolves the HMAC secret from an inline value or a file. The
// inline value wins when both are set. File contents are trimmed of
// surrounding whitespace. No source yields a nil secret.
func LoadSecret(inline, file string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if file == "" {
		return nil, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errclass.ErrFileNotFound.WithMessagef("secret file %s", file)
		}
		return nil, fmt.Errorf("read secret file: %w", err)
	}
	secret := bytes.TrimSpace(data)
	if len(secret) == 0 {
		return nil, errclass.ErrSecretInvalid.WithMessagef("secret file %s is empty", file)
	}
	return secret, nil
}
