package assignment

import (
	"github.com/smartguitar/sgc/internal/signer"
	"github.com/smartguitar/sgc/pkg/jsonutil"
)

// Envelope contract.
const (
	SchemaID      = "ota_assignment"
	SchemaVersion = "v1"
)

type Contract struct {
	SchemaID      string `json:"schema_id"`
	SchemaVersion string `json:"schema_version"`
}

// Envelope is the firmware-facing wrapper around an assignment, written
// as assignment.json in every bundle.
type Envelope struct {
	Contract  Contract          `json:"contract"`
	Payload   *Assignment       `json:"payload"`
	Signature *signer.Signature `json:"signature,omitempty"`
}

// Wrap puts a in an unsigned envelope.
func Wrap(a *Assignment) *Envelope {
	return &Envelope{
		Contract: Contract{SchemaID: SchemaID, SchemaVersion: SchemaVersion},
		Payload:  a,
	}
}

// Marshal returns the envelope as indented canonical JSON.
func (e *Envelope) Marshal() ([]byte, error) {
	return jsonutil.CanonicalIndent(e)
}

// SignedPayload wraps a and signs the envelope when s is non-nil.
func SignedPayload(a *Assignment, s *signer.Signer) ([]byte, error) {
	env := Wrap(a)
	if s != nil {
		sig, err := s.Sign(env)
		if err != nil {
			return nil, err
		}
		env.Signature = &sig
	}
	return env.Marshal()
}
