package assignment_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartguitar/sgc/internal/assignment"
	"github.com/smartguitar/sgc/internal/catalog"
	"github.com/smartguitar/sgc/internal/signer"
	"github.com/smartguitar/sgc/pkg/errclass"
)

func rockPack(t *testing.T) *catalog.Pack {
	t.Helper()
	r, err := catalog.Default()
	require.NoError(t, err)
	p, err := r.Pack("rock_straight_v1")
	require.NoError(t, err)
	return p
}

func TestPackIDs_Deterministic(t *testing.T) {
	assert.Equal(t, "0d33f0df-0150-5fa0-9c45-41155fa507b7", assignment.PackSessionID("rock_straight_v1"))
	assert.Equal(t, "c3dd399d-2f81-58a5-984a-f894f0412f7a", assignment.PackAssignmentID("rock_straight_v1"))
	assert.NotEqual(t, assignment.PackSessionID("a"), assignment.PackSessionID("b"))
}

func TestFromPack(t *testing.T) {
	a := assignment.FromPack(rockPack(t))
	require.NoError(t, a.Validate())

	assert.Equal(t, assignment.ProgramRef{Type: "ztprog", ID: "rock_straight_v1"}, a.Program)
	assert.Equal(t, 90, a.Constraints.TempoStart)
	assert.Equal(t, 115, a.Constraints.TempoTarget)
	assert.Equal(t, 5, a.Constraints.TempoStep)
	assert.True(t, a.Constraints.Strict)
	assert.Equal(t, 35.0, a.Constraints.StrictWindowMS)
	assert.Equal(t, 4, a.Constraints.BarsPerLoop)
	assert.Equal(t, 8, a.Constraints.Repetitions)
	assert.Equal(t, "timing", a.Focus.Primary)
	assert.Nil(t, a.Focus.Secondary)
	assert.Equal(t, "Practice Straight Rock at comfortable tempo.", a.CoachPrompt.Message)
	assert.Equal(t, 5, a.ExpiresAfterSessions)
}

func TestFromPack_ByteIdenticalPayloads(t *testing.T) {
	first, err := assignment.Wrap(assignment.FromPack(rockPack(t))).Marshal()
	require.NoError(t, err)
	second, err := assignment.Wrap(assignment.FromPack(rockPack(t))).Marshal()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnvelope_Shape(t *testing.T) {
	data, err := assignment.Wrap(assignment.FromPack(rockPack(t))).Marshal()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, map[string]any{"schema_id": "ota_assignment", "schema_version": "v1"}, doc["contract"])
	assert.NotContains(t, doc, "signature")
	payload := doc["payload"].(map[string]any)
	assert.Equal(t, "c3dd399d-2f81-58a5-984a-f894f0412f7a", payload["assignment_id"])
}

func TestSignedPayload(t *testing.T) {
	s, err := signer.New([]byte("secret"))
	require.NoError(t, err)

	data, err := assignment.SignedPayload(assignment.FromPack(rockPack(t)), s)
	require.NoError(t, err)

	status, err := s.CheckDocument(data, false)
	require.NoError(t, err)
	assert.Equal(t, signer.StatusValid, status)

	other, err := signer.New([]byte("other"))
	require.NoError(t, err)
	_, err = other.CheckDocument(data, false)
	assert.ErrorIs(t, err, errclass.ErrSignatureInvalid)

	unsigned, err := assignment.SignedPayload(assignment.FromPack(rockPack(t)), nil)
	require.NoError(t, err)
	sig, err := signer.Extract(unsigned)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

const sessionDoc = `{
  "session_id": "0d33f0df-0150-5fa0-9c45-41155fa507b7",
  "program_ref": {"type": "ztprog", "id": "rock_straight_v1"},
  "performance": {"events": []},
  "assignment": {
    "assignment_id": "c3dd399d-2f81-58a5-984a-f894f0412f7a",
    "constraints": {"tempo_start": 80, "tempo_target": 96, "tempo_step": 4, "strict": false,
                    "strict_window_ms": 40, "bars_per_loop": 4, "repetitions": 6},
    "focus": {"primary": "timing", "secondary": "dynamics"},
    "success_criteria": {"max_mean_error_ms": 25, "max_late_drops": 2},
    "coach_prompt": {"mode": "required", "message": "Lock in."},
    "expires_after_sessions": 3
  }
}`

func TestDecodeSession(t *testing.T) {
	s, err := assignment.DecodeSession([]byte(sessionDoc))
	require.NoError(t, err)
	assert.Equal(t, "0d33f0df-0150-5fa0-9c45-41155fa507b7", s.Assignment.SessionID)
	assert.Equal(t, "rock_straight_v1", s.Assignment.Program.ID)
	require.NotNil(t, s.Assignment.Focus.Secondary)
	assert.Equal(t, "dynamics", *s.Assignment.Focus.Secondary)
}

func TestDecodeSession_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"no assignment": `{"session_id": "0d33f0df-0150-5fa0-9c45-41155fa507b7"}`,
		"mismatched session": `{"session_id": "0d33f0df-0150-5fa0-9c45-41155fa507b7",
			"assignment": {"session_id": "c3dd399d-2f81-58a5-984a-f894f0412f7a"}}`,
		"invalid assignment": `{"session_id": "0d33f0df-0150-5fa0-9c45-41155fa507b7",
			"assignment": {"assignment_id": "nope"}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := assignment.DecodeSession([]byte(doc))
			assert.ErrorIs(t, err, errclass.ErrSessionInvalid)
		})
	}
}

func TestLoadSession(t *testing.T) {
	dir := t.TempDir()
	_, err := assignment.LoadSession(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, errclass.ErrFileNotFound)

	path := filepath.Join(dir, "session.json")
	require.NoError(t, os.WriteFile(path, []byte(sessionDoc), 0644))
	s, err := assignment.LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, 80, s.Assignment.Constraints.TempoStart)
}

func TestValidate(t *testing.T) {
	base := func() *assignment.Assignment { return assignment.FromPack(rockPack(t)) }

	a := base()
	a.Constraints.TempoTarget = a.Constraints.TempoStart - 1
	assert.ErrorIs(t, a.Validate(), errclass.ErrSessionInvalid)

	a = base()
	a.CoachPrompt.Mode = "shouting"
	assert.ErrorIs(t, a.Validate(), errclass.ErrSessionInvalid)

	a = base()
	a.Program = assignment.ProgramRef{}
	assert.ErrorIs(t, a.Validate(), errclass.ErrSessionInvalid)

	a = base()
	a.ExpiresAfterSessions = 0
	assert.ErrorIs(t, a.Validate(), errclass.ErrSessionInvalid)
}
