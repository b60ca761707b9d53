package assignment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/smartguitar/sgc/pkg/errclass"
)

// Session is a recorded practice session whose next assignment has
// already been planned. Members other than these are ignored.
type Session struct {
	SessionID  string      `json:"session_id"`
	ProgramRef *ProgramRef `json:"program_ref"`
	Assignment *Assignment `json:"assignment"`
}

// LoadSession reads a session file and returns its planned assignment.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errclass.ErrFileNotFound.WithMessagef("session file %s", path)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	return DecodeSession(data)
}

// DecodeSession parses a session document. A missing program on the
// assignment is taken from program_ref; the assignment's session_id must
// match the session.
func DecodeSession(data []byte) (*Session, error) {
	var s Session
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, errclass.ErrSessionInvalid.WithMessagef("parse session: %v", err)
	}
	if s.Assignment == nil {
		return nil, errclass.ErrSessionInvalid.WithMessage("session has no planned assignment")
	}
	if s.Assignment.SessionID == "" {
		s.Assignment.SessionID = s.SessionID
	}
	if s.SessionID != "" && s.Assignment.SessionID != s.SessionID {
		return nil, errclass.ErrSessionInvalid.WithMessagef("assignment session_id %s does not match session %s", s.Assignment.SessionID, s.SessionID)
	}
	if s.Assignment.Program == (ProgramRef{}) && s.ProgramRef != nil {
		s.Assignment.Program = *s.ProgramRef
	}
	if err := s.Assignment.Validate(); err != nil {
		return nil, err
	}
	s.SessionID = s.Assignment.SessionID
	return &s, nil
}
