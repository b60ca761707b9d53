// Package assignment models practice assignments: what a device should
// practice next, how strictly, and for how long. Assignments either come
// from a planned session file or are derived from a dance pack's defaults.
package assignment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/smartguitar/sgc/internal/catalog"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/uuidutil"
)

// ProgramTypeZTProg identifies a practice program by dance pack.
const ProgramTypeZTProg = "ztprog"

// Defaults applied to assignments derived from a pack.
const (
	DefaultTempoStep            = 5
	DefaultRepetitions          = 8
	DefaultMaxMeanErrorMS       = 30.0
	DefaultMaxLateDrops         = 3
	DefaultExpiresAfterSessions = 5
	DefaultFocus                = "groove"
)

type ProgramRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type Constraints struct {
	TempoStart     int     `json:"tempo_start"`
	TempoTarget    int     `json:"tempo_target"`
	TempoStep      int     `json:"tempo_step"`
	Strict         bool    `json:"strict"`
	StrictWindowMS float64 `json:"strict_window_ms"`
	BarsPerLoop    int     `json:"bars_per_loop"`
	Repetitions    int     `json:"repetitions"`
}

type Focus struct {
	Primary   string  `json:"primary"`
	Secondary *string `json:"secondary"`
}

type SuccessCriteria struct {
	MaxMeanErrorMS float64 `json:"max_mean_error_ms"`
	MaxLateDrops   int     `json:"max_late_drops"`
}

type CoachPrompt struct {
	Mode    string `json:"mode"`
	Message string `json:"message"`
}

// Assignment is a practice assignment.
type Assignment struct {
	AssignmentID         string          `json:"assignment_id"`
	SessionID            string          `json:"session_id"`
	Program              ProgramRef      `json:"program"`
	Constraints          Constraints     `json:"constraints"`
	Focus                Focus           `json:"focus"`
	SuccessCriteria      SuccessCriteria `json:"success_criteria"`
	CoachPrompt          CoachPrompt     `json:"coach_prompt"`
	ExpiresAfterSessions int             `json:"expires_after_sessions"`
}

// PackSessionID is the session id of the default assignment for packID.
func PackSessionID(packID string) string {
	return uuidutil.NewV5("pack-default-session:" + packID)
}

// PackAssignmentID is the assignment id of the default assignment for
// packID.
func PackAssignmentID(packID string) string {
	return uuidutil.NewV5("pack-default-assignment:" + packID)
}

// FromPack derives the default assignment for p. Identifiers depend only
// on the pack id, so repeated builds yield identical assignments.
func FromPack(p *catalog.Pack) *Assignment {
	d := catalog.Defaults(p)
	id := p.Metadata.ID

	focus := DefaultFocus
	if len(p.PracticeMapping.PrimaryFocus) > 0 {
		focus = p.PracticeMapping.PrimaryFocus[0]
	}

	return &Assignment{
		AssignmentID: PackAssignmentID(id),
		SessionID:    PackSessionID(id),
		Program:      ProgramRef{Type: ProgramTypeZTProg, ID: id},
		Constraints: Constraints{
			TempoStart:     int(d.TempoStartBPM),
			TempoTarget:    int(d.TempoTargetBPM),
			TempoStep:      DefaultTempoStep,
			Strict:         true,
			StrictWindowMS: d.StrictWindowMS,
			BarsPerLoop:    d.BarsPerLoop,
			Repetitions:    DefaultRepetitions,
		},
		Focus: Focus{Primary: focus},
		SuccessCriteria: SuccessCriteria{
			MaxMeanErrorMS: DefaultMaxMeanErrorMS,
			MaxLateDrops:   DefaultMaxLateDrops,
		},
		CoachPrompt: CoachPrompt{
			Mode:    "optional",
			Message: fmt.Sprintf("Practice %s at comfortable tempo.", p.Metadata.DisplayName),
		},
		ExpiresAfterSessions: DefaultExpiresAfterSessions,
	}
}

var promptModes = map[string]bool{"off": true, "optional": true, "required": true}

// Validate checks identifiers and numeric ranges.
func (a *Assignment) Validate() error {
	if _, err := uuid.Parse(a.AssignmentID); err != nil {
		return errclass.ErrSessionInvalid.WithMessagef("assignment_id %q is not a UUID", a.AssignmentID)
	}
	if _, err := uuid.Parse(a.SessionID); err != nil {
		return errclass.ErrSessionInvalid.WithMessagef("session_id %q is not a UUID", a.SessionID)
	}
	if a.Program.Type == "" || a.Program.ID == "" {
		return errclass.ErrSessionInvalid.WithMessage("program needs a type and an id")
	}
	c := a.Constraints
	switch {
	case c.TempoStart <= 0:
		return errclass.ErrSessionInvalid.WithMessagef("tempo_start %d must be positive", c.TempoStart)
	case c.TempoTarget < c.TempoStart:
		return errclass.ErrSessionInvalid.WithMessagef("tempo_target %d is below tempo_start %d", c.TempoTarget, c.TempoStart)
	case c.TempoStep <= 0:
		return errclass.ErrSessionInvalid.WithMessage("tempo_step must be positive")
	case c.StrictWindowMS <= 0:
		return errclass.ErrSessionInvalid.WithMessage("strict_window_ms must be positive")
	case c.BarsPerLoop < 1 || c.Repetitions < 1:
		return errclass.ErrSessionInvalid.WithMessage("bars_per_loop and repetitions must be at least 1")
	}
	if a.Focus.Primary == "" {
		return errclass.ErrSessionInvalid.WithMessage("focus.primary is required")
	}
	if !promptModes[a.CoachPrompt.Mode] {
		return errclass.ErrSessionInvalid.WithMessagef("coach_prompt.mode %q", a.CoachPrompt.Mode)
	}
	if a.ExpiresAfterSessions < 1 {
		return errclass.ErrSessionInvalid.WithMessage("expires_after_sessions must be at least 1")
	}
	return nil
}
