package errclass_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	assert.Equal(t, "SELECTOR_CONFLICT", errclass.ErrSelectorConflict.Error())
	err := errclass.ErrPackNotFound.WithMessage("unknown pack: nope_v1")
	assert.Equal(t, "PACK_NOT_FOUND: unknown pack: nope_v1", err.Error())
}

func TestError_IsMatchesCode(t *testing.T) {
	err := errclass.ErrNameCollision.WithMessagef("bundle %s exists", "ota_bundle__x")
	require.True(t, errors.Is(err, errclass.ErrNameCollision))
	require.False(t, errors.Is(err, errclass.ErrPathEscape))
}

func TestError_IsThroughWrap(t *testing.T) {
	err := fmt.Errorf("build: %w", errclass.ErrSetNotFound.WithMessage("x"))
	assert.True(t, errors.Is(err, errclass.ErrSetNotFound))
	assert.Equal(t, "SET_NOT_FOUND", errclass.Code(err))
}

func TestError_IsWithStandardError(t *testing.T) {
	err := errclass.ErrDigestMismatch.WithMessage("a.json")
	assert.False(t, errors.Is(err, errors.New("DIGEST_MISMATCH")))
	assert.Equal(t, "", errclass.Code(errors.New("plain")))
}

func TestError_WithMessageDoesNotMutateBase(t *testing.T) {
	_ = errclass.ErrFileMissing.WithMessage("gone")
	assert.Empty(t, errclass.ErrFileMissing.Message)
}
