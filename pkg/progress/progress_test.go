package progress_test

import (
	"bytes"
	"testing"

	"github.com/smartguitar/sgc/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op             string
	current, total int
	message        string
}

func TestProgress_IncrementAndDone(t *testing.T) {
	var calls []call
	p := progress.New("per-pack", 3, func(op string, current, total int, message string) {
		calls = append(calls, call{op, current, total, message})
	})

	p.Increment("rock_straight_v1")
	p.Increment("house_grid_v1")
	p.Done("finished")

	require.Len(t, calls, 3)
	assert.Equal(t, call{"per-pack", 1, 3, "rock_straight_v1"}, calls[0])
	assert.Equal(t, call{"per-pack", 2, 3, "house_grid_v1"}, calls[1])
	assert.Equal(t, call{"per-pack", 3, 3, "finished"}, calls[2])
}

func TestProgress_NilCallback(t *testing.T) {
	p := progress.New("x", 1, nil)
	assert.NotPanics(t, func() { p.Increment("a") })
}

func TestProgress_IncrementClampsAtTotal(t *testing.T) {
	var last call
	p := progress.New("multi-pack", 1, func(op string, current, total int, message string) {
		last = call{op, current, total, message}
	})
	p.Increment("a")
	p.Increment("b")
	assert.Equal(t, call{"multi-pack", 1, 1, "b"}, last)
}

func TestLines(t *testing.T) {
	var buf bytes.Buffer
	cb := progress.Lines(&buf)
	cb("multi-pack", 1, 12, "rock_straight_v1")
	cb("multi-pack", 12, 12, "")
	assert.Equal(t, "  [ 1/12] multi-pack: rock_straight_v1\n  [12/12] multi-pack\n", buf.String())
}
