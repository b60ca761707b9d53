// Package color colors verification and build status lines.
// It respects the NO_COLOR environment variable (https://no-color.org/) and
// stays off when stdout is not a terminal.
package color

import (
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/term"
)

var state struct {
	once       sync.Once
	enabled    atomic.Bool
	overridden atomic.Bool
}

// Init decides whether color is enabled from the environment and the
// --no-color flag. Later calls are ignored unless Enable/Disable override.
func Init(noColorFlag bool) {
	state.once.Do(func() {
		if state.overridden.Load() {
			return
		}
		state.enabled.Store(detect(noColorFlag, os.LookupEnv, stdoutIsTerminal))
	})
}

// Status lines are parsed by scripts, so anything but a terminal gets
// plain text.
func detect(noColorFlag bool, lookupEnv func(string) (string, bool), isTerminal func() bool) bool {
	if noColorFlag {
		return false
	}
	if _, ok := lookupEnv("NO_COLOR"); ok {
		return false
	}
	if term, _ := lookupEnv("TERM"); term == "dumb" {
		return false
	}
	return isTerminal()
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	Init(false)
	return state.enabled.Load()
}

// Disable turns off color output.
func Disable() {
	state.overridden.Store(true)
	state.enabled.Store(false)
}

// Enable turns on color output.
func Enable() {
	state.overridden.Store(true)
	state.enabled.Store(true)
}

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	gray   = "\033[90m"
)

func wrap(code, s string) string {
	if !Enabled() {
		return s
	}
	return code + s + reset
}

// Success formats a passing status in green.
func Success(s string) string { return wrap(green, s) }

// Error formats a failing status in red.
func Error(s string) string { return wrap(red, s) }

// Warning formats a warning in yellow.
func Warning(s string) string { return wrap(yellow, s) }

// Path formats a filesystem path in cyan.
func Path(s string) string { return wrap(cyan, s) }

// Header formats a header in bold.
func Header(s string) string { return wrap(bold, s) }

// Dim formats secondary information.
func Dim(s string) string { return wrap(gray, s) }
