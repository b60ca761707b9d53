// Package progress reports per-pack progress during multi-bundle builds.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Callback receives one update per finished step. op names the build mode,
// message usually the pack id.
type Callback func(op string, current, total int, message string)

// Noop discards updates.
func Noop(string, int, int, string) {}

// Progress counts the steps of one operation.
type Progress struct {
	op      string
	total   int
	current int
	cb      Callback
}

// New starts counting total steps of op. A nil cb discards updates.
func New(op string, total int, cb Callback) *Progress {
	if cb == nil {
		cb = Noop
	}
	return &Progress{op: op, total: total, cb: cb}
}

// Increment records one finished step.
func (p *Progress) Increment(message string) {
	if p.current < p.total {
		p.current++
	}
	p.cb(p.op, p.current, p.total, message)
}

// Done reports the operation as complete regardless of the step count.
func (p *Progress) Done(message string) {
	p.current = p.total
	p.cb(p.op, p.current, p.total, message)
}

// Lines returns a Callback that writes one line per update to w:
//
//	[2/5] per-pack: disco_four_on_floor_v1
func Lines(w io.Writer) Callback {
	var mu sync.Mutex
	return func(op string, current, total int, message string) {
		mu.Lock()
		defer mu.Unlock()
		width := len(fmt.Sprint(total))
		var b strings.Builder
		fmt.Fprintf(&b, "  [%*d/%d] %s", width, current, total, op)
		if message = strings.TrimSpace(message); message != "" {
			b.WriteString(": " + message)
		}
		fmt.Fprintln(w, b.String())
	}
}
