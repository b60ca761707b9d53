//go:build windows

package audit

import "os"

// lockFile is a no-op on Windows; the in-process mutex is all that guards
// the log there.
func lockFile(_ *os.File) error   { return nil }
func unlockFile(_ *os.File) error { return nil }
