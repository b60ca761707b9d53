package packager

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/flate"
)

// Level is the deflate level used for zip entries.
type Level int

const (
	// LevelNone stores entries uncompressed.
	LevelNone Level = 0
	// LevelFast uses the fastest deflate level.
	LevelFast Level = 1
	// LevelDefault uses deflate level 6.
	LevelDefault Level = 6
	// LevelMax uses the best deflate compression.
	LevelMax Level = 9
)

// ParseLevel accepts "none", "fast", "default", "max" or the equivalent
// numeric level. The empty string selects LevelDefault.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "0":
		return LevelNone, nil
	case "fast", "1":
		return LevelFast, nil
	case "", "default", "6":
		return LevelDefault, nil
	case "max", "9":
		return LevelMax, nil
	default:
		return 0, fmt.Errorf("invalid compression level: %s (must be none, fast, default, or max)", s)
	}
}

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelFast:
		return "fast"
	case LevelDefault:
		return "default"
	case LevelMax:
		return "max"
	default:
		return fmt.Sprintf("level-%d", int(l))
	}
}

func (l Level) flateLevel() int {
	switch l {
	case LevelFast:
		return flate.BestSpeed
	case LevelMax:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
