package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smartguitar/sgc/internal/catalog"
	"github.com/smartguitar/sgc/pkg/color"
	"github.com/smartguitar/sgc/pkg/errclass"
)

// suggestIDs returns a "Did you mean" hint for query among ids, or a
// pointer to the listing command when nothing is close.
func suggestIDs(query string, ids []string, listCmd string) string {
	q := strings.ToLower(query)

	// Try to find close matches by prefix
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, q) {
			matches = append(matches, color.Success(id))
		}
	}

	// If no prefix matches, try substring, then the id's first word
	if len(matches) == 0 {
		for _, id := range ids {
			if strings.Contains(id, q) {
				matches = append(matches, color.Success(id))
			}
		}
	}
	if len(matches) == 0 {
		if stem, _, ok := strings.Cut(q, "_"); ok && stem != "" {
			for _, id := range ids {
				if strings.HasPrefix(id, stem+"_") {
					matches = append(matches, color.Success(id))
				}
			}
		}
	}

	if len(matches) > 3 {
		matches = matches[:3]
	}
	if len(matches) > 0 {
		hint := "Did you mean"
		if len(matches) > 1 {
			hint += " one of"
		}
		return fmt.Sprintf("%s: %s?", hint, strings.Join(matches, ", "))
	}
	return fmt.Sprintf("Run %s to see what is available.", color.Header("sgc "+listCmd))
}

// withSuggestion decorates PACK_NOT_FOUND and SET_NOT_FOUND errors with a
// hint drawn from the bundled registry.
func withSuggestion(err error, query string, reg *catalog.Registry) error {
	if err == nil || reg == nil || query == "" {
		return err
	}
	var hint string
	switch {
	case errors.Is(err, errclass.ErrPackNotFound):
		hint = suggestIDs(query, reg.PackIDs(), "dance-pack-list")
	case errors.Is(err, errclass.ErrSetNotFound):
		hint = suggestIDs(query, reg.SetIDs(), "dance-pack-set-list")
	default:
		return err
	}
	return fmt.Errorf("%w\n  %s", err, color.Dim(hint))
}
