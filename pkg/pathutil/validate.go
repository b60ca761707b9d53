// Package pathutil validates bundle names and keeps bundle paths inside
// their roots.
package pathutil

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/smartguitar/sgc/pkg/errclass"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateName checks that name is usable as a single bundle directory
// component (bundle names, pack ids, set ids).
func ValidateName(name string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessage("name must not be empty")
	}

	name = norm.NFC.String(name)

	if name == "." || strings.Contains(name, "..") {
		return errclass.ErrNameInvalid.WithMessagef("name must not contain '..': %s", name)
	}

	if strings.ContainsAny(name, "/\\") {
		return errclass.ErrNameInvalid.WithMessagef("name must not contain separators: %s", name)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("name must not contain control characters: %q", name)
		}
	}

	if !nameRegex.MatchString(name) {
		return errclass.ErrNameInvalid.WithMessagef("name must match [a-zA-Z0-9._-]+: %s", name)
	}

	return nil
}

// CleanRel validates a forward-slash relative path recorded in a manifest and
// returns it cleaned. Absolute paths and paths leaving their base are
// rejected with ErrPathEscape.
func CleanRel(rel string) (string, error) {
	if rel == "" {
		return "", errclass.ErrPathEscape.WithMessage("empty relative path")
	}
	if strings.Contains(rel, "\\") {
		return "", errclass.ErrPathEscape.WithMessagef("backslash in path: %s", rel)
	}
	if path.IsAbs(rel) || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", errclass.ErrPathEscape.WithMessagef("absolute path: %s", rel)
	}
	cleaned := path.Clean(rel)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errclass.ErrPathEscape.WithMessagef("path escapes its root: %s", rel)
	}
	return cleaned, nil
}

// JoinWithin joins rel onto root and returns the OS path, failing if the
// result would not be strictly inside root.
func JoinWithin(root, rel string) (string, error) {
	cleaned, err := CleanRel(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(cleaned)), nil
}

// IsStrictlyWithin reports whether target lies below base, lexically.
// target == base is not within.
func IsStrictlyWithin(base, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// ValidatePathSafety verifies target does not escape root once symlinks are
// resolved.
func ValidatePathSafety(root, targetPath string) error {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errclass.ErrPathEscape.WithMessagef("cannot resolve root: %v", err)
	}

	// Nonexistent targets are resolved through their closest ancestor.
	resolvedTarget, err := filepath.EvalSymlinks(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedTarget = resolveClosestAncestor(targetPath)
		} else {
			return errclass.ErrPathEscape.WithMessagef("cannot resolve target: %v", err)
		}
	}

	if !strings.HasPrefix(resolvedTarget+"/", resolvedRoot+"/") &&
		resolvedTarget != resolvedRoot {
		return errclass.ErrPathEscape.WithMessagef("path escapes root: %s", targetPath)
	}

	return nil
}

func resolveClosestAncestor(p string) string {
	dir := filepath.Dir(p)
	base := filepath.Base(p)

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(p)
		}
	}
	return filepath.Join(resolved, base)
}
