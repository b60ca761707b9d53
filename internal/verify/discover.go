package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/smartguitar/sgc/internal/manifest"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/fsutil"
)

type location struct {
	rel  string // bundle root relative to the searched directory, "." for itself
	kind string
}

// locate finds the bundle root below dir. A wrapper or bundle manifest at
// dir itself wins; otherwise exactly one immediate subdirectory must hold
// exactly one of them.
func locate(dir string) (location, error) {
	here := manifestsIn(dir)
	switch len(here) {
	case 1:
		return location{rel: ".", kind: here[0]}, nil
	case 2:
		return location{}, errclass.ErrManifestAmbiguous.WithMessagef("both %s and %s at bundle root", manifest.WrapperFile, manifest.BundleFile)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return location{}, fmt.Errorf("read %s: %w", dir, err)
	}
	var found []location
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, kind := range manifestsIn(filepath.Join(dir, e.Name())) {
			found = append(found, location{rel: e.Name(), kind: kind})
		}
	}
	switch len(found) {
	case 0:
		return location{}, errclass.ErrManifestNotFound.WithMessagef("no %s or %s at the root or one level down", manifest.BundleFile, manifest.WrapperFile)
	case 1:
		return found[0], nil
	default:
		names := make([]string, len(found))
		for i, l := range found {
			names[i] = l.rel
		}
		sort.Strings(names)
		return location{}, errclass.ErrManifestAmbiguous.WithMessagef("manifests found in %v", names)
	}
}

func manifestsIn(dir string) []string {
	var kinds []string
	if fsutil.Exists(filepath.Join(dir, manifest.WrapperFile)) {
		kinds = append(kinds, KindMultiPack)
	}
	if fsutil.Exists(filepath.Join(dir, manifest.BundleFile)) {
		kinds = append(kinds, KindBundle)
	}
	return kinds
}
