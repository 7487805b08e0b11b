package updater

import (
	"path"
	"sort"
	"strings"

	"kiosk-firmware/pkg/appconfig"
)

// AssetPrefix is the path convention that marks a media path as
// package-relative. Anything else is passed through untouched.
const AssetPrefix = "assets/"

// GatherAssets scans every media path and returns the set of package-relative
// asset files the document depends on, keyed by the path remainder after the
// prefix. The first reference seen for a given remainder wins; entries are
// visited in name order so "first" is deterministic.
func GatherAssets(doc *appconfig.Document) map[string]string {
	assets := make(map[string]string)
	for _, name := range sortedNames(doc.Media) {
		p := doc.Media[name].Path
		if !strings.HasPrefix(p, AssetPrefix) {
			continue
		}
		rel := strings.TrimPrefix(p, AssetPrefix)
		if rel == "" {
			continue
		}
		if _, ok := assets[rel]; !ok {
			assets[rel] = p
		}
	}
	return assets
}

// RewritePaths returns an independent copy of the document with every
// asset-prefixed media path remapped under newPrefix, separators normalized
// to forward slashes. Paths outside the convention pass through unchanged
// (preinstalled absolute paths rely on this). The input is never mutated.
func RewritePaths(doc *appconfig.Document, newPrefix string) *appconfig.Document {
	out := doc.Clone()
	prefix := strings.ReplaceAll(newPrefix, "\\", "/")
	for name, m := range out.Media {
		if !strings.HasPrefix(m.Path, AssetPrefix) {
			continue
		}
		rel := strings.TrimPrefix(m.Path, AssetPrefix)
		m.Path = path.Join(prefix, rel)
		out.Media[name] = m
	}
	return out
}

func sortedNames(m map[string]appconfig.Media) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
