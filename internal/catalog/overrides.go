package catalog

import (
	"net/url"
	"path"
	"strings"

	"catalogsync/internal"
)

// OverrideSnapshot maps product id to a locally curated image URL.
type OverrideSnapshot map[string]string

// Overrides decides which stored values are local curation and carries them
// across a run.
type Overrides struct {
	denylist []string
}

func NewOverrides(imageDenylist []string) *Overrides {
	list := make([]string, 0, len(imageDenylist))
	for _, d := range imageDenylist {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			list = append(list, d)
		}
	}
	return &Overrides{denylist: list}
}

// IsCustomImage is true for a non-empty URL matching no denylist entry. An
// entry matches the host (exactly, as a parent domain or as one host label)
// or one whole path segment, with or without its file extension.
func (o *Overrides) IsCustomImage(raw string) bool {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	segments := strings.Split(u.Path, "/")
	for _, d := range o.denylist {
		if hostMatches(host, d) || segmentMatches(segments, d) {
			return false
		}
	}
	return true
}

func hostMatches(host, entry string) bool {
	if host == "" {
		return false
	}
	if host == entry || strings.HasSuffix(host, "."+entry) {
		return true
	}
	if strings.Contains(entry, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == entry {
			return true
		}
	}
	return false
}

func segmentMatches(segments []string, entry string) bool {
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if seg == entry || strings.TrimSuffix(seg, path.Ext(seg)) == entry {
			return true
		}
	}
	return false
}

func (o *Overrides) Snapshot(current []internal.Product) OverrideSnapshot {
	snap := OverrideSnapshot{}
	for _, p := range current {
		if p.ID != "" && o.IsCustomImage(p.Image) {
			snap[p.ID] = strings.TrimSpace(p.Image)
		}
	}
	return snap
}

// Apply returns a copy of merged with snapshot images restored. Fresh images
// that are not custom are cleared.
func (o *Overrides) Apply(snap OverrideSnapshot, merged []internal.Product) ([]internal.Product, int) {
	out := make([]internal.Product, len(merged))
	preserved := 0
	for i, p := range merged {
		if img, ok := snap[p.ID]; ok {
			p.Image = img
			preserved++
		} else if !o.IsCustomImage(p.Image) {
			p.Image = ""
		}
		out[i] = p
	}
	return out, preserved
}
