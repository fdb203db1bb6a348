package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"catalogsync/internal"
)

func TestIsCustomImage(t *testing.T) {
	o := NewOverrides([]string{"images.unsplash.com", "placeholder"})

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "curated cdn", url: "https://cdn.shop.test/p/7.jpg", want: true},
		{name: "empty", url: "", want: false},
		{name: "blank", url: "  ", want: false},
		{name: "denied host", url: "https://images.unsplash.com/photo-1?w=400", want: false},
		{name: "denied host subdomain", url: "https://eu.images.unsplash.com/a.jpg", want: false},
		{name: "host label", url: "https://via.placeholder.com/300", want: false},
		{name: "path segment", url: "https://cdn.shop.test/Placeholder/item.png", want: false},
		{name: "file name", url: "https://cdn.shop.test/img/placeholder.jpg", want: false},
		{name: "segment prefix only", url: "https://cdn.test/placeholders-removed/x.jpg", want: true},
		{name: "file name prefix only", url: "https://cdn.test/img/placeholder-free.jpg", want: true},
		{name: "lookalike host", url: "https://notimages.unsplash.community/x.jpg", want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, o.IsCustomImage(tc.url))
		})
	}
}

func TestApplyKeepsCuratedPathLookalike(t *testing.T) {
	o := NewOverrides([]string{"images.unsplash.com", "placeholder"})
	curated := "https://cdn.test/placeholders-removed/x.jpg"

	snap := o.Snapshot([]internal.Product{{ID: "9", Image: curated}})
	out, preserved := o.Apply(snap, []internal.Product{{ID: "9", Image: "https://images.unsplash.com/x.jpg"}})

	assert.Equal(t, 1, preserved)
	assert.Equal(t, curated, out[0].Image)
}

func TestSnapshotAndApply(t *testing.T) {
	o := NewOverrides([]string{"images.unsplash.com", "placeholder"})
	current := []internal.Product{
		{ID: "1", Image: "https://cdn.shop.test/custom-1.jpg"},
		{ID: "2", Image: "https://images.unsplash.com/stock.jpg"},
		{ID: "3", Image: ""},
	}
	snap := o.Snapshot(current)
	assert.Equal(t, OverrideSnapshot{"1": "https://cdn.shop.test/custom-1.jpg"}, snap)

	merged := []internal.Product{
		{ID: "1", Image: "https://erp.test/img/1.jpg"},
		{ID: "2", Image: "https://images.unsplash.com/other.jpg"},
		{ID: "3", Image: "https://erp.test/img/3.jpg"},
		{ID: "4", Image: ""},
	}
	out, preserved := o.Apply(snap, merged)

	assert.Equal(t, 1, preserved)
	assert.Equal(t, "https://cdn.shop.test/custom-1.jpg", out[0].Image)
	assert.Equal(t, "", out[1].Image)
	assert.Equal(t, "https://erp.test/img/3.jpg", out[2].Image)
	assert.Equal(t, "", out[3].Image)
	assert.Equal(t, "https://erp.test/img/1.jpg", merged[0].Image)
}
