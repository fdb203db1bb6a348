package catalog

import (
	"strconv"

	"catalogsync/internal"
)

type Taxonomy struct {
	sections   map[int]string
	groups     map[string]string
	groupsByID map[int]string
	brands     map[int]string
	genres     map[int]string
}

func NewTaxonomy(sections []internal.TaxonomyRecord, groups []internal.GroupRecord, brands, genres []internal.TaxonomyRecord) *Taxonomy {
	t := &Taxonomy{
		sections:   names(sections),
		groups:     map[string]string{},
		groupsByID: map[int]string{},
		brands:     names(brands),
		genres:     names(genres),
	}
	for _, g := range groups {
		if g.Description == "" {
			continue
		}
		t.groups[groupKey(g.SectionID, g.ID)] = g.Description
		if _, ok := t.groupsByID[g.ID]; !ok {
			t.groupsByID[g.ID] = g.Description
		}
	}
	return t
}

func names(records []internal.TaxonomyRecord) map[int]string {
	out := make(map[int]string, len(records))
	for _, r := range records {
		if r.Description == "" {
			continue
		}
		if _, ok := out[r.ID]; !ok {
			out[r.ID] = r.Description
		}
	}
	return out
}

func groupKey(sectionID, groupID int) string {
	return strconv.Itoa(sectionID) + "-" + strconv.Itoa(groupID)
}

func (t *Taxonomy) Section(id *int) string {
	return lookup(t.sections, id)
}

func (t *Taxonomy) Brand(id *int) string {
	return lookup(t.brands, id)
}

func (t *Taxonomy) Genre(id *int) string {
	return lookup(t.genres, id)
}

// Group resolves by section and group id, then by group id alone.
func (t *Taxonomy) Group(sectionID, groupID *int) string {
	if groupID == nil {
		return ""
	}
	if sectionID != nil {
		if name, ok := t.groups[groupKey(*sectionID, *groupID)]; ok {
			return name
		}
	}
	return t.groupsByID[*groupID]
}

func lookup(m map[int]string, id *int) string {
	if id == nil {
		return ""
	}
	return m[*id]
}
