package linkage

import (
	"sort"
	"strings"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
)

// FilterAll disables a service or status predicate.
const FilterAll = "all"

// Filter selects groups from a hierarchy. Empty fields behave like FilterAll.
type Filter struct {
	Service string // StreamLive | StreamLink | all
	Status  string // running | idle | stopped | error | unknown | all
	Keyword string // case-insensitive substring of name or id
}

func (f Filter) keyword(r *resource.Resource) bool {
	if f.Keyword == "" {
		return true
	}
	kw := strings.ToLower(f.Keyword)
	return strings.Contains(strings.ToLower(r.Name), kw) ||
		strings.Contains(strings.ToLower(r.ID), kw)
}

// "stopped" also selects idle resources.
func (f Filter) status(r *resource.Resource) bool {
	switch f.Status {
	case "", FilterAll:
		return true
	case string(resource.StatusStopped):
		return r.Status == resource.StatusStopped || r.Status == resource.StatusIdle
	}
	return string(r.Status) == f.Status
}

func (f Filter) service(r *resource.Resource) bool {
	if f.Service == "" || f.Service == FilterAll {
		return true
	}
	return r.Service == f.Service
}

// Match reports whether r passes all three predicates on its own.
func (f Filter) Match(r *resource.Resource) bool {
	return f.keyword(r) && f.status(r) && f.service(r)
}

// FilterHierarchy applies f to groups and returns the surviving groups sorted
// by parent name.
//
// When the parent matches the keyword, children are filtered by status and
// service only; the group is kept if the parent itself passes status and
// service or if any child remains. When the parent does not match the
// keyword, children must pass all three predicates and the group is kept only
// if at least one child remains.
func FilterHierarchy(groups []resource.Group, f Filter) []resource.Group {
	out := make([]resource.Group, 0, len(groups))

	for _, g := range groups {
		children := make([]*resource.Resource, 0, len(g.Children))

		if f.keyword(g.Parent) {
			for _, c := range g.Children {
				if f.status(c) && f.service(c) {
					children = append(children, c)
				}
			}
			if (f.status(g.Parent) && f.service(g.Parent)) || len(children) > 0 {
				out = append(out, resource.Group{Parent: g.Parent, Children: children})
			}
			continue
		}

		for _, c := range g.Children {
			if f.Match(c) {
				children = append(children, c)
			}
		}
		if len(children) > 0 {
			out = append(out, resource.Group{Parent: g.Parent, Children: children})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Parent.Name < out[j].Parent.Name
	})
	return out
}
