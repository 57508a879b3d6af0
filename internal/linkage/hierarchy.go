package linkage

import "github.com/edirooss/ingestwatch/internal/domain/resource"

// BuildHierarchy partitions resources into one group per channel (in listing
// order) holding the flows linked into it, followed by a singleton group for
// every flow no channel claimed.
//
// A flow linked to several channels is attached to the first one listed.
// Resources whose kind is not channel are handled as flows.
func (m Matcher) BuildHierarchy(resources []*resource.Resource) []resource.Group {
	var channels, flows []*resource.Resource
	for _, r := range resources {
		if r == nil {
			continue
		}
		if r.IsChannel() {
			channels = append(channels, r)
		} else {
			flows = append(flows, r)
		}
	}

	groups := make([]resource.Group, 0, len(channels)+len(flows))
	assigned := make(map[string]struct{}, len(flows))

	for _, ch := range channels {
		linked := m.FindLinkedFlows(ch, flows, assigned)
		for _, f := range linked {
			assigned[f.ID] = struct{}{}
		}
		if linked == nil {
			linked = []*resource.Resource{}
		}
		groups = append(groups, resource.Group{Parent: ch, Children: linked})
	}

	for _, f := range flows {
		if _, ok := assigned[f.ID]; ok {
			continue
		}
		groups = append(groups, resource.Group{Parent: f, Children: []*resource.Resource{}})
	}
	return groups
}
