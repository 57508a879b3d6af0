// Package linkage infers which transport flows feed which channels by
// comparing flow output endpoints with channel input endpoints, and groups a
// flat resource listing into channel-rooted topology.
package linkage

import (
	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/pkg/endpoint"
)

// DefaultMinStreamKeyLength is the shortest stream key accepted by the
// stream-key rule.
const DefaultMinStreamKeyLength = 10

// Matcher decides whether two endpoint strings refer to the same transport
// path. The zero value uses DefaultMinStreamKeyLength. Matcher holds no
// mutable state and is safe for concurrent use.
type Matcher struct {
	MinStreamKeyLength int
}

func NewMatcher(minStreamKeyLength int) Matcher {
	return Matcher{MinStreamKeyLength: minStreamKeyLength}
}

func (m Matcher) minKeyLen() int {
	if m.MinStreamKeyLength <= 0 {
		return DefaultMinStreamKeyLength
	}
	return m.MinStreamKeyLength
}

// IsMatch reports whether a flow output endpoint and a channel input endpoint
// point at the same path. Normalized forms are compared first; failing that,
// both sides must yield the same stream key of at least the minimum length
// (hosts are often rewritten by load balancers between the two views).
func (m Matcher) IsMatch(output, input string) bool {
	if output == "" || input == "" {
		return false
	}
	if endpoint.Normalize(output) == endpoint.Normalize(input) {
		return true
	}

	outKey := endpoint.StreamKey(output)
	if outKey == "" || len(outKey) < m.minKeyLen() {
		return false
	}
	return outKey == endpoint.StreamKey(input)
}

// Linked reports whether any of flow's outputs matches any of channel's
// input endpoints.
func (m Matcher) Linked(channel, flow *resource.Resource) bool {
	for _, out := range flow.Endpoints {
		for _, in := range channel.Endpoints {
			if m.IsMatch(out, in) {
				return true
			}
		}
	}
	return false
}

// FindLinkedFlows returns the flows (in input order) linked into channel,
// skipping ids present in exclude. exclude may be nil.
func (m Matcher) FindLinkedFlows(channel *resource.Resource, flows []*resource.Resource, exclude map[string]struct{}) []*resource.Resource {
	var linked []*resource.Resource
	for _, f := range flows {
		if _, skip := exclude[f.ID]; skip {
			continue
		}
		if m.Linked(channel, f) {
			linked = append(linked, f)
		}
	}
	return linked
}
