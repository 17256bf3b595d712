// Package dispatch resolves which abilities fire for a (visitor, location)
// pair, and in what order.
package dispatch

import (
	schema "github.com/hanpama/topograph/internal/schema"
)

// Attachment tells which side of the encounter declared the ability.
type Attachment string

const (
	// AttachLocation marks abilities declared on the node or edge type.
	AttachLocation Attachment = "LOCATION"
	// AttachVisitor marks abilities declared on the walker type.
	AttachVisitor Attachment = "VISITOR"
)

// Handle identifies one ability to fire: the declaring type and the
// declaration itself. Implementations are bound separately by the host.
type Handle struct {
	Owner      string
	Attachment Attachment
	Ability    *schema.Ability
}

// Resolver builds ordered ability sequences from the registry's declarations.
type Resolver struct {
	reg *schema.Registry
}

// NewResolver creates a resolver over the given registry.
func NewResolver(reg *schema.Registry) *Resolver { return &Resolver{reg: reg} }

// Resolve returns the abilities that fire when a walker of visitorType is at
// a location of locationType in the given phase, in firing order:
// location-attached abilities first, then visitor-attached ones. Within each
// side the declaring type's supertype chain is walked most-derived first,
// and abilities on the same type fire in declaration order. An empty result
// is normal - no match means no side effect, not an error.
func (r *Resolver) Resolve(visitorType, locationType string, dir schema.Direction) []Handle {
	var handles []Handle
	for _, t := range r.reg.SupertypeChain(locationType) {
		for _, a := range t.Abilities {
			if a.Direction != dir {
				continue
			}
			if r.reg.Matches(a, visitorType, visitorType, locationType) {
				handles = append(handles, Handle{Owner: t.Name, Attachment: AttachLocation, Ability: a})
			}
		}
	}
	for _, t := range r.reg.SupertypeChain(visitorType) {
		for _, a := range t.Abilities {
			if a.Direction != dir {
				continue
			}
			if r.reg.Matches(a, locationType, visitorType, locationType) {
				handles = append(handles, Handle{Owner: t.Name, Attachment: AttachVisitor, Ability: a})
			}
		}
	}
	return handles
}
