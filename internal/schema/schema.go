package schema

import "github.com/zclconf/go-cty/cty"

// Registry holds all declared node, edge and walker types keyed by name.
// Every entity created by the graph store and every walker spawned by the
// scheduler is validated against it.
type Registry struct {
	Types map[string]*Type // All named types keyed by name
}

// Kind discriminates what a declared type attaches to.
type Kind string

const (
	KindNode   Kind = "NODE"
	KindEdge   Kind = "EDGE"
	KindWalker Kind = "WALKER"
)

// Type is a named archetype: a node, edge or walker declaration.
type Type struct {
	Name        string
	Kind        Kind
	Description string
	Extends     string      // declared supertype name, empty for none
	Fields      []*FieldDef // declaration order
	Abilities   []*Ability  // declaration order
	From        []string    // For EDGE: allowed source node types (empty = any)
	To          []string    // For EDGE: allowed target node types (empty = any)
}

// FieldDef declares a named typed field on a node, edge or walker type.
type FieldDef struct {
	Name    string
	Type    cty.Type
	Default cty.Value // cty.NilVal when no default is declared
}

// Direction is the trigger phase of an ability.
type Direction string

const (
	DirEntry Direction = "ENTRY"
	DirExit  Direction = "EXIT"
)

// TriggerMode describes how a trigger's type list is interpreted.
type TriggerMode string

const (
	// TriggerAny matches every visitor/location; the type list is empty.
	TriggerAny TriggerMode = "ANY"
	// TriggerUnion matches when the counterpart conforms to at least one
	// listed type. A single-type trigger is a one-element union.
	TriggerUnion TriggerMode = "UNION"
	// TriggerAll matches when every listed type is satisfied by the current
	// (visitor, location) pair. Only valid on walker-attached abilities.
	TriggerAll TriggerMode = "ALL"
)

// Trigger is the type filter of an ability declaration.
type Trigger struct {
	Mode  TriggerMode
	Types []string
}

// Ability declares a named handler on a type. The implementation is bound
// separately by the host; the registry carries declarations only.
type Ability struct {
	Name      string
	Direction Direction
	Trigger   Trigger
}

// GetType returns the declared type with the given name (nil if absent).
func (r *Registry) GetType(name string) *Type { return r.Types[name] }

// SupertypeChain returns the type itself followed by its declared supertypes,
// most-derived first. Unknown names yield a nil chain.
func (r *Registry) SupertypeChain(name string) []*Type {
	var chain []*Type
	for t := r.Types[name]; t != nil; t = r.Types[t.Extends] {
		chain = append(chain, t)
		if t.Extends == "" {
			break
		}
	}
	return chain
}

// Conforms reports whether typeName equals want or declares it somewhere in
// its supertype chain.
func (r *Registry) Conforms(typeName, want string) bool {
	for _, t := range r.SupertypeChain(typeName) {
		if t.Name == want {
			return true
		}
	}
	return false
}

// EffectiveFields returns the field declarations of a type including
// inherited ones, base-most first. A field redeclared in a subtype shadows
// the inherited declaration in place.
func (r *Registry) EffectiveFields(name string) []*FieldDef {
	chain := r.SupertypeChain(name)
	var fields []*FieldDef
	seen := map[string]int{}
	for i := len(chain) - 1; i >= 0; i-- {
		for _, f := range chain[i].Fields {
			if at, ok := seen[f.Name]; ok {
				fields[at] = f
				continue
			}
			seen[f.Name] = len(fields)
			fields = append(fields, f)
		}
	}
	return fields
}

// FieldDef resolves a single field declaration on a type, honoring
// inheritance and shadowing.
func (r *Registry) FieldDef(typeName, field string) *FieldDef {
	for _, f := range r.EffectiveFields(typeName) {
		if f.Name == field {
			return f
		}
	}
	return nil
}

// Matches reports whether the ability's trigger accepts the current
// (visitor, location) pair. counterpart is the type on the other side of the
// attachment: the visitor type for location-attached abilities, the location
// type for walker-attached ones.
func (r *Registry) Matches(a *Ability, counterpart, visitorType, locationType string) bool {
	switch a.Trigger.Mode {
	case TriggerAny:
		return true
	case TriggerUnion:
		for _, want := range a.Trigger.Types {
			if r.Conforms(counterpart, want) {
				return true
			}
		}
		return false
	case TriggerAll:
		for _, want := range a.Trigger.Types {
			if !r.Conforms(visitorType, want) && !r.Conforms(locationType, want) {
				return false
			}
		}
		return true
	}
	return false
}
