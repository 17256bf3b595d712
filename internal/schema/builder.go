package schema

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// NewRegistry creates a registry pre-populated with the builtin types.
func NewRegistry() *Registry {
	r := &Registry{Types: map[string]*Type{}}
	r.AddType(rootType).AddType(genericEdgeType)
	return r
}

// AddType registers t, replacing any previous declaration with the same name.
func (r *Registry) AddType(t *Type) *Registry {
	r.Types[t.Name] = t
	return r
}

// NewNodeType creates a node type declaration.
func NewNodeType(name string) *Type { return &Type{Name: name, Kind: KindNode} }

// NewEdgeType creates an edge type declaration.
func NewEdgeType(name string) *Type { return &Type{Name: name, Kind: KindEdge} }

// NewWalkerType creates a walker type declaration.
func NewWalkerType(name string) *Type { return &Type{Name: name, Kind: KindWalker} }

func (t *Type) SetDescription(desc string) *Type {
	t.Description = desc
	return t
}

// Extend declares name as the supertype of t.
func (t *Type) Extend(name string) *Type {
	t.Extends = name
	return t
}

func (t *Type) AddField(f *FieldDef) *Type {
	t.Fields = append(t.Fields, f)
	return t
}

func (t *Type) AddAbility(a *Ability) *Type {
	t.Abilities = append(t.Abilities, a)
	return t
}

// SetEndpoints constrains the node types an edge of this type may connect.
// Empty slices leave the corresponding endpoint unconstrained.
func (t *Type) SetEndpoints(from, to []string) *Type {
	t.From = from
	t.To = to
	return t
}

// NewFieldDef creates a field declaration without a default.
func NewFieldDef(name string, ty cty.Type) *FieldDef {
	return &FieldDef{Name: name, Type: ty, Default: cty.NilVal}
}

func (f *FieldDef) SetDefault(v cty.Value) *FieldDef {
	f.Default = v
	return f
}

// NewAbility creates an ability declaration matching any counterpart.
func NewAbility(name string, dir Direction) *Ability {
	return &Ability{Name: name, Direction: dir, Trigger: Trigger{Mode: TriggerAny}}
}

// On restricts the trigger to the given type union.
func (a *Ability) On(types ...string) *Ability {
	a.Trigger = Trigger{Mode: TriggerUnion, Types: types}
	return a
}

// OnAll requires every listed type to be satisfied by the (visitor, location)
// pair. Only meaningful on walker-attached abilities.
func (a *Ability) OnAll(types ...string) *Ability {
	a.Trigger = Trigger{Mode: TriggerAll, Types: types}
	return a
}

// Validate checks cross-references of the whole registry: supertype chains,
// endpoint typing, trigger type references and duplicate declarations.
func (r *Registry) Validate() error {
	for name, t := range r.Types {
		if t.Extends != "" {
			super := r.Types[t.Extends]
			if super == nil {
				return fmt.Errorf("type %s extends unknown type %s", name, t.Extends)
			}
			if super.Kind != t.Kind {
				return fmt.Errorf("type %s (%s) cannot extend %s (%s)", name, t.Kind, super.Name, super.Kind)
			}
			if err := r.checkExtendsCycle(t); err != nil {
				return err
			}
		}
		if (len(t.From) > 0 || len(t.To) > 0) && t.Kind != KindEdge {
			return fmt.Errorf("type %s: endpoint constraints are only valid on edge types", name)
		}
		for _, ep := range append(append([]string{}, t.From...), t.To...) {
			if epType := r.Types[ep]; epType == nil || epType.Kind != KindNode {
				return fmt.Errorf("edge type %s: endpoint %s is not a declared node type", name, ep)
			}
		}
		fieldNames := map[string]bool{}
		for _, f := range t.Fields {
			if fieldNames[f.Name] {
				return fmt.Errorf("type %s: duplicate field %s", name, f.Name)
			}
			fieldNames[f.Name] = true
			if f.Default != cty.NilVal && !f.Default.Type().Equals(f.Type) {
				return fmt.Errorf("type %s: default for field %s does not match its declared type", name, f.Name)
			}
		}
		abilityNames := map[string]bool{}
		for _, a := range t.Abilities {
			if abilityNames[a.Name] {
				return fmt.Errorf("type %s: duplicate ability %s", name, a.Name)
			}
			abilityNames[a.Name] = true
			if a.Trigger.Mode == TriggerAll && t.Kind != KindWalker {
				return fmt.Errorf("type %s: ability %s uses an all-of trigger outside a walker type", name, a.Name)
			}
			for _, trig := range a.Trigger.Types {
				if r.Types[trig] == nil {
					return fmt.Errorf("type %s: ability %s triggers on unknown type %s", name, a.Name, trig)
				}
			}
		}
	}
	return nil
}

func (r *Registry) checkExtendsCycle(t *Type) error {
	seen := map[string]bool{t.Name: true}
	for cur := r.Types[t.Extends]; cur != nil; cur = r.Types[cur.Extends] {
		if seen[cur.Name] {
			return fmt.Errorf("type %s: supertype cycle through %s", t.Name, cur.Name)
		}
		seen[cur.Name] = true
		if cur.Extends == "" {
			break
		}
	}
	return nil
}
