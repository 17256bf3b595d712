package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Declaration file layout:
//
//	node "Task" {
//	  extends = "Item"
//	  field "priority" {
//	    type    = number
//	    default = 0
//	  }
//	  ability "collect" {
//	    direction = "entry"
//	    on        = ["Auditor"]
//	  }
//	}
//	edge "Owns" {
//	  from = ["Root"]
//	  to   = ["Task"]
//	}
//	walker "Auditor" {
//	  ability "scan" {
//	    direction = "entry"
//	    on        = ["Task"]
//	  }
//	}

type hclFile struct {
	Nodes   []*hclType `hcl:"node,block"`
	Edges   []*hclType `hcl:"edge,block"`
	Walkers []*hclType `hcl:"walker,block"`
}

type hclType struct {
	Name        string        `hcl:"name,label"`
	Description string        `hcl:"description,optional"`
	Extends     string        `hcl:"extends,optional"`
	From        []string      `hcl:"from,optional"`
	To          []string      `hcl:"to,optional"`
	Fields      []*hclField   `hcl:"field,block"`
	Abilities   []*hclAbility `hcl:"ability,block"`
}

type hclField struct {
	Name    string         `hcl:"name,label"`
	Type    hcl.Expression `hcl:"type"`
	Default hcl.Expression `hcl:"default,optional"`
}

type hclAbility struct {
	Name      string   `hcl:"name,label"`
	Direction string   `hcl:"direction"`
	On        []string `hcl:"on,optional"`
	Match     string   `hcl:"match,optional"` // "union" (default) or "all"
}

// LoadDir parses every .hcl file under dir (non-recursive, lexical order)
// into a validated registry.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading declaration dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".hcl") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl declaration files in %s", dir)
	}

	reg := NewRegistry()
	parser := hclparse.NewParser()
	for _, path := range files {
		hclF, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %s: %w", path, diags)
		}
		var parsed hclFile
		if diags := gohcl.DecodeBody(hclF.Body, nil, &parsed); diags.HasErrors() {
			return nil, fmt.Errorf("decoding %s: %w", path, diags)
		}
		if err := addDeclarations(reg, &parsed); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func addDeclarations(reg *Registry, f *hclFile) error {
	for _, decl := range f.Nodes {
		t, err := buildType(NewNodeType(decl.Name), decl)
		if err != nil {
			return err
		}
		reg.AddType(t)
	}
	for _, decl := range f.Edges {
		t, err := buildType(NewEdgeType(decl.Name), decl)
		if err != nil {
			return err
		}
		t.SetEndpoints(decl.From, decl.To)
		reg.AddType(t)
	}
	for _, decl := range f.Walkers {
		t, err := buildType(NewWalkerType(decl.Name), decl)
		if err != nil {
			return err
		}
		reg.AddType(t)
	}
	return nil
}

func buildType(t *Type, decl *hclType) (*Type, error) {
	t.SetDescription(decl.Description)
	if decl.Extends != "" {
		t.Extend(decl.Extends)
	}
	for _, fd := range decl.Fields {
		f, err := buildField(t.Name, fd)
		if err != nil {
			return nil, err
		}
		t.AddField(f)
	}
	for _, ad := range decl.Abilities {
		a, err := buildAbility(t.Name, ad)
		if err != nil {
			return nil, err
		}
		t.AddAbility(a)
	}
	return t, nil
}

func buildField(typeName string, decl *hclField) (*FieldDef, error) {
	ty, err := typeKeyword(decl.Type)
	if err != nil {
		return nil, fmt.Errorf("type %s, field %s: %w", typeName, decl.Name, err)
	}
	f := NewFieldDef(decl.Name, ty)
	if decl.Default != nil {
		v, diags := decl.Default.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("type %s, field %s: default: %w", typeName, decl.Name, diags)
		}
		if !v.IsNull() {
			converted, err := convert.Convert(v, ty)
			if err != nil {
				return nil, fmt.Errorf("type %s, field %s: default: %w", typeName, decl.Name, err)
			}
			f.SetDefault(converted)
		}
	}
	return f, nil
}

func buildAbility(typeName string, decl *hclAbility) (*Ability, error) {
	var dir Direction
	switch decl.Direction {
	case "entry":
		dir = DirEntry
	case "exit":
		dir = DirExit
	default:
		return nil, fmt.Errorf("type %s, ability %s: direction must be \"entry\" or \"exit\"", typeName, decl.Name)
	}
	a := NewAbility(decl.Name, dir)
	switch decl.Match {
	case "", "union":
		if len(decl.On) > 0 {
			a.On(decl.On...)
		}
	case "all":
		if len(decl.On) == 0 {
			return nil, fmt.Errorf("type %s, ability %s: match = \"all\" requires a non-empty on list", typeName, decl.Name)
		}
		a.OnAll(decl.On...)
	default:
		return nil, fmt.Errorf("type %s, ability %s: match must be \"union\" or \"all\"", typeName, decl.Name)
	}
	return a, nil
}

// typeKeyword converts a bare type keyword expression (string, number, bool)
// into its cty type. Complex type constructors are not accepted in
// declaration files.
func typeKeyword(expr hcl.Expression) (cty.Type, error) {
	traversal, diags := hcl.AbsTraversalForExpr(expr)
	if diags.HasErrors() || len(traversal) != 1 {
		return cty.NilType, fmt.Errorf("field type must be a simple keyword like string, number or bool")
	}
	switch traversal.RootName() {
	case "string":
		return cty.String, nil
	case "number":
		return cty.Number, nil
	case "bool":
		return cty.Bool, nil
	default:
		return cty.NilType, fmt.Errorf("unsupported field type %q", traversal.RootName())
	}
}
