package schema

// RootTypeName is the node type of per-principal root nodes.
const RootTypeName = "Root"

// GenericEdgeTypeName is the edge type used by untyped connections.
const GenericEdgeTypeName = "Edge"

var rootType = &Type{
	Name:        RootTypeName,
	Kind:        KindNode,
	Description: "Per-principal graph entry point",
}

var genericEdgeType = &Type{
	Name:        GenericEdgeTypeName,
	Kind:        KindEdge,
	Description: "Default edge type for untyped connections",
}
