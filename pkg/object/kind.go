package object

// Kind enumerates the object variants.
type Kind int

const (
	KindSphere Kind = iota
	KindCylinder
	KindCone
	KindSlab
	KindUnion
	KindIntersection
	KindNegation
	KindTransformer
	KindBender
	KindTwister
	KindMesh
	// KindExternal is a solid from another library.
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindCylinder:
		return "cylinder"
	case KindCone:
		return "cone"
	case KindSlab:
		return "slab"
	case KindUnion:
		return "union"
	case KindIntersection:
		return "intersection"
	case KindNegation:
		return "negation"
	case KindTransformer:
		return "transformer"
	case KindBender:
		return "bender"
	case KindTwister:
		return "twister"
	case KindMesh:
		return "mesh"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// IsComposite reports whether objects of this kind own children.
func (k Kind) IsComposite() bool {
	switch k {
	case KindUnion, KindIntersection, KindNegation, KindTransformer, KindBender, KindTwister:
		return true
	}
	return false
}
