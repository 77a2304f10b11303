package jimmer

import "strings"

// RootName is the rendering of the synthetic root of every save path.
const RootName = "<root>"

// Path locates an entity inside the graphs of one save command. It is a
// value: Append returns a new path and never modifies the receiver.
type Path struct {
	segs []string
}

// Root returns the path of the root entities.
func Root() Path { return Path{} }

// PathOf returns the path made of the given association names.
func PathOf(props ...string) Path {
	return Path{segs: append([]string(nil), props...)}
}

// Append returns the path extended by the association prop.
func (p Path) Append(prop string) Path {
	segs := make([]string, len(p.segs)+1)
	copy(segs, p.segs)
	segs[len(p.segs)] = prop
	return Path{segs: segs}
}

// Parent returns the path without its last association. The parent of the
// root path is the root path.
func (p Path) Parent() Path {
	if len(p.segs) == 0 {
		return p
	}
	return Path{segs: p.segs[: len(p.segs)-1 : len(p.segs)-1]}
}

// Segments returns a copy of the association names of the path.
func (p Path) Segments() []string {
	return append([]string(nil), p.segs...)
}

// IsRoot reports whether p is the path of a root entity.
func (p Path) IsRoot() bool { return len(p.segs) == 0 }

// Last returns the last association name, or "" for the root path.
func (p Path) Last() string {
	if len(p.segs) == 0 {
		return ""
	}
	return p.segs[len(p.segs)-1]
}

// Equal reports whether p and o render identically.
func (p Path) Equal(o Path) bool {
	if len(p.segs) != len(o.segs) {
		return false
	}
	for i := range p.segs {
		if p.segs[i] != o.segs[i] {
			return false
		}
	}
	return true
}

// String renders the path as <root>.prop1.prop2.
func (p Path) String() string {
	if len(p.segs) == 0 {
		return RootName
	}
	var sb strings.Builder
	sb.WriteString(RootName)
	for _, s := range p.segs {
		sb.WriteByte('.')
		sb.WriteString(s)
	}
	return sb.String()
}
