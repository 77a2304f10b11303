package loader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/TrueNine/jimmer/save"
	"github.com/TrueNine/jimmer/schema"
)

// Graph is one save command read from a graph document.
//
//	type: Book
//	mode: upsert
//	entities:
//	  - name: GraphQL in Action
//	    edition: 3
//	    store: 2           # reference by id
//	    authors:
//	      - &alice {firstName: Alice}
//	  - name: Learning GraphQL
//	    edition: 1
//	    authors: [*alice]  # same entity
type Graph struct {
	// Source names the document, "file#n" with n counted from 1.
	Source string
	// Mode is the save mode of the document, empty for the default.
	Mode  string
	Roots []*save.Entity
}

// LoadGraphs reads every document of the graph file at path.
func LoadGraphs(path string, model *schema.Model) ([]*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	defer f.Close()
	return ParseGraphs(f, path, model)
}

// ParseGraphs reads the documents of a YAML stream, one Graph each.
func ParseGraphs(r io.Reader, source string, model *schema.Model) ([]*Graph, error) {
	var (
		graphs []*Graph
		dec    = yaml.NewDecoder(r)
	)
	for i := 1; ; i++ {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		name := fmt.Sprintf("%s#%d", source, i)
		if err != nil {
			return nil, fmt.Errorf("parse graph %s: %w", name, err)
		}
		g, err := graph(&doc, name, model)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}

// graph reads one document. Its nodes are walked in place so that every
// alias points into the same tree.
func graph(doc *yaml.Node, name string, model *schema.Model) (*Graph, error) {
	b := &builder{source: name, seen: make(map[*yaml.Node]*save.Entity)}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, b.errorf(doc, "expected a mapping")
	}
	var (
		root     = doc.Content[0]
		g        = &Graph{Source: name}
		typeName string
		entities *yaml.Node
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		switch k.Value {
		case "type":
			typeName = v.Value
		case "mode":
			g.Mode = v.Value
		case "entities":
			entities = v
		default:
			return nil, b.errorf(k, "unknown key %q", k.Value)
		}
	}
	typ, ok := model.Type(typeName)
	if !ok {
		return nil, b.errorf(root, "unknown entity type %q", typeName)
	}
	if entities == nil || entities.Kind != yaml.SequenceNode {
		return nil, b.errorf(root, "expected a list of entities")
	}
	for _, n := range entities.Content {
		e, err := b.entity(typ, n)
		if err != nil {
			return nil, err
		}
		g.Roots = append(g.Roots, e)
	}
	return g, nil
}

// builder turns the nodes of one document into entities. Aliases of the
// same anchor become the same entity.
type builder struct {
	source string
	seen   map[*yaml.Node]*save.Entity
}

func (b *builder) entity(typ *schema.Type, n *yaml.Node) (*save.Entity, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if e, ok := b.seen[n]; ok {
		if e.Type() != typ.Name {
			return nil, b.errorf(n, "%s is used as %s", e.Type(), typ.Name)
		}
		return e, nil
	}
	var e *save.Entity
	switch n.Kind {
	case yaml.ScalarNode:
		id, err := scalar(n)
		if err != nil {
			return nil, b.errorf(n, "%v", err)
		}
		e = save.Ref(typ.Name, id)
	case yaml.MappingNode:
		e = save.New(typ.Name)
		b.seen[n] = e
		for i := 0; i+1 < len(n.Content); i += 2 {
			if err := b.prop(typ, e, n.Content[i].Value, n.Content[i+1]); err != nil {
				return nil, err
			}
		}
	default:
		return nil, b.errorf(n, "expected an id or an object of %s", typ.Name)
	}
	b.seen[n] = e
	return e, nil
}

func (b *builder) prop(typ *schema.Type, e *save.Entity, name string, v *yaml.Node) error {
	if name == typ.ID.Name {
		id, err := scalar(v)
		if err != nil {
			return b.errorf(v, "id of %s: %v", typ.Name, err)
		}
		e.SetID(id)
		return nil
	}
	a, ok := typ.Assoc(name)
	if !ok {
		var value any
		if err := v.Decode(&value); err != nil {
			return b.errorf(v, "property %s.%s: %v", typ.Name, name, err)
		}
		e.Set(name, value)
		return nil
	}
	if v.Tag == "!!null" {
		e.Set(name, nil)
		return nil
	}
	if a.Unique {
		t, err := b.entity(a.Target, v)
		if err != nil {
			return err
		}
		e.Set(name, t)
		return nil
	}
	if v.Kind == yaml.AliasNode {
		v = v.Alias
	}
	if v.Kind != yaml.SequenceNode {
		return b.errorf(v, "association %s.%s expects a list", typ.Name, name)
	}
	list := make([]*save.Entity, 0, len(v.Content))
	for _, c := range v.Content {
		t, err := b.entity(a.Target, c)
		if err != nil {
			return err
		}
		list = append(list, t)
	}
	e.Set(name, list)
	return nil
}

func (b *builder) errorf(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("loader: %s:%d: %s", b.source, n.Line, fmt.Sprintf(format, args...))
}

func scalar(n *yaml.Node) (any, error) {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return nil, fmt.Errorf("expected a scalar value")
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
