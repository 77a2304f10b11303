// Package loader reads entity models and entity graphs from YAML documents.
package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/TrueNine/jimmer/schema"
	"github.com/TrueNine/jimmer/schema/edge"
	"github.com/TrueNine/jimmer/schema/field"
)

// ModelDoc is the YAML form of an entity model.
//
//	types:
//	  - name: TreeNode
//	    id: {name: id, type: int64, column: NODE_ID}
//	    fields:
//	      - {name: name, type: string}
//	    assocs:
//	      - {name: parent, target: TreeNode, unique: true, nullable: true}
//	      - {name: childNodes, target: TreeNode, mapped_by: parent}
//	    key: [name, parent]
type ModelDoc struct {
	Types []TypeDoc `yaml:"types"`
}

// TypeDoc describes one entity type.
type TypeDoc struct {
	Name   string     `yaml:"name"`
	Table  string     `yaml:"table"`
	ID     FieldDoc   `yaml:"id"`
	Fields []FieldDoc `yaml:"fields"`
	Assocs []AssocDoc `yaml:"assocs"`
	Key    []string   `yaml:"key"`
}

// FieldDoc describes a scalar property.
type FieldDoc struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Column   string `yaml:"column"`
	Nullable bool   `yaml:"nullable"`
}

// AssocDoc describes an association property. MappedBy makes it the
// inverse of the named association of the target.
type AssocDoc struct {
	Name          string            `yaml:"name"`
	Target        string            `yaml:"target"`
	Unique        bool              `yaml:"unique"`
	Nullable      bool              `yaml:"nullable"`
	MappedBy      string            `yaml:"mapped_by"`
	Column        string            `yaml:"column"`
	Table         string            `yaml:"table"`
	Columns       []string          `yaml:"columns"`
	Discriminator *DiscriminatorDoc `yaml:"discriminator"`
}

// DiscriminatorDoc restricts the junction rows of an association.
type DiscriminatorDoc struct {
	Column string `yaml:"column"`
	Value  any    `yaml:"value"`
}

// LoadModel reads the model document at path.
func LoadModel(path string) (*schema.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return ParseModel(data)
}

// ParseModel builds the entity model described by data.
func ParseModel(data []byte) (*schema.Model, error) {
	var doc ModelDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return doc.Build()
}

// Build resolves the document into a model.
func (d *ModelDoc) Build() (*schema.Model, error) {
	if len(d.Types) == 0 {
		return nil, fmt.Errorf("loader: model without types")
	}
	defs := make([]*schema.Def, 0, len(d.Types))
	for _, t := range d.Types {
		def, err := t.def()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return schema.NewModel(defs...)
}

func (t *TypeDoc) def() (*schema.Def, error) {
	def := schema.Entity(t.Name)
	if t.Table != "" {
		def.Table(t.Table)
	}
	if t.ID.Name == "" {
		return nil, fmt.Errorf("loader: type %s has no id", t.Name)
	}
	id, err := t.ID.field(t.Name)
	if err != nil {
		return nil, err
	}
	def.ID(id)
	for _, f := range t.Fields {
		fb, err := f.field(t.Name)
		if err != nil {
			return nil, err
		}
		def.Fields(fb)
	}
	for _, a := range t.Assocs {
		e, err := a.edge(t.Name)
		if err != nil {
			return nil, err
		}
		def.Edges(e)
	}
	if len(t.Key) > 0 {
		def.Key(t.Key...)
	}
	return def, nil
}

func (f *FieldDoc) field(owner string) (*field.Builder, error) {
	typ, err := field.ParseType(f.Type)
	if err != nil {
		return nil, fmt.Errorf("loader: property %s.%s: %w", owner, f.Name, err)
	}
	b := field.Of(f.Name, typ)
	if f.Column != "" {
		b.StorageKey(f.Column)
	}
	if f.Nullable {
		b.Nillable()
	}
	return b, nil
}

func (a *AssocDoc) edge(owner string) (schema.Edge, error) {
	if a.Target == "" {
		return nil, fmt.Errorf("loader: association %s.%s has no target", owner, a.Name)
	}
	if a.MappedBy != "" {
		b := edge.From(a.Name, a.Target).Ref(a.MappedBy)
		if a.Unique {
			b.Unique()
		}
		return b, nil
	}
	b := edge.To(a.Name, a.Target)
	if a.Unique {
		b.Unique()
	}
	if a.Nullable {
		b.Nillable()
	}
	var opts []edge.StorageOption
	if a.Column != "" {
		opts = append(opts, edge.Column(a.Column))
	}
	if a.Table != "" {
		opts = append(opts, edge.Table(a.Table))
	}
	switch len(a.Columns) {
	case 0:
	case 2:
		opts = append(opts, edge.Columns(a.Columns[0], a.Columns[1]))
	default:
		return nil, fmt.Errorf("loader: association %s.%s needs an owner and a target column", owner, a.Name)
	}
	if len(opts) > 0 {
		b.StorageKey(opts...)
	}
	if a.Discriminator != nil {
		b.Discriminator(a.Discriminator.Column, a.Discriminator.Value)
	}
	return b, nil
}
