// Package schema describes the entity types a save command writes: their
// table, id property, scalar properties, business key and associations.
//
// A Model is built once from definitions and shared read-only by every
// save command:
//
//	model, err := schema.NewModel(
//		schema.Entity("BookStore").
//			ID(field.Int64("id")).
//			Fields(field.String("name")).
//			Key("name"),
//		schema.Entity("Book").
//			ID(field.Int64("id")).
//			Fields(
//				field.String("name"),
//				field.Int("edition"),
//				field.Float64("price"),
//			).
//			Edges(
//				edge.To("store", "BookStore").Unique().Nillable(),
//				edge.To("authors", "Author"),
//			).
//			Key("name", "edition"),
//		schema.Entity("Author").ID(field.Int64("id")).Fields(field.String("firstName")),
//	)
//
// # Storage Names
//
// Unless overridden, tables and columns use the upper snake case of the
// type and property names. To-one associations are stored in a <NAME>_ID
// column; other owning associations in a <OWNER>_<TARGET>_MAPPING junction
// table with <OWNER>_ID and <TARGET>_ID columns.
package schema
