// Package edge provides fluent builders for the association properties of
// an entity type.
//
// # Owning Associations
//
// edge.To declares an association stored on the declaring side. A unique
// association is a foreign key column of the declaring table:
//
//	edge.To("parent", "TreeNode").Unique().Nillable()          // PARENT_ID
//	edge.To("store", "BookStore").Unique().StorageKey(edge.Column("STORE_ID"))
//
// Any other association is stored in a junction table:
//
//	edge.To("authors", "Author")                                // BOOK_AUTHOR_MAPPING(BOOK_ID, AUTHOR_ID)
//	edge.To("vipCustomers", "Customer").
//	    StorageKey(
//	        edge.Table("shop_customer_mapping"),
//	        edge.Columns("shop_id", "customer_id"),
//	    ).
//	    Discriminator("type", "VIP")
//
// # Inverse Associations
//
// edge.From declares the other side of an owning association. The inverse
// of a foreign key association lists the entities pointing at the
// declaring one; saving it binds their foreign key to the declaring entity:
//
//	edge.From("childNodes", "TreeNode").Ref("parent")
//
// The inverse of a junction table association shares its table with the
// columns swapped.
package edge
