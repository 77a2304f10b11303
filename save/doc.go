// Package save writes entity graphs to a relational database.
//
// A save command takes root entities, walks their associations and runs
// the statements needed to persist every reachable entity, in an order
// where referenced rows are written before the rows referencing them:
//
//	client, err := save.NewClient(model, sql.Postgres,
//		save.WithIDGenerator("", save.Identity()),
//		save.WithTranslators(jimmer.OnKind(jimmer.NotUnique, translator)),
//	)
//	if err != nil {
//		return err
//	}
//	tx, err := drv.Tx(ctx)
//	if err != nil {
//		return err
//	}
//	node := save.New("TreeNode").
//		Set("name", "Food").
//		Set("parent", save.Ref("TreeNode", 1))
//	res, err := client.Save(ctx, save.NewSQLExecutor(tx, sql.Postgres), []*save.Entity{node},
//		save.WithMode(save.InsertOnly),
//	)
//
// Entities of the same type written by the same kind of statement are
// grouped into one statement with several parameter rows, whatever root
// or association they were reached from.
//
// When a statement fails on a unique or foreign key constraint, the
// command runs read-only queries to find the offending id, business key
// or association target and returns a *jimmer.SaveError carrying the path
// of the offending entity. Translators registered on the client or on the
// command may replace it.
package save
