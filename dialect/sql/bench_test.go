package sql

import "testing"

func BenchmarkFlavorUpsert(b *testing.B) {
	cols := []string{"ID", "NAME", "EDITION", "PRICE", "STORE_ID"}
	for _, f := range []Flavor{H2, Postgres, MySQL, SQLite} {
		b.Run(f.Name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				f.UpsertSQL("BOOK", cols, []string{"ID"}, cols[1:])
			}
		})
	}
}

func BenchmarkFlavorSelectTuples(b *testing.B) {
	tuples := make([][]any, 100)
	for i := range tuples {
		tuples[i] = []any{"name", i}
	}
	for _, f := range []Flavor{H2, Postgres} {
		b.Run(f.Name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				f.SelectTuples("BOOK", []string{"ID", "NAME", "EDITION"}, []string{"NAME", "EDITION"}, tuples)
			}
		})
	}
}
