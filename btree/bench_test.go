package btree

import "testing"

func BenchmarkLeafFind(b *testing.B) {

	leaf := NewLeaf(testSchema.RowSize())
	for i := 0; i < leaf.MaxCells(); i++ {
		leaf.Insert(uint32(i*3), row(int64(i), "bench"), testSchema)
	}

	key := uint32(0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		leaf.Find(key % uint32(leaf.MaxCells()*3))
		key += 7
	}
}

func BenchmarkTreeInsertAscending(b *testing.B) {

	values := row(1, "bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store := newMemStore(64)
		tree, _ := New(store, testSchema, Options{})
		tree.Init()

		for i := 0; i < 5000; i++ {
			if err := tree.Insert(uint32(i), values); err != nil {
				b.Fatalf("insert %d: %v", i, err)
			}
		}
	}
}
