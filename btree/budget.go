package btree

// PageBudget is the number of pages a tree holds after rows ascending inserts.
// The first node on a level fills completely before it splits. From then on
// every node but the last keeps exactly the left share of its split, and the
// last one grows back to full before splitting again.
func PageBudget(rows int, leafMax int, internalMax int) int {

	if rows <= 0 {
		return 1
	}

	leafLeft := (leafMax + 1) - (leafMax+1)/2

	totalKeys := internalMax + 1
	internalLeftChildren := totalKeys - 1 - (totalKeys-1)/2 + 1

	nodes := levelNodes(rows, leafMax, leafLeft)
	pages := nodes

	for nodes > 1 {
		nodes = levelNodes(nodes, internalMax+1, internalLeftChildren)
		pages += nodes
	}

	return pages
}

// levelNodes counts the nodes holding n entries when a node takes up to max
// and every split leaves left behind.
func levelNodes(n int, max int, left int) int {
	if n <= max {
		return 1
	}
	return (n-max-1)/left + 2
}
