package btree

// Node is the raw view of a page shared by both node kinds.
type Node []byte

func (n Node) Type() NodeType {
	return NodeType(nodeTypeField.u8(n))
}

func (n Node) IsRoot() bool {
	return isRootField.u8(n) != 0
}

func (n Node) SetRoot(root bool) {
	var v uint8
	if root {
		v = 1
	}
	isRootField.putU8(n, v)
}

// Parent is the index of the parent page; 0 for the root by convention.
func (n Node) Parent() uint32 {
	return parentField.u32(n)
}

func (n Node) SetParent(parent uint32) {
	parentField.putU32(n, parent)
}

func (n Node) reset(typ NodeType) {
	clear(n)
	nodeTypeField.putU8(n, uint8(typ))
}
