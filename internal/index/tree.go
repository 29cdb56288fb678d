package index

type NodeID int

const NoParent NodeID = -1

// Node is an element of a Forest. Children holds ids of nodes owned by this
// node; Parent is a back-reference into the same arena.
type Node struct {
	ID       NodeID
	Kind     LineKind
	Label    string
	Line     int
	Checked  bool
	Level    int
	Parent   NodeID
	Children []NodeID
}

func (n *Node) IsCheckbox() bool {
	return n.Kind == LineCheckbox
}

// Forest stores every node in a flat arena. Roots lists top-level nodes in
// document order.
type Forest struct {
	Nodes []Node
	Roots []NodeID

	byLine map[int]NodeID
}

// TreeItem is the nested form of a node, used for JSON output.
type TreeItem struct {
	Label    string     `json:"label"`
	Line     int        `json:"line"`
	Kind     LineKind   `json:"kind"`
	Level    int        `json:"level"`
	Checked  bool       `json:"checked"`
	Children []TreeItem `json:"children,omitempty"`
}

func BuildText(text string) *Forest {
	return Build(Scan(text))
}

// Build turns the ordered candidates into a forest with one stack of open
// ancestors shared by headers and checkboxes. Entries whose key is not
// smaller than the incoming key are popped; the remaining top is the
// nearest preceding node with a strictly smaller key. A checkbox before any
// header, or one with no open ancestor, lands at the root.
func Build(cands []Candidate) *Forest {
	f := &Forest{Nodes: make([]Node, 0, len(cands))}
	stack := make([]NodeID, 0, 16)
	for _, c := range cands {
		for len(stack) > 0 && f.Nodes[stack[len(stack)-1]].Level >= c.Key {
			stack = stack[:len(stack)-1]
		}
		parent := NoParent
		if len(stack) > 0 {
			parent = stack[len(stack)-1]
		}
		id := f.add(Node{
			Kind:    c.Kind,
			Label:   c.Label,
			Line:    c.Line,
			Checked: c.Checked,
			Level:   c.Key,
		}, parent)
		stack = append(stack, id)
	}
	return f
}

func (f *Forest) add(n Node, parent NodeID) NodeID {
	id := NodeID(len(f.Nodes))
	n.ID = id
	n.Parent = parent
	n.Children = nil
	f.Nodes = append(f.Nodes, n)
	if parent == NoParent {
		f.Roots = append(f.Roots, id)
	} else {
		f.Nodes[parent].Children = append(f.Nodes[parent].Children, id)
	}
	f.byLine = nil
	return id
}

func (f *Forest) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(f.Nodes) {
		return nil
	}
	return &f.Nodes[id]
}

func (f *Forest) Len() int {
	return len(f.Nodes)
}

// Ancestors returns the parent chain of id, nearest first.
func (f *Forest) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	n := f.Node(id)
	for n != nil && n.Parent != NoParent {
		out = append(out, n.Parent)
		n = f.Node(n.Parent)
	}
	return out
}

// Walk visits nodes depth-first in document order. Returning false from fn
// skips the children of that node.
func (f *Forest) Walk(fn func(n *Node, depth int) bool) {
	var visit func(ids []NodeID, depth int)
	visit = func(ids []NodeID, depth int) {
		for _, id := range ids {
			n := &f.Nodes[id]
			if fn(n, depth) {
				visit(n.Children, depth+1)
			}
		}
	}
	visit(f.Roots, 0)
}

func (f *Forest) ByLine(line int) (NodeID, bool) {
	if f.byLine == nil {
		f.byLine = make(map[int]NodeID, len(f.Nodes))
		for i := range f.Nodes {
			f.byLine[f.Nodes[i].Line] = f.Nodes[i].ID
		}
	}
	id, ok := f.byLine[line]
	return id, ok
}

// ApplyStates updates checkbox nodes in place from a targeted sync and
// reports how many nodes changed.
func (f *Forest) ApplyStates(states []CheckboxState) int {
	changed := 0
	for _, st := range states {
		id, ok := f.ByLine(st.Line)
		if !ok {
			continue
		}
		n := &f.Nodes[id]
		if !n.IsCheckbox() || n.Checked == st.Checked {
			continue
		}
		n.Checked = st.Checked
		changed++
	}
	return changed
}

// FlattenHeaders returns a new forest without header nodes. Children of a
// removed header are spliced into its place, keeping document order, and
// each checkbox is re-parented to its nearest surviving ancestor.
func (f *Forest) FlattenHeaders() *Forest {
	out := &Forest{Nodes: make([]Node, 0, len(f.Nodes))}
	var visit func(ids []NodeID, parent NodeID)
	visit = func(ids []NodeID, parent NodeID) {
		for _, id := range ids {
			n := f.Nodes[id]
			if !n.IsCheckbox() {
				visit(n.Children, parent)
				continue
			}
			children := n.Children
			newID := out.add(n, parent)
			visit(children, newID)
		}
	}
	visit(f.Roots, NoParent)
	return out
}

func (f *Forest) Tree() []TreeItem {
	var build func(ids []NodeID) []TreeItem
	build = func(ids []NodeID) []TreeItem {
		if len(ids) == 0 {
			return nil
		}
		items := make([]TreeItem, 0, len(ids))
		for _, id := range ids {
			n := &f.Nodes[id]
			items = append(items, TreeItem{
				Label:    n.Label,
				Line:     n.Line,
				Kind:     n.Kind,
				Level:    n.Level,
				Checked:  n.Checked,
				Children: build(n.Children),
			})
		}
		return items
	}
	return build(f.Roots)
}

func (f *Forest) Clone() *Forest {
	out := &Forest{
		Nodes: make([]Node, len(f.Nodes)),
		Roots: append([]NodeID(nil), f.Roots...),
	}
	for i, n := range f.Nodes {
		n.Children = append([]NodeID(nil), n.Children...)
		out.Nodes[i] = n
	}
	return out
}
