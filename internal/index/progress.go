package index

type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Completed * 100 / p.Total
}

// Aggregate counts checkbox nodes reachable from the roots. Headers never
// count, whatever their level. The forest is not modified.
func Aggregate(f *Forest) Progress {
	var p Progress
	if f == nil {
		return p
	}
	var visit func(ids []NodeID)
	visit = func(ids []NodeID) {
		for _, id := range ids {
			n := &f.Nodes[id]
			if n.IsCheckbox() {
				p.Total++
				if n.Checked {
					p.Completed++
				}
			}
			visit(n.Children)
		}
	}
	visit(f.Roots)
	return p
}
