package walkplan

// tarjan runs Tarjan's strongly-connected-components algorithm over the
// walking graph's Outgoing edges, assigning every node a LoopNumber:
// LoopNumberAcyclic for a trivial singleton component (with or without a
// genuine self-loop), or a sequential non-negative id, shared by every
// member, for a component of size ≥ 2.
//
// Components complete in reverse topological order of the Outgoing edges
// (dependents before their dependencies); loop ids are handed out in that
// same order, so a dependent's component receives a lower id than the
// components it depends on.
func tarjan(order []*Node) {
	t := &tarjanState{nextIndex: 0, nextLoopID: firstCyclicLoopID}

	for _, n := range order {
		if n.TarjanIndex == 0 && !n.onStack && n.LoopNumber == LoopNumberUnset {
			t.strongconnect(n)
		}
	}
}

type tarjanState struct {
	nextIndex  int
	nextLoopID int
	stack      []*Node
}

// strongconnect is the recursive core of Tarjan's algorithm. Node.TarjanIndex
// doubles as the "unvisited" sentinel (0) and the discovery index (1-based,
// to keep 0 free); Node.lowlink and Node.onStack are scratch-only.
func (t *tarjanState) strongconnect(v *Node) {
	t.nextIndex++
	v.TarjanIndex = t.nextIndex
	v.lowlink = t.nextIndex
	v.onStack = true
	t.stack = append(t.stack, v)

	for _, w := range v.Outgoing {
		switch {
		case w.TarjanIndex == 0:
			t.strongconnect(w)
			if w.lowlink < v.lowlink {
				v.lowlink = w.lowlink
			}
		case w.onStack:
			if w.TarjanIndex < v.lowlink {
				v.lowlink = w.TarjanIndex
			}
		}
	}

	if v.lowlink != v.TarjanIndex {
		return
	}

	var members []*Node

	for {
		n := len(t.stack) - 1
		w := t.stack[n]
		t.stack = t.stack[:n]
		w.onStack = false
		members = append(members, w)

		if w == v {
			break
		}
	}

	if len(members) == 1 && !hasSelfLoop(members[0]) {
		members[0].LoopNumber = LoopNumberAcyclic
		return
	}

	loopID := t.nextLoopID
	t.nextLoopID++

	for _, m := range members {
		m.LoopNumber = loopID
	}

	if len(members) == 1 {
		// A genuine self-loop on an otherwise-trivial component still needs
		// its self edge stripped so the node can ever become ready; treat
		// it as acyclic for scheduling purposes once the edge is gone.
		stripSelfLoop(members[0])
		members[0].LoopNumber = LoopNumberAcyclic
	}
}

func hasSelfLoop(n *Node) bool {
	for _, w := range n.Outgoing {
		if w == n {
			return true
		}
	}

	return false
}

// stripSelfLoop removes n from its own Incoming and Outgoing lists, so a
// module that (degenerately) imports itself can still complete.
func stripSelfLoop(n *Node) {
	n.Outgoing = removeNode(n.Outgoing, n)
	n.Incoming = removeNode(n.Incoming, n)
	n.IncomingCount = len(n.Incoming)
}

func removeNode(list []*Node, target *Node) []*Node {
	out := list[:0]

	for _, n := range list {
		if n != target {
			out = append(out, n)
		}
	}

	return out
}
