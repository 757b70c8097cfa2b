package walkplan

import "sort"

// breakLoops applies the two-pass transform of spec §4.E to every component
// tarjan found with a non-negative LoopNumber, and returns every first-pass
// node (the walking graph as built, minus the intra-component back edges
// that made each cycle unschedulable) plus every second-pass mirror node
// the transform created.
//
// For a component of size ≥ 2:
//   - members are ordered by ascending original incoming-edge count (ties
//     broken by the underlying vertex's stable index) and walked with a
//     depth-first search over intra-component edges; an edge to an
//     already-visited member is a back edge and is dropped, leaving an
//     acyclic "bootstrap" subgraph that the chain walker can actually
//     schedule.
//   - a second-pass mirror is created per member, wired with the same
//     acyclic edge shape among mirrors, so the component is walked a
//     second time with every member's final (first-pass) result available.
//   - every first-pass member fans out to every mirror, so no mirror starts
//     before the whole component finishes its first pass.
//   - any node outside the component that depended on a member is rewired
//     to depend on every mirror instead: a caller outside the cycle must
//     see the component's stable, fully resolved state, not its bootstrap
//     pass.
func breakLoops(order []*Node) (firstPassNodes, secondPassNodes []*Node) {
	components := groupComponents(order)

	firstPassNodes = order

	for _, n := range order {
		if n.LoopNumber < firstCyclicLoopID {
			n.Pass = PassOnly
		}
	}

	ids := make([]int, 0, len(components))
	for id := range components {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	for _, id := range ids {
		secondPassNodes = append(secondPassNodes, breakComponent(components[id])...)
	}

	return firstPassNodes, secondPassNodes
}

// groupComponents partitions order into its cyclic (size ≥ 2) components,
// keyed by LoopNumber, preserving discovery order within each group.
func groupComponents(order []*Node) map[int][]*Node {
	groups := make(map[int][]*Node)

	for _, n := range order {
		if n.LoopNumber >= firstCyclicLoopID {
			groups[n.LoopNumber] = append(groups[n.LoopNumber], n)
		}
	}

	return groups
}

func breakComponent(members []*Node) []*Node {
	memberSet := make(map[*Node]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	sorted := append([]*Node(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if len(a.Incoming) != len(b.Incoming) {
			return len(a.Incoming) < len(b.Incoming)
		}

		return a.Dep.Index < b.Dep.Index
	})

	kept := make(map[*Node][]*Node, len(members)) // member -> kept internal successors
	visited := make(map[*Node]bool, len(members))

	var visit func(u *Node)
	visit = func(u *Node) {
		visited[u] = true

		for _, v := range u.Outgoing {
			if !memberSet[v] {
				continue
			}

			if visited[v] {
				continue
			}

			kept[u] = append(kept[u], v)
			visit(v)
		}
	}

	for _, m := range sorted {
		if !visited[m] {
			visit(m)
		}
	}

	externalTargets := externalOutgoingTargets(members, memberSet)

	rebuildFirstPassEdges(members, memberSet, kept)

	mirrors := createMirrors(members)

	wireMirrorInternalEdges(members, mirrors, kept)
	wireFanOut(members, mirrors)
	wireExternalConsumers(mirrors, externalTargets)

	finalizeIncomingCounts(members)
	finalizeIncomingCounts(mirrors)

	return mirrors
}

// externalOutgoingTargets collects, in first-seen order, every node outside
// the component that a member's Outgoing currently points to.
func externalOutgoingTargets(members []*Node, memberSet map[*Node]bool) []*Node {
	seen := make(map[*Node]bool)

	var out []*Node

	for _, m := range members {
		for _, w := range m.Outgoing {
			if memberSet[w] || seen[w] {
				continue
			}

			seen[w] = true

			out = append(out, w)
		}
	}

	return out
}

// rebuildFirstPassEdges replaces each member's Outgoing with only its kept
// intra-component edges (external edges migrate to the mirrors) and
// replaces each member's Incoming intra-component entries with the kept
// reverse edges, leaving any incoming edges from outside the component
// untouched.
func rebuildFirstPassEdges(members []*Node, memberSet map[*Node]bool, kept map[*Node][]*Node) {
	incomingFromKept := make(map[*Node][]*Node, len(members))

	for u, succs := range kept {
		for _, v := range succs {
			incomingFromKept[v] = append(incomingFromKept[v], u)
		}
	}

	for _, m := range members {
		m.Outgoing = kept[m]

		external := make([]*Node, 0, len(m.Incoming))

		for _, src := range m.Incoming {
			if !memberSet[src] {
				external = append(external, src)
			}
		}

		m.Incoming = append(external, incomingFromKept[m]...)
	}
}

func createMirrors(members []*Node) []*Node {
	mirrors := make([]*Node, len(members))

	for i, m := range members {
		mirror := &Node{
			Dep:                    m.Dep,
			Key:                    m.Key,
			LoopNumber:             m.LoopNumber,
			Pass:                   PassSecond,
			FirstPass:              m,
			HasMissingDependencies: m.HasMissingDependencies,
		}
		m.Pass = PassFirst
		m.SecondPass = mirror
		mirrors[i] = mirror
	}

	return mirrors
}

// wireMirrorInternalEdges reproduces the acyclic intra-component edge shape
// found for the first pass among the second-pass mirrors.
func wireMirrorInternalEdges(members, mirrors []*Node, kept map[*Node][]*Node) {
	mirrorOf := make(map[*Node]*Node, len(members))
	for i, m := range members {
		mirrorOf[m] = mirrors[i]
	}

	for u, succs := range kept {
		mu := mirrorOf[u]
		for _, v := range succs {
			mv := mirrorOf[v]
			mu.Outgoing = append(mu.Outgoing, mv)
			mv.Incoming = append(mv.Incoming, mu)
		}
	}
}

// wireFanOut makes every first-pass member a prerequisite of every
// second-pass mirror in the same component.
func wireFanOut(members, mirrors []*Node) {
	for _, m := range members {
		for _, mirror := range mirrors {
			m.Outgoing = append(m.Outgoing, mirror)
			mirror.Incoming = append(mirror.Incoming, m)
		}
	}
}

// wireExternalConsumers rewires every node outside the component that
// depended on any member to instead depend on every mirror, and makes every
// mirror point at every such external consumer.
func wireExternalConsumers(mirrors, externalTargets []*Node) {
	if len(externalTargets) == 0 {
		return
	}

	componentFirstPass := make(map[*Node]bool, len(mirrors))
	for _, mirror := range mirrors {
		componentFirstPass[mirror.FirstPass] = true
	}

	for _, ext := range externalTargets {
		filtered := ext.Incoming[:0]

		for _, src := range ext.Incoming {
			if !componentFirstPass[src] {
				filtered = append(filtered, src)
			}
		}

		ext.Incoming = append(filtered, mirrors...)
		ext.IncomingCount = len(ext.Incoming)

		for _, mirror := range mirrors {
			mirror.Outgoing = append(mirror.Outgoing, ext)
		}
	}
}

func finalizeIncomingCounts(nodes []*Node) {
	for _, n := range nodes {
		n.IncomingCount = len(n.Incoming)
	}
}
