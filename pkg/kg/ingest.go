package kg

// Ingest validates a snapshot coming from the collaborator. Nodes with an
// empty or repeated id are dropped (first occurrence wins) and edges whose
// endpoints are not in the snapshot are dropped and reported. Ingest never
// fails; the caller decides how to log the dropped edges.
func Ingest(s Snapshot) (Snapshot, []*MalformedEdgeError) {
	out := Snapshot{
		Nodes: make([]Node, 0, len(s.Nodes)),
		Edges: make([]Edge, 0, len(s.Edges)),
	}
	seen := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		out.Nodes = append(out.Nodes, n)
	}

	var dropped []*MalformedEdgeError
	for _, e := range s.Edges {
		if _, ok := seen[e.Source]; !ok {
			dropped = append(dropped, &MalformedEdgeError{Edge: e, Missing: e.Source})
			continue
		}
		if _, ok := seen[e.Target]; !ok {
			dropped = append(dropped, &MalformedEdgeError{Edge: e, Missing: e.Target})
			continue
		}
		out.Edges = append(out.Edges, e)
	}
	return out, dropped
}
