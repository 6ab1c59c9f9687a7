package graph

import (
	"sort"

	"github.com/teranos/finkg/kg"
)

// defaultLinkWeight is the D3 value of every link; the store never holds
// duplicate edges
const defaultLinkWeight = 1.0

// Build exports the whole store
func (b *Builder) Build() *Graph {
	g := b.buildGraph(nil, "entire graph")
	b.logger.Debugw("Graph built", "nodes", len(g.Nodes), "links", len(g.Links))
	return g
}

// buildGraph converts the store's triples into nodes and links. Schema
// triples are skipped. Literal objects become node metadata; node objects
// become links. When keep is non-nil only the node IDs it contains, and the
// links between them, are exported.
func (b *Builder) buildGraph(keep map[string]bool, description string) *Graph {
	vocab := b.store.Vocabulary()
	graph := &Graph{
		Nodes: []Node{},
		Links: []Link{},
		Meta: Meta{
			GeneratedAt: b.now().UTC(),
			Config: map[string]string{
				"base_iri":    vocab.Base(),
				"description": description,
			},
		},
	}

	nodeMap := make(map[string]*Node)
	node := func(kind kg.Kind, id, iri string) *Node {
		nid := nodeID(kind, id)
		if n, ok := nodeMap[nid]; ok {
			return n
		}
		n := &Node{
			ID:    nid,
			Type:  typeName(kind),
			Label: id,
			Metadata: map[string]interface{}{
				"iri":         iri,
				"original_id": id,
			},
		}
		nodeMap[nid] = n
		return n
	}

	for _, t := range b.store.Triples() {
		kind, id, ok := vocab.ParseNodeIRI(t.Subject)
		if !ok {
			continue
		}
		subject := node(kind, id, t.Subject)

		if t.Predicate == kg.RDFType {
			continue
		}
		pred := kg.ShortName(t.Predicate)

		if !t.Object.IRI {
			subject.Metadata[pred] = t.Object.Value
			if pred == kg.PredName {
				subject.Label = t.Object.Value
			}
			continue
		}

		objKind, objID, ok := vocab.ParseNodeIRI(t.Object.Value)
		if !ok {
			continue
		}
		object := node(objKind, objID, t.Object.Value)
		graph.Links = append(graph.Links, Link{
			Source: subject.ID,
			Target: object.ID,
			Type:   pred,
			Weight: defaultLinkWeight,
			Label:  humanize(pred),
		})
	}

	nodeIDs := make([]string, 0, len(nodeMap))
	for id := range nodeMap {
		if keep == nil || keep[id] {
			nodeIDs = append(nodeIDs, id)
		}
	}
	sort.Strings(nodeIDs)
	for _, id := range nodeIDs {
		graph.Nodes = append(graph.Nodes, *nodeMap[id])
	}

	if keep != nil {
		kept := graph.Links[:0]
		for _, l := range graph.Links {
			if keep[l.Source] && keep[l.Target] {
				kept = append(kept, l)
			}
		}
		graph.Links = kept
	}
	sort.Slice(graph.Links, func(i, j int) bool {
		a, c := graph.Links[i], graph.Links[j]
		if a.Source != c.Source {
			return a.Source < c.Source
		}
		if a.Type != c.Type {
			return a.Type < c.Type
		}
		return a.Target < c.Target
	})

	graph.Meta.Stats.TotalNodes = len(graph.Nodes)
	graph.Meta.Stats.TotalEdges = len(graph.Links)
	graph.Meta.NodeTypes = collectNodeTypeInfo(graph.Nodes)
	graph.Meta.RelationshipTypes = collectRelationshipTypeInfo(graph.Links)

	return graph
}
