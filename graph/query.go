package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/kg"
)

// Focus names one node a query centres on
type Focus struct {
	Kind kg.Kind
	ID   string
}

var focusKinds = map[string]kg.Kind{
	"client":      kg.KindClient,
	"account":     kg.KindAccount,
	"tx":          kg.KindTransaction,
	"transaction": kg.KindTransaction,
	"rule":        kg.KindRule,
}

// ParseQuery reads "<kind> <id>" pairs. Identifiers with spaces can be
// quoted like shell words: client "Acme Corp" tx T002.
func ParseQuery(query string) ([]Focus, error) {
	args, err := shellquote.Split(query)
	if err != nil {
		return nil, errors.Wrap(errors.Mark(err, errors.ErrInvalidRequest), "invalid graph query")
	}
	if len(args)%2 != 0 {
		return nil, errors.NewInvalidRequestError("graph query needs <kind> <id> pairs, got %d words", len(args))
	}

	focus := make([]Focus, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		kind, ok := focusKinds[strings.ToLower(args[i])]
		if !ok {
			return nil, errors.WithHint(
				errors.NewInvalidRequestError("unknown node kind %q", args[i]),
				"use client, account, tx or rule",
			)
		}
		focus = append(focus, Focus{Kind: kind, ID: args[i+1]})
	}
	return focus, nil
}

// BuildFromQuery exports the part of the graph around the focus nodes: every
// node reachable downstream of a focus (client to accounts to transactions to
// rules) and every node upstream of it. An empty query exports everything.
// Unknown identifiers yield an empty graph, not an error.
func (b *Builder) BuildFromQuery(ctx context.Context, query string) (*Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return b.Build(), nil
	}

	focus, err := ParseQuery(trimmed)
	if err != nil {
		b.logger.Warnw("Graph query parse failed", "query", trimmed, "error", err)
		return nil, err
	}

	full := b.buildGraph(nil, "entire graph")
	keep := neighbourhood(full.Links, focus, full.Nodes)

	graph := b.buildGraph(keep, fmt.Sprintf("Graph for query: %s", trimmed))
	graph.Meta.Config["query"] = trimmed

	b.logger.Infow("Graph built", "query", trimmed, "nodes", len(graph.Nodes), "links", len(graph.Links))
	return graph, nil
}

// neighbourhood walks links forward and backward from each focus node
// without changing direction mid-walk, so a transaction's focus pulls in its
// account and client but not the client's other transactions.
func neighbourhood(links []Link, focus []Focus, nodes []Node) map[string]bool {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
	}

	forward := make(map[string][]string)
	backward := make(map[string][]string)
	for _, l := range links {
		forward[l.Source] = append(forward[l.Source], l.Target)
		backward[l.Target] = append(backward[l.Target], l.Source)
	}

	keep := make(map[string]bool)
	walk := func(start string, adj map[string][]string) {
		seen := map[string]bool{start: true}
		queue := []string{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			keep[cur] = true
			for _, next := range adj[cur] {
				if !seen[next] {
					seen[next] = true
					queue = append(queue, next)
				}
			}
		}
	}

	for _, f := range focus {
		id := nodeID(f.Kind, f.ID)
		if !known[id] {
			continue
		}
		walk(id, forward)
		walk(id, backward)
	}
	return keep
}
