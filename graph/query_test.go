package graph

import (
	"context"
	"testing"

	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/kg"
)

// TestBuildFromQueryEmpty tests that an empty query exports everything
func TestBuildFromQueryEmpty(t *testing.T) {
	builder := createTestBuilder(t)

	for _, query := range []string{"", "   ", "\n", "  \n  \t  "} {
		graph, err := builder.BuildFromQuery(context.Background(), query)
		if err != nil {
			t.Errorf("BuildFromQuery(%q) returned error: %v", query, err)
			continue
		}
		if len(graph.Nodes) != 8 {
			t.Errorf("BuildFromQuery(%q) produced %d nodes, want 8", query, len(graph.Nodes))
		}
	}
}

// TestBuildFromQueryFocus tests the neighbourhood exported for each focus kind
func TestBuildFromQueryFocus(t *testing.T) {
	builder := createTestBuilder(t)

	tests := []struct {
		query string
		nodes []string
		links int
	}{
		{
			query: "client A",
			nodes: []string{"account:A1", "account:A2", "client:A", "rule:AML_THRESHOLD", "rule:KYC",
				"transaction:T001", "transaction:T002", "transaction:T003"},
			links: 9,
		},
		{
			query: "tx T002",
			nodes: []string{"account:A1", "client:A", "rule:AML_THRESHOLD", "rule:KYC", "transaction:T002"},
			links: 4,
		},
		{
			query: "rule AML_THRESHOLD",
			nodes: []string{"account:A1", "client:A", "rule:AML_THRESHOLD", "transaction:T002"},
			links: 3,
		},
		{
			query: "account A2",
			nodes: []string{"account:A2", "client:A", "rule:KYC", "transaction:T003"},
			links: 3,
		},
		{
			query: "TX T003 rule AML_THRESHOLD",
			nodes: []string{"account:A1", "account:A2", "client:A", "rule:AML_THRESHOLD", "rule:KYC",
				"transaction:T002", "transaction:T003"},
			links: 7,
		},
		{
			query: "client Z",
			nodes: []string{},
			links: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			graph, err := builder.BuildFromQuery(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("BuildFromQuery(%q) returned error: %v", tt.query, err)
			}

			got := make([]string, 0, len(graph.Nodes))
			for _, n := range graph.Nodes {
				got = append(got, n.ID)
			}
			if len(got) != len(tt.nodes) {
				t.Fatalf("nodes = %v, want %v", got, tt.nodes)
			}
			for i := range got {
				if got[i] != tt.nodes[i] {
					t.Errorf("nodes = %v, want %v", got, tt.nodes)
					break
				}
			}
			if len(graph.Links) != tt.links {
				t.Errorf("links = %d, want %d", len(graph.Links), tt.links)
			}
			if graph.Meta.Config["query"] != tt.query {
				t.Errorf("meta query = %q", graph.Meta.Config["query"])
			}
		})
	}
}

// TestParseQueryWithQuotes tests quote handling in queries
func TestParseQueryWithQuotes(t *testing.T) {
	focus, err := ParseQuery(`client "Acme Corp" rule 'AML THRESHOLD'`)
	if err != nil {
		t.Fatalf("ParseQuery returned error: %v", err)
	}
	want := []Focus{{kg.KindClient, "Acme Corp"}, {kg.KindRule, "AML THRESHOLD"}}
	if len(focus) != len(want) || focus[0] != want[0] || focus[1] != want[1] {
		t.Errorf("focus = %+v, want %+v", focus, want)
	}
}

// TestParseQueryErrors tests rejected query syntax
func TestParseQueryErrors(t *testing.T) {
	tests := []string{
		`client`,
		`client A tx`,
		`person A`,
		`client "unterminated`,
	}

	for _, query := range tests {
		_, err := ParseQuery(query)
		if err == nil {
			t.Errorf("ParseQuery(%q) should fail", query)
			continue
		}
		if !errors.IsInvalidRequestError(err) {
			t.Errorf("ParseQuery(%q) error %v is not an invalid request", query, err)
		}
	}
}

// TestBuildFromQueryCancelled tests that a cancelled context is honoured
func TestBuildFromQueryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := createTestBuilder(t).BuildFromQuery(ctx, "client A"); err == nil {
		t.Error("expected context error")
	}
}
