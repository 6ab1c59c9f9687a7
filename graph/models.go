package graph

import (
	"time"
)

// Graph is the node-link export of the knowledge graph, shaped for D3
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
	Meta  Meta   `json:"meta"`
}

// Node represents a client, account, transaction or rule
type Node struct {
	ID       string                 `json:"id"`    // "<type>:<identifier>", unique across kinds
	Type     string                 `json:"type"`  // client, account, transaction, rule
	Label    string                 `json:"label"` // Display label
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Link represents a relationship between nodes
type Link struct {
	Source string  `json:"source"` // Node ID
	Target string  `json:"target"` // Node ID
	Type   string  `json:"type"`   // Predicate local name (e.g., "hasAccount", "violatesRule")
	Weight float64 `json:"value"`  // Link strength (D3 uses "value")
	Label  string  `json:"label,omitempty"`
}

// Meta contains metadata about the graph
type Meta struct {
	GeneratedAt       time.Time              `json:"generated_at"`
	Stats             Stats                  `json:"stats"`
	Config            map[string]string      `json:"config"`
	NodeTypes         []NodeTypeInfo         `json:"node_types"`         // Node types present in this graph
	RelationshipTypes []RelationshipTypeInfo `json:"relationship_types"` // Relationship types with physics
}

// NodeTypeInfo describes a node type and its visual configuration
type NodeTypeInfo struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
	Count int    `json:"count,omitempty"`
}

// RelationshipTypeInfo describes a relationship type with physics and visual configuration
type RelationshipTypeInfo struct {
	Type         string   `json:"type"`
	Label        string   `json:"label"`
	Color        string   `json:"color,omitempty"`
	LinkDistance *float64 `json:"link_distance,omitempty"` // D3 force distance override (nil = use default)
	LinkStrength *float64 `json:"link_strength,omitempty"` // D3 force strength override (nil = use default)
	Count        int      `json:"count,omitempty"`
}

// Stats provides graph statistics
type Stats struct {
	TotalNodes int `json:"total_nodes"`
	TotalEdges int `json:"total_edges"`
}
