package graph

import (
	"sort"

	"github.com/teranos/finkg/kg"
)

// TypeDefinition holds display metadata for a node type
type TypeDefinition struct {
	DisplayColor string
	DisplayLabel string
}

// typeDefinitions covers every kind the store holds
var typeDefinitions = map[string]TypeDefinition{
	typeName(kg.KindClient):      {DisplayColor: "#3498db", DisplayLabel: "Client"},
	typeName(kg.KindAccount):     {DisplayColor: "#2ecc71", DisplayLabel: "Account"},
	typeName(kg.KindTransaction): {DisplayColor: "#f39c12", DisplayLabel: "Transaction"},
	typeName(kg.KindRule):        {DisplayColor: "#9b59b6", DisplayLabel: "Compliance Rule"},
}

// collectNodeTypeInfo counts the node types present in the graph.
// Most common types come first; ties are ordered by type name.
func collectNodeTypeInfo(nodes []Node) []NodeTypeInfo {
	typeCounts := make(map[string]int)
	for _, node := range nodes {
		typeCounts[node.Type]++
	}

	nodeTypes := make([]NodeTypeInfo, 0, len(typeCounts))
	for nodeType, count := range typeCounts {
		info := NodeTypeInfo{Type: nodeType, Label: nodeType, Count: count}
		if def, ok := typeDefinitions[nodeType]; ok {
			info.Label = def.DisplayLabel
			info.Color = def.DisplayColor
		}
		nodeTypes = append(nodeTypes, info)
	}

	sort.Slice(nodeTypes, func(i, j int) bool {
		if nodeTypes[i].Count != nodeTypes[j].Count {
			return nodeTypes[i].Count > nodeTypes[j].Count
		}
		return nodeTypes[i].Type < nodeTypes[j].Type
	})
	return nodeTypes
}
