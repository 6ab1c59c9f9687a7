package graph

import (
	"sort"

	"github.com/teranos/finkg/kg"
)

// RelationshipDefinition holds physics and display metadata for a predicate
type RelationshipDefinition struct {
	DisplayLabel string
	Color        string
	LinkDistance *float64
	LinkStrength *float64
}

func ptr(f float64) *float64 { return &f }

// Ownership edges are short and stiff so each client's accounts and
// transactions cluster; rule edges are long so shared rules sit between clusters.
var relationshipDefinitions = map[string]RelationshipDefinition{
	kg.PredHasAccount:     {DisplayLabel: "has account", LinkDistance: ptr(40), LinkStrength: ptr(0.9)},
	kg.PredHasTransaction: {DisplayLabel: "has transaction", LinkDistance: ptr(30), LinkStrength: ptr(0.9)},
	kg.PredCompliantWith:  {DisplayLabel: "compliant with", Color: "#27ae60", LinkDistance: ptr(120), LinkStrength: ptr(0.2)},
	kg.PredViolatesRule:   {DisplayLabel: "violates", Color: "#e74c3c", LinkDistance: ptr(120), LinkStrength: ptr(0.4)},
}

// collectRelationshipTypeInfo counts the relationship types present in the graph
func collectRelationshipTypeInfo(links []Link) []RelationshipTypeInfo {
	typeCounts := make(map[string]int)
	for _, link := range links {
		typeCounts[link.Type]++
	}

	relationshipTypes := make([]RelationshipTypeInfo, 0, len(typeCounts))
	for linkType, count := range typeCounts {
		info := RelationshipTypeInfo{
			Type:  linkType,
			Label: humanize(linkType),
			Count: count,
		}
		if def, ok := relationshipDefinitions[linkType]; ok {
			info.Label = def.DisplayLabel
			info.Color = def.Color
			info.LinkDistance = def.LinkDistance
			info.LinkStrength = def.LinkStrength
		}
		relationshipTypes = append(relationshipTypes, info)
	}

	sort.Slice(relationshipTypes, func(i, j int) bool {
		if relationshipTypes[i].Count != relationshipTypes[j].Count {
			return relationshipTypes[i].Count > relationshipTypes[j].Count
		}
		return relationshipTypes[i].Type < relationshipTypes[j].Type
	})
	return relationshipTypes
}
