// Package schema compiles CUE schema documents into graph.Schema.
//
// A schema document declares entity types under a top-level "types" field:
//
//	types: User: {
//		traits: ["Person"]
//		keys: {
//			name:   {kind: "string"}
//			age:    {kind: "int"}
//			tags:   {kind: "string", collection: true}
//			groups: {kind: "ref", collection: true, related: "Group", notion: "name"}
//			joined: {kind: "string", sort: "int"}
//		}
//	}
//	types: member: {relationship: true, keys: role: {kind: "string"}}
//
// The document is unified with a CUE definition of that shape before it is
// read, so shape errors carry source positions.
package schema
