// Package loam reads scenario presets from a directory of documents.
//
// A scenario is a Markdown file with YAML frontmatter (or a plain JSON/YAML
// file) naming an algorithm, its input and a playback speed:
//
//	---
//	algorithm: dijkstra
//	speed: 150
//	input:
//	  vertices: 4
//	  edges: [{from: 0, to: 1, weight: 2}]
//	---
//	Shortest paths on a small graph.
//
// The document body becomes the scenario notes.
package loam
