// Package algorithms holds the built-in algorithm definitions and the Catalog
// that names them.
//
// Every definition keeps a private shadow of its data to decide what to emit
// next, and emits index-based Steps for the sequencer to apply to the live
// working state. Recursive algorithms compose nested step sequences; the
// sequencer still sees one flat stream.
package algorithms
