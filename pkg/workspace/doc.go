/*
Package workspace provides the WorkingState shapes most algorithm pages need:
a flat integer Array, a DP Grid, a Graph with distances, and a Text with
matching pointers.

Each type applies arena-style Steps that reference positions by index, and
each Clone is a deep copy, so a snapshot never aliases live state.
*/
package workspace
