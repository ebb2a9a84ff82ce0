// Package spf implements the shortest-path-first engine with equal-cost
// multipath (ECMP) tracking.
//
// A Graph is built once from a topology.Snapshot: every logical link expands
// into its directed arcs and nodes are addressed by their input position.
// Tree runs Dijkstra from a source and, instead of a single parent, keeps for
// every node the list of all predecessor records (node index, arc index)
// that reach it at the minimal distance:
//
//   - a strictly shorter candidate replaces the list
//   - an equal candidate is appended
//
// The frontier is a binary heap ordered by (distance, input index), so ties
// resolve in input order and results are deterministic.
//
// From a tree the package derives:
//
//   - the canonical path, following the first recorded predecessor at every hop
//   - the ECMP subgraph, the backward closure over every predecessor
//   - the number of distinct equal-cost node sequences (saturating)
//   - a bounded enumeration of those sequences with divergence and
//     convergence points
//
// An unreachable destination is not an error: ShortestPath returns a nil
// result and a nil error.
//
// Complexity: O((V + E) log V) per tree, O(V + E) for the path-count pass.
package spf
