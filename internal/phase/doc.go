// Package phase partitions a linked node set into ordered execution
// phases.
//
// A phase boundary is induced by any buffered edge: explicit dependency
// edges always buffer, push and pull edges buffer when declared so. The
// planner removes all boundary edges, takes the connected components of
// the remaining actor edges as phases, orders the phases over the removed
// edges, and orders the nodes inside each phase over the item-flow edges
// that remain. Every ordering breaks ties by ascending token id, so
// planning the same graph twice yields the same plan.
package phase
