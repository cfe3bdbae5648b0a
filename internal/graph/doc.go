// Package graph builds the three directed projections of a node map's
// relation sets and provides the ordering algorithms the planner and
// executor run on them.
//
// The projections differ only in edge direction:
//
//   - actor graph: who calls whom at runtime. Push and pull edges both
//     point caller → callee.
//   - item-flow graph: the direction items travel. Push edges keep their
//     direction; pull edges are reversed, since the puller's items come
//     from the pulled node.
//   - dependency graph: explicit producer-first ordering; a depends-on
//     edge becomes producer → consumer.
//
// All orderings are deterministic: where a topological order is
// ambiguous, ties break by ascending token id.
package graph
