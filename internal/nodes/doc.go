// Package nodes provides the built-in node kinds the CLI can wire into a
// pipeline, and the registry resolving kind names from pipeline files to
// factories.
//
// The framework core never moves items itself; it only records declared
// relations and drives lifecycles. The kinds here agree on a small
// convention: items are cty values, pushed synchronously through the
// ItemPusher interface along declared push edges. Data crossing a phase
// boundary is spilled into a shared datastructure by the producer's
// evacuate hook and replayed by an initiator in the consuming phase.
package nodes
