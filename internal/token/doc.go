// Package token implements the identity layer of the pipelining framework.
//
// Every node owns a Token: a stable numeric identity registered in a
// NodeMap. The NodeMap is the single scope-spanning structure of a
// pipeline: it maps ids to their owning nodes, records the declared
// relations between them (push, pull, depends-on), and owns the table of
// named, memory-budgeted datastructures shared by the nodes.
//
// Nodes built independently start out in separate maps. Declaring a
// relation between two nodes links their maps; linking is a union-find
// merge, so after an arbitrary sequence of links every token in a
// connected pipeline resolves to one canonical map. Token identity is
// never affected by linking, and a map entry can be redirected when a
// node's ownership moves without changing the id.
package token
