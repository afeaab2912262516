// Package dom computes dominator trees, dominance frontiers and ancestor
// queries over small index graphs.
//
// Both the bytecode region graph and the control skeleton of a finished
// circuit are mapped onto Graph, so one implementation of the
// Lengauer–Tarjan semi-dominator algorithm serves both. Every call to
// Compute starts from fresh arrays; nothing is shared between two trees.
package dom
