// Package testbed runs the compiler end to end over the .gasm fixtures in
// fixtures/ and checks the scheduled output.
package testbed
