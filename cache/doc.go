// Package cache stores compiled circuits in a SQLite database.
//
// Entries are keyed by the method digest, so a method whose bytecode is
// unchanged is restored from its snapshot instead of being rebuilt.
package cache
