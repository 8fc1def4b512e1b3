// Package clone produces deep, independent copies of conversation data.
//
// Snapshots handed to the backup store must not alias the live conversation:
// a later edit to the live messages cannot be allowed to change a stored
// backup. Copy first attempts a reflective structural clone that reproduces
// shared and cyclic references, and falls back to a JSON round-trip for
// values the structural clone cannot reproduce.
package clone
