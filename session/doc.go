// Package session houses the Conversation, the single owner of a transcript,
// and the concrete core.TranscriptStore implementations (in memory and YAML
// files here, SQLite in the sqlite sub-package).
//
// Stores are pluggable: only the wiring layer decides which implementation to
// instantiate; conversations depend on core.TranscriptStore alone.
package session
