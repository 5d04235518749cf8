// Package core provides the foundational domain types used by chatloop. It
// defines:
//
//   - Message / ToolCallRequest (immutable transcript records)
//   - Transcript (append-only, invariant checked conversation history)
//   - TurnResult (outcome of a single user turn plus its tool trace)
//   - ToolContext / ToolScope / Scratchpad (sandboxed surface handed to tools)
//   - TranscriptStore (pluggable persistence boundary)
//   - The error taxonomy shared by the model, tool, flow and session packages
//
// Implementation concerns (model providers, tool execution, the turn state
// machine) live in sibling packages and depend on core, never the reverse.
package core
