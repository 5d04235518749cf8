// Package model defines the provider-agnostic boundary between the turn loop
// and a language model.
//
// Core goals:
//   - A single blocking Generate call that returns exactly one assistant Message
//   - Normalized tool declaration (ToolDefinition) and tool call representation
//   - Shared output checks (CheckOutput, DecodeArguments) so every provider
//     reports malformed output the same way
//   - Lightweight scripting for tests and examples (ScriptedModel)
//
// Providers (OpenAI, Anthropic) live in sub-packages so the core loop never
// imports a vendor SDK.
package model
