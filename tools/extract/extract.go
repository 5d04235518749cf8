// Package extract provides a tool that turns free text into a JSON object of
// a declared shape by asking a model and validating its answer against the
// shape's JSON schema.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/internal/util"
	"github.com/hupe1980/chatloop/model"
	"github.com/hupe1980/chatloop/tool"
)

// Options configures an extraction tool.
type Options struct {
	// MaxAttempts bounds model calls per extraction; validation errors are fed
	// back to the model between attempts. Defaults to 2.
	MaxAttempts int
	// Now supplies the current time for date guidance (defaults to time.Now).
	Now func() time.Time
}

// Tool extracts structured fields from text with a model.
type Tool struct {
	name        string
	description string
	model       model.Model
	schema      map[string]any
	validator   *util.SchemaValidator
	opts        Options
}

// New creates an extraction tool whose output follows output, a struct value
// (see util.CreateSchema for the supported tags) or a JSON schema map.
func New(name, description string, m model.Model, output any, optFns ...func(o *Options)) (*Tool, error) {
	opts := Options{MaxAttempts: 2, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	schema, ok := output.(map[string]any)
	if !ok {
		schema = util.CreateSchema(output)
	}

	validator, err := util.CompileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}

	return &Tool{
		name:        name,
		description: description,
		model:       m,
		schema:      schema,
		validator:   validator,
		opts:        opts,
	}, nil
}

// Name implements tool.Tool.
func (t *Tool) Name() string { return t.name }

// Description implements tool.Tool.
func (t *Tool) Description() string { return t.description }

// Parameters implements tool.Tool.
func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "The user text to extract the fields from",
			},
		},
		"required": []string{"text"},
	}
}

// Schema returns the output schema.
func (t *Tool) Schema() map[string]any { return t.schema }

// Call implements tool.Tool.
func (t *Tool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	text, _ := args["text"].(string)
	return t.Extract(tc, text)
}

// Extract runs the extraction for text and returns the validated object.
func (t *Tool) Extract(tc *core.ToolContext, text string) (map[string]any, error) {
	instructions, err := t.instructions()
	if err != nil {
		return nil, err
	}

	history := []core.Message{core.NewUserMessage(text)}

	var lastErr error
	for attempt := 1; attempt <= t.opts.MaxAttempts; attempt++ {
		msg, err := t.model.Generate(tc.Context(), model.Request{Instructions: instructions, Messages: history})
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", t.name, err)
		}

		out, err := t.parse(msg.Content)
		if err == nil {
			tc.LogDebug("extract.success", "tool", t.name, "attempt", attempt)
			return out, nil
		}

		lastErr = err
		tc.LogDebug("extract.retry", "tool", t.name, "attempt", attempt, "error", err.Error())

		// the correction goes back as a new user message
		history = append(history,
			core.NewAssistantMessage(msg.Content),
			core.NewUserMessage("That answer was rejected: "+err.Error()+". Reply again with only the corrected JSON object."),
		)
	}

	te := tool.NewToolError(t.name, lastErr.Error(), tool.CodeExecutionError)
	var ve *util.ValidationError
	if errors.As(lastErr, &ve) {
		te.Details = map[string]any{"field": ve.Field}
	}
	return nil, te
}

func (t *Tool) instructions() (string, error) {
	schema, err := json.MarshalIndent(t.schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}

	var b strings.Builder
	b.WriteString("Given the query extract the fields described by the JSON schema below.\n")
	fmt.Fprintf(&b, "Dates must use the format %d-mm-dd unless the query names another year.\n", t.opts.Now().Year())
	b.WriteString("Reply with a single JSON object and nothing else.\n\n")
	b.Write(schema)
	return b.String(), nil
}

func (t *Tool) parse(content string) (map[string]any, error) {
	raw := stripFence(content)
	if raw == "" {
		return nil, fmt.Errorf("empty answer")
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("answer is not a JSON object: %w", err)
	}
	if err := t.validator.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// stripFence removes a surrounding ```json ... ``` block models like to add.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
