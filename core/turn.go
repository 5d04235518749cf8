package core

// ToolInvocation pairs a tool call request with the result message it produced.
type ToolInvocation struct {
	Request ToolCallRequest `json:"request"`
	Result  Message         `json:"result"`
}

// TurnResult is the outcome of one user turn. Messages holds everything the
// turn produced in order (assistant and tool messages); FinalMessage is the
// terminal assistant message and is also the last element of Messages.
type TurnResult struct {
	FinalMessage    Message          `json:"final_message"`
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty"`
	Messages        []Message        `json:"messages"`
	Rounds          int              `json:"rounds"`
	Truncated       bool             `json:"truncated,omitempty"`
}

// FaultCount returns how many tool invocations ended with a fault.
func (r *TurnResult) FaultCount() int {
	n := 0
	for _, inv := range r.ToolInvocations {
		if inv.Result.IsFault() {
			n++
		}
	}
	return n
}
