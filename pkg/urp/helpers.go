package urp

// ReasoningParts splits a Message's parts into reasoning-trace parts
// (Reasoning/ReasoningEncrypted) and the remainder, preserving order.
func ReasoningParts(parts []Part) (reasoning []Part, rest []Part) {
	for _, p := range parts {
		switch p.(type) {
		case ReasoningPart, ReasoningEncryptedPart:
			reasoning = append(reasoning, p)
		default:
			rest = append(rest, p)
		}
	}
	return reasoning, rest
}

// ToolCalls returns every ToolCallPart in parts, in order.
func ToolCalls(parts []Part) []ToolCallPart {
	var out []ToolCallPart
	for _, p := range parts {
		if tc, ok := p.(ToolCallPart); ok {
			out = append(out, tc)
		}
	}
	return out
}

// TextContent concatenates every TextPart's content in parts, in order,
// joined with no separator (adapters insert separators per wire-shape
// convention where needed).
func TextContent(parts []Part) string {
	var out string
	for _, p := range parts {
		if t, ok := p.(TextPart); ok {
			out += t.Content
		}
	}
	return out
}

// HasToolResult reports whether parts contains a ToolResultPart.
func HasToolResult(parts []Part) bool {
	for _, p := range parts {
		if _, ok := p.(ToolResultPart); ok {
			return true
		}
	}
	return false
}
