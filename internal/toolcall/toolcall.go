// Package toolcall extracts a tool invocation (name + arguments) from
// the accumulated, think-stripped assistant text: a first-line
// name-or-JSON shortcut, an <arg_key>/<arg_value> line scanner, and a
// bare-JSON-object fallback search.
package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Invocation is a parsed tool call. An empty Name means parsing failed.
type Invocation struct {
	Name      string
	Arguments map[string]any
}

// HasToolCall reports whether text contains a closed tool-call block.
func HasToolCall(text string) bool {
	return strings.Contains(text, "</tool_call>")
}

// HasOpenTag reports whether text contains the opening tool-call marker.
func HasOpenTag(text string) bool {
	return strings.Contains(text, "<tool_call>")
}

var bareJSONObject = regexp.MustCompile(`(?s)\{.*\}`)

// Parse extracts the tool invocation from text, which is expected to have
// already had <think>...</think> blocks stripped. An empty Invocation.Name
// signals a parse failure.
func Parse(text string) Invocation {
	section, ok := extractSection(text)
	if !ok {
		return Invocation{}
	}

	lines := strings.Split(strings.TrimSpace(section), "\n")
	name := ""
	if len(lines) > 0 {
		name = strings.TrimSpace(lines[0])
	}
	arguments := map[string]any{}

	if strings.HasPrefix(name, "{") && strings.HasSuffix(name, "}") {
		var payload struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(name), &payload); err == nil {
			if payload.Name != "" {
				name = payload.Name
			}
			for k, v := range payload.Arguments {
				arguments[k] = v
			}
		}
	}

	i := 1
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "<arg_key>") || !strings.HasSuffix(line, "</arg_key>") {
			i++
			continue
		}
		key := line[len("<arg_key>") : len(line)-len("</arg_key>")]
		i++
		if i >= len(lines) || !strings.HasPrefix(strings.TrimSpace(lines[i]), "<arg_value>") {
			i++
			continue
		}

		current := strings.TrimSpace(lines[i])
		var value string
		if strings.HasSuffix(current, "</arg_value>") {
			value = current[len("<arg_value>") : len(current)-len("</arg_value>")]
		} else {
			var valueLines []string
			firstLine := current[len("<arg_value>"):]
			if firstLine != "" {
				valueLines = append(valueLines, firstLine)
			}
			i++
			for i < len(lines) {
				cur := lines[i]
				if strings.HasSuffix(strings.TrimSpace(cur), "</arg_value>") {
					lastLine := strings.TrimRight(cur, " \t\r")
					lastLine = lastLine[:len(lastLine)-len("</arg_value>")]
					if lastLine != "" {
						valueLines = append(valueLines, lastLine)
					}
					break
				}
				valueLines = append(valueLines, cur)
				i++
			}
			value = strings.Join(valueLines, "\n")
		}

		trimmed := strings.TrimSpace(value)
		if looksJSONShaped(trimmed) {
			var decoded any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				arguments[key] = decoded
			} else {
				arguments[key] = value
			}
		} else {
			arguments[key] = value
		}
		i++
	}

	if len(arguments) == 0 {
		if m := bareJSONObject.FindString(section); m != "" {
			var payload struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			}
			if err := json.Unmarshal([]byte(m), &payload); err == nil {
				if payload.Name != "" {
					name = payload.Name
				}
				if payload.Arguments != nil {
					arguments = payload.Arguments
				}
			}
		}
	}

	return Invocation{Name: name, Arguments: arguments}
}

func looksJSONShaped(s string) bool {
	return (strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) ||
		(strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"))
}

// extractSection returns the text between the first <tool_call> and the
// following </tool_call>.
func extractSection(text string) (string, bool) {
	afterOpen := strings.SplitN(text, "<tool_call>", 2)
	if len(afterOpen) < 2 {
		return "", false
	}
	beforeClose := strings.SplitN(afterOpen[1], "</tool_call>", 2)
	if len(beforeClose) < 2 {
		return "", false
	}
	return beforeClose[0], true
}

// Format renders an Invocation back into the canonical
// <arg_key>/<arg_value> wire format, the inverse of Parse.
func Format(inv Invocation) string {
	var b strings.Builder
	b.WriteString("<tool_call>\n")
	b.WriteString(inv.Name)
	b.WriteString("\n")
	for k, v := range inv.Arguments {
		b.WriteString("<arg_key>")
		b.WriteString(k)
		b.WriteString("</arg_key>\n<arg_value>")
		switch val := v.(type) {
		case string:
			b.WriteString(val)
		default:
			encoded, _ := json.Marshal(val)
			b.Write(encoded)
		}
		b.WriteString("</arg_value>\n")
	}
	b.WriteString("</tool_call>")
	return b.String()
}
