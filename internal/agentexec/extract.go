package agentexec

import (
	"bufio"
	"encoding/json"
	"strings"
)

// completionStatus is the tri-state result of scanning a worker's
// response text for an explicit completion signal. statusUnknown means
// no signal was found at all; the caller falls back to the subprocess's
// exit code.
type completionStatus int

const (
	statusUnknown completionStatus = iota
	statusCompleted
	statusFailed
)

// statusEnvelope is the worker's self-reported completion status, a
// JSON object of the shape {"status": "COMPLETED"|"FAILED", ...} that
// may appear anywhere in the extracted response text.
type statusEnvelope struct {
	Status string `json:"status"`
}

// completionKeywords are checked against the response text when no
// status envelope is present. Matching is case-insensitive.
var completionKeywords = []string{"completed", "successfully", "created file", "wrote file"}

// claudeEnvelope is the single JSON object claude emits with
// --output-format json: one record holding the full response and a
// success/error subtype.
type claudeEnvelope struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}

// ExtractClaude parses claude's single-JSON-envelope output format.
func ExtractClaude(raw []byte) (text string, status completionStatus) {
	var env claudeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fallbackExtract(raw)
	}
	if env.Type != "result" {
		return fallbackExtract(raw)
	}
	return env.Result, detectCompletion(env.Result)
}

// codexItem is one record in codex's streamed-JSON-lines output. Only
// agent_message items accumulate into the response text; other item
// types (command execution, patches) are narration, not content.
type codexItem struct {
	Type string `json:"type"`
	Item struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"item"`
}

// ExtractCodex parses codex's streamed-JSON-records output format,
// concatenating every completed agent_message item in order.
func ExtractCodex(raw []byte) (text string, status completionStatus) {
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var b strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec codexItem
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.Type == "item.completed" && rec.Item.Type == "agent_message" && rec.Item.Text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(rec.Item.Text)
		}
	}

	out := b.String()
	if out == "" {
		return fallbackExtract(raw)
	}
	return out, detectCompletion(out)
}

// geminiMessage is one record in gemini's streamed-chat-messages output
// format.
type geminiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExtractGemini parses gemini's streamed-chat-messages output format,
// concatenating every assistant message in order.
func ExtractGemini(raw []byte) (text string, status completionStatus) {
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var b strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg geminiMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		if msg.Role == "assistant" && msg.Content != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(msg.Content)
		}
	}

	out := b.String()
	if out == "" {
		return fallbackExtract(raw)
	}
	return out, detectCompletion(out)
}

// fallbackExtract handles output that is not valid JSON at all — treat
// the raw text as the response and fall back to the same completion
// detection every other kind uses.
func fallbackExtract(raw []byte) (string, completionStatus) {
	text := string(raw)
	return text, detectCompletion(text)
}

// detectCompletion implements the worker completion-detection
// algorithm: look for an explicit {"status": "COMPLETED"|"FAILED"}
// object anywhere in the text, then fall back to scanning for a
// completion keyword. Neither signal found yields statusUnknown, which
// the caller resolves against the subprocess's exit code.
func detectCompletion(text string) completionStatus {
	if s, ok := findStatus(text); ok {
		switch strings.ToUpper(s) {
		case "COMPLETED":
			return statusCompleted
		case "FAILED":
			return statusFailed
		}
	}
	if keywordIndicatesCompletion(text) {
		return statusCompleted
	}
	return statusUnknown
}

// findStatus scans text for the first balanced {...} JSON object that
// unmarshals with a non-empty "status" field.
func findStatus(text string) (string, bool) {
	depth := 0
	start := -1
	for i, r := range text {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidate := text[start : i+1]
				var env statusEnvelope
				if err := json.Unmarshal([]byte(candidate), &env); err == nil && env.Status != "" {
					return env.Status, true
				}
				start = -1
			}
		}
	}
	return "", false
}

func keywordIndicatesCompletion(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range completionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
