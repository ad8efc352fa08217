package agentexec

import "testing"

func TestExtractClaude_SuccessEnvelope(t *testing.T) {
	raw := []byte(`{"type":"result","subtype":"success","result":"done implementing successfully","is_error":false}`)
	text, status := ExtractClaude(raw)
	if text != "done implementing successfully" || status != statusCompleted {
		t.Errorf("got (%q, %v), want (%q, statusCompleted)", text, status, "done implementing successfully")
	}
}

func TestExtractClaude_StatusEnvelopeInResultText(t *testing.T) {
	raw := []byte(`{"type":"result","subtype":"success","result":"all set: {\"status\":\"COMPLETED\"}","is_error":false}`)
	text, status := ExtractClaude(raw)
	if status != statusCompleted {
		t.Errorf("got status %v, want statusCompleted for text %q", status, text)
	}
}

func TestExtractClaude_FailedStatusOverridesIsError(t *testing.T) {
	raw := []byte(`{"type":"result","subtype":"error","result":"{\"status\":\"FAILED\",\"reasoning\":\"blocked\"}","is_error":true}`)
	text, status := ExtractClaude(raw)
	if status != statusFailed {
		t.Errorf("got (%q, %v), want statusFailed", text, status)
	}
}

func TestExtractClaude_NoSignalIsUnknown(t *testing.T) {
	raw := []byte(`{"type":"result","subtype":"success","result":"still investigating the issue","is_error":false}`)
	_, status := ExtractClaude(raw)
	if status != statusUnknown {
		t.Errorf("got status %v, want statusUnknown", status)
	}
}

func TestExtractClaude_MalformedFallsBack(t *testing.T) {
	raw := []byte("not json at all")
	text, _ := ExtractClaude(raw)
	if text != "not json at all" {
		t.Errorf("expected fallback to raw text, got %q", text)
	}
}

func TestExtractCodex_ConcatenatesAgentMessages(t *testing.T) {
	raw := []byte(`{"type":"item.completed","item":{"type":"agent_message","text":"first"}}
{"type":"item.completed","item":{"type":"command_execution","text":"ls -la"}}
{"type":"item.completed","item":{"type":"agent_message","text":"second: task completed"}}
{"type":"turn.completed"}
`)
	text, status := ExtractCodex(raw)
	want := "first\nsecond: task completed"
	if text != want || status != statusCompleted {
		t.Errorf("got (%q, %v), want (%q, statusCompleted)", text, status, want)
	}
}

func TestExtractCodex_NoSignalIsUnknown(t *testing.T) {
	raw := []byte(`{"type":"item.completed","item":{"type":"agent_message","text":"still working, not done yet"}}
`)
	_, status := ExtractCodex(raw)
	if status != statusUnknown {
		t.Error("expected no completion signal without a status object or a keyword match")
	}
}

func TestExtractCodex_StatusObjectInText(t *testing.T) {
	raw := []byte(`{"type":"item.completed","item":{"type":"agent_message","text":"{\"status\":\"FAILED\"}"}}
`)
	_, status := ExtractCodex(raw)
	if status != statusFailed {
		t.Errorf("got status %v, want statusFailed", status)
	}
}

func TestExtractGemini_ConcatenatesAssistantMessages(t *testing.T) {
	raw := []byte(`{"role":"user","content":"do the thing"}
{"role":"assistant","content":"working on it"}
{"role":"assistant","content":"task completed successfully"}
`)
	text, status := ExtractGemini(raw)
	want := "working on it\ntask completed successfully"
	if text != want {
		t.Errorf("got text %q, want %q", text, want)
	}
	if status != statusCompleted {
		t.Error("expected completion keyword match on 'completed'")
	}
}

func TestExtractGemini_EmptyInputFallsBack(t *testing.T) {
	text, status := ExtractGemini([]byte(""))
	if text != "" || status != statusUnknown {
		t.Errorf("got (%q, %v), want (\"\", statusUnknown)", text, status)
	}
}

func TestDetectCompletion_StatusObjectTakesPriorityOverKeywords(t *testing.T) {
	text := `ran the task and completed it. {"status":"FAILED"}`
	if got := detectCompletion(text); got != statusFailed {
		t.Errorf("got %v, want statusFailed", got)
	}
}

func TestDetectCompletion_KeywordFallback(t *testing.T) {
	text := "wrote file output.go and ran the tests"
	if got := detectCompletion(text); got != statusCompleted {
		t.Errorf("got %v, want statusCompleted", got)
	}
}

func TestDetectCompletion_NoSignalIsUnknown(t *testing.T) {
	text := "investigating the root cause"
	if got := detectCompletion(text); got != statusUnknown {
		t.Errorf("got %v, want statusUnknown", got)
	}
}
