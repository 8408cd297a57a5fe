package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"promptfabric/internal/llm"
)

func TestPostProcessorDisabledPassthrough(t *testing.T) {
	p := NewPostProcessor(&llm.MockGateway{Response: "INVALID"}, false, "validator", "generator", nil)

	for _, in := range []string{"", "hi", "  spaced \n\n\n\n text  "} {
		out := p.Process(context.Background(), in, "prompt", "")
		if out.Response != in || !out.Valid || out.Validated || len(out.Issues) != 0 {
			t.Fatalf("expected passthrough for %q, got %+v", in, out)
		}
	}
}

func TestPostProcessorBasicIssues(t *testing.T) {
	p := NewPostProcessor(nil, true, "", "generator", nil)

	cases := []struct {
		in    string
		issue string
	}{
		{in: "   ", issue: IssueEmptyResponse},
		{in: "short", issue: IssueResponseTooShort},
		{in: "as of my knowledge cutoff, the answer is unclear", issue: IssuePotentialHallucination},
		{in: "I don't know because nobody told me", issue: IssuePotentialHallucination},
	}
	for _, tc := range cases {
		out := p.Process(context.Background(), tc.in, "prompt", "")
		if out.Valid {
			t.Fatalf("expected invalid for %q", tc.in)
		}
		if !out.Validated {
			t.Fatalf("expected validated=true")
		}
		found := false
		for _, i := range out.Issues {
			if i == tc.issue {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected issue %s for %q, got %v", tc.issue, tc.in, out.Issues)
		}
	}
}

func TestPostProcessorFormatsResponse(t *testing.T) {
	p := NewPostProcessor(nil, true, "", "generator", nil)

	in := "  First paragraph.\n\n\n\n\nSecond paragraph.\n```go  \nfmt.Println(1)\r\n```\n"
	out := p.Process(context.Background(), in, "prompt", "")
	want := "First paragraph.\n\nSecond paragraph.\n```go\nfmt.Println(1)\n```"
	if out.Response != want {
		t.Fatalf("unexpected formatting:\n%q\nwant\n%q", out.Response, want)
	}
	if !out.Valid || len(out.Issues) != 0 {
		t.Fatalf("expected valid response, got %+v", out)
	}
}

func TestPostProcessorModelValidation(t *testing.T) {
	t.Run("invalid verdict", func(t *testing.T) {
		gw := &llm.MockGateway{Response: "INVALID"}
		p := NewPostProcessor(gw, true, "validator", "generator", nil)
		out := p.Process(context.Background(), "A perfectly fine answer.", "prompt", "ctx")
		if out.Valid {
			t.Fatalf("expected invalid")
		}
		if len(out.Issues) != 1 || out.Issues[0] != IssueLLMValidationFailed {
			t.Fatalf("expected llm_validation_failed, got %v", out.Issues)
		}
		call := gw.GenerateCalls[0]
		if call.Model != "validator" || call.Temperature == nil || *call.Temperature != 0.1 || call.MaxTokens != 10 {
			t.Fatalf("unexpected validator request %+v", call)
		}
		if !strings.Contains(call.Prompt, "Context provided:\nctx") {
			t.Fatalf("expected context in validator prompt")
		}
	})

	t.Run("valid verdict", func(t *testing.T) {
		gw := &llm.MockGateway{Response: " valid."}
		p := NewPostProcessor(gw, true, "validator", "generator", nil)
		out := p.Process(context.Background(), "A perfectly fine answer.", "prompt", "")
		if !out.Valid || len(out.Issues) != 0 {
			t.Fatalf("expected valid, got %+v", out)
		}
	})

	t.Run("basic issue still invalidates", func(t *testing.T) {
		gw := &llm.MockGateway{Response: "VALID"}
		p := NewPostProcessor(gw, true, "validator", "generator", nil)
		out := p.Process(context.Background(), "tiny", "prompt", "")
		if out.Valid {
			t.Fatalf("expected basic issue to invalidate")
		}
	})

	t.Run("validator failure fails open", func(t *testing.T) {
		gw := &llm.MockGateway{Err: errors.New("timeout")}
		p := NewPostProcessor(gw, true, "validator", "generator", nil)
		out := p.Process(context.Background(), "A perfectly fine answer.", "prompt", "")
		if !out.Valid {
			t.Fatalf("expected fail-open to valid")
		}
		if len(out.Issues) != 1 || !strings.HasPrefix(out.Issues[0], "validation_error:") {
			t.Fatalf("expected validation_error issue, got %v", out.Issues)
		}
	})

	t.Run("same model skips validation", func(t *testing.T) {
		gw := &llm.MockGateway{Response: "INVALID"}
		p := NewPostProcessor(gw, true, "generator", "generator", nil)
		out := p.Process(context.Background(), "A perfectly fine answer.", "prompt", "")
		if !out.Valid || len(gw.GenerateCalls) != 0 {
			t.Fatalf("expected no model validation, got %+v calls=%d", out, len(gw.GenerateCalls))
		}
	})
}

func TestJudgedValid(t *testing.T) {
	cases := map[string]bool{
		"VALID":          true,
		"valid":          true,
		"\"VALID\"":      true,
		"INVALID":        false,
		"Invalid.":       false,
		"VALID? INVALID": false,
		"unsure":         false,
	}
	for in, want := range cases {
		if got := judgedValid(in); got != want {
			t.Fatalf("judgedValid(%q) = %t, want %t", in, got, want)
		}
	}
}
