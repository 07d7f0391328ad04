package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"parley/pkg/llm"
)

// ============================================================================
// fs_write: create mode
// ============================================================================

func TestWriteTool_CreatesFile(t *testing.T) {
	fsys, _ := tempFS(t)

	result := invoke(t, NewWriteTool(fsys), `{"path":"new/file.txt","content":"hello"}`)
	if result.IsError {
		t.Fatalf("unexpected error payload: %s", result.Content)
	}
	if !strings.Contains(result.Content, `"success":true`) {
		t.Errorf("expected success response, got %q", result.Content)
	}
	got, err := fsys.Read("new/file.txt")
	if err != nil || got != "hello" {
		t.Errorf("file not created: %q, %v", got, err)
	}
}

func TestWriteTool_CreateExistingFails(t *testing.T) {
	fsys, _ := tempFS(t)
	if err := fsys.Write("a.txt", "old"); err != nil {
		t.Fatal(err)
	}

	result := invoke(t, NewWriteTool(fsys), `{"path":"a.txt","content":"new"}`)
	if !result.IsError || !strings.Contains(result.Content, "file exists") {
		t.Errorf("expected file-exists payload, got %+v", result)
	}
	// The original survives.
	if got, _ := fsys.Read("a.txt"); got != "old" {
		t.Errorf("existing file was clobbered: %q", got)
	}
}

// ============================================================================
// fs_write: replace mode
// ============================================================================

func TestWriteTool_ReplaceExactlyOnce(t *testing.T) {
	fsys, _ := tempFS(t)
	if err := fsys.Write("a.txt", "alpha beta gamma"); err != nil {
		t.Fatal(err)
	}

	result := invoke(t, NewWriteTool(fsys), `{"path":"a.txt","old_string":"beta","new_string":"BETA"}`)
	if result.IsError {
		t.Fatalf("unexpected error payload: %s", result.Content)
	}
	if got, _ := fsys.Read("a.txt"); got != "alpha BETA gamma" {
		t.Errorf("replacement not applied: %q", got)
	}
}

func TestWriteTool_ReplaceDeletesWithEmptyNew(t *testing.T) {
	fsys, _ := tempFS(t)
	if err := fsys.Write("a.txt", "keep DROP keep"); err != nil {
		t.Fatal(err)
	}

	result := invoke(t, NewWriteTool(fsys), `{"path":"a.txt","old_string":" DROP","new_string":""}`)
	if result.IsError {
		t.Fatalf("unexpected error payload: %s", result.Content)
	}
	if got, _ := fsys.Read("a.txt"); got != "keep keep" {
		t.Errorf("deletion not applied: %q", got)
	}
}

func TestWriteTool_ReplaceNotFound(t *testing.T) {
	fsys, _ := tempFS(t)
	if err := fsys.Write("a.txt", "content"); err != nil {
		t.Fatal(err)
	}

	result := invoke(t, NewWriteTool(fsys), `{"path":"a.txt","old_string":"absent","new_string":"x"}`)
	if !result.IsError || !strings.Contains(result.Content, "not found") {
		t.Errorf("expected not-found payload, got %+v", result)
	}
}

func TestWriteTool_ReplaceAmbiguous(t *testing.T) {
	fsys, _ := tempFS(t)
	if err := fsys.Write("a.txt", "dup and dup"); err != nil {
		t.Fatal(err)
	}

	result := invoke(t, NewWriteTool(fsys), `{"path":"a.txt","old_string":"dup","new_string":"x"}`)
	if !result.IsError || !strings.Contains(result.Content, "matches 2 locations") {
		t.Errorf("expected ambiguity payload, got %+v", result)
	}
	// Nothing was changed.
	if got, _ := fsys.Read("a.txt"); got != "dup and dup" {
		t.Errorf("ambiguous replace must not modify the file: %q", got)
	}
}

// ============================================================================
// fs_write: mode selection and apply-phase failures
// ============================================================================

func TestWriteTool_AmbiguousModeRejected(t *testing.T) {
	fsys, _ := tempFS(t)

	result := invoke(t, NewWriteTool(fsys), `{"path":"a.txt","content":"x","old_string":"y","new_string":"z"}`)
	if !result.IsError {
		t.Errorf("mixed create/edit arguments must be rejected, got %+v", result)
	}
}

func TestWriteTool_ReadOnlyDenialIsErrorPayload(t *testing.T) {
	local, _ := tempFS(t)
	tool := NewWriteTool(ReadOnly(local))

	use := llm.ToolUse{ID: "tu", Name: ToolFSWrite, Input: json.RawMessage(`{"path":"a.txt","content":"x"}`)}
	pending, err := tool.Compute(context.Background(), use)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	result, err := tool.Apply(context.Background(), pending)
	if err != nil {
		t.Fatalf("a denied write reports to the model, it does not abort: %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "read-only") {
		t.Errorf("expected read-only error payload, got %+v", result)
	}
}
