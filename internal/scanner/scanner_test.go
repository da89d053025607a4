package scanner

import (
	"context"
	"os/exec"
	"testing"

	"logai/pkg/config"
)

func TestParseLineSplitsFileLineContent(t *testing.T) {
	m, ok := parseLine("/var/log/hub-ca-auth/app.log:42:connection refused", "hub-ca-auth")
	if !ok {
		t.Fatalf("expected parseLine to succeed")
	}
	if m.Service != "hub-ca-auth" {
		t.Errorf("expected service %q, got %q", "hub-ca-auth", m.Service)
	}
	if m.FilePath != "/var/log/hub-ca-auth/app.log" {
		t.Errorf("expected file path %q, got %q", "/var/log/hub-ca-auth/app.log", m.FilePath)
	}
	if m.Line != 42 {
		t.Errorf("expected line 42, got %d", m.Line)
	}
	if m.Content != "connection refused" {
		t.Errorf("expected raw content, got %v", m.Content)
	}
}

func TestParseLineDecodesJSONContent(t *testing.T) {
	m, ok := parseLine(`a.log:7:{"level":"error","msg":"boom"}`, "svc")
	if !ok {
		t.Fatalf("expected parseLine to succeed")
	}
	decoded, ok := m.Content.(map[string]any)
	if !ok {
		t.Fatalf("expected decoded JSON object, got %T", m.Content)
	}
	if decoded["msg"] != "boom" {
		t.Errorf("expected msg %q, got %v", "boom", decoded["msg"])
	}
}

func TestParseLineRejectsLinesMissingSeparators(t *testing.T) {
	cases := []string{
		"",
		"no-colons-here",
		"only-one-colon:here",
	}
	for _, raw := range cases {
		if _, ok := parseLine(raw, "svc"); ok {
			t.Errorf("expected parseLine(%q) to fail", raw)
		}
	}
}

func TestParseLineRejectsNonNumericLineNumber(t *testing.T) {
	if _, ok := parseLine("a.log:not-a-number:content", "svc"); ok {
		t.Errorf("expected parseLine to reject a non-numeric line number")
	}
}

func TestParseLineAllowsColonsInContent(t *testing.T) {
	m, ok := parseLine("a.log:1:error: connection refused: timeout", "svc")
	if !ok {
		t.Fatalf("expected parseLine to succeed")
	}
	if m.Content != "error: connection refused: timeout" {
		t.Errorf("expected content to retain embedded colons, got %v", m.Content)
	}
}

func TestDecodeContentPassesThroughPlainText(t *testing.T) {
	got := decodeContent("plain text line")
	if got != "plain text line" {
		t.Errorf("expected plain text unchanged, got %v", got)
	}
}

func TestDecodeContentPassesThroughBlank(t *testing.T) {
	got := decodeContent("   ")
	if got != "   " {
		t.Errorf("expected blank content unchanged, got %v", got)
	}
}

func TestDecodeContentDecodesObjectsArraysAndStrings(t *testing.T) {
	if got := decodeContent(`{"a":1}`); got == nil {
		t.Errorf("expected object to decode, got nil")
	} else if m, ok := got.(map[string]any); !ok || m["a"] != 1.0 {
		t.Errorf("expected decoded object with a=1, got %v", got)
	}

	if got := decodeContent(`[1,2,3]`); got == nil {
		t.Errorf("expected array to decode, got nil")
	} else if _, ok := got.([]any); !ok {
		t.Errorf("expected decoded slice, got %T", got)
	}

	if got := decodeContent(`"quoted"`); got != "quoted" {
		t.Errorf("expected decoded string %q, got %v", "quoted", got)
	}
}

func TestDecodeContentFallsBackOnInvalidJSON(t *testing.T) {
	raw := `{not valid json`
	got := decodeContent(raw)
	if got != raw {
		t.Errorf("expected invalid JSON to fall back to raw text, got %v", got)
	}
}

func TestIsNoMatchExitTrueOnExitCodeOne(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 1")
	err := cmd.Run()
	if !isNoMatchExit(err) {
		t.Errorf("expected exit code 1 to be treated as no-match")
	}
}

func TestIsNoMatchExitFalseOnOtherExitCodes(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 2")
	err := cmd.Run()
	if isNoMatchExit(err) {
		t.Errorf("expected exit code 2 to not be treated as no-match")
	}
}

func TestIsNoMatchExitFalseOnNonExitErrors(t *testing.T) {
	if isNoMatchExit(nil) {
		t.Errorf("expected nil error to not be treated as no-match")
	}
	if isNoMatchExit(&exec.Error{Name: "missing", Err: exec.ErrNotFound}) {
		t.Errorf("expected a non-ExitError to not be treated as no-match")
	}
}

func TestCommandPrefersPrimaryWhenAvailable(t *testing.T) {
	s := New(config.ScannerConfig{PrimaryBinary: "true"})
	binary, _, stdinFeed := s.command([]string{"/var/log/a.log"}, "pattern")
	if binary != "true" {
		t.Errorf("expected primary binary %q, got %q", "true", binary)
	}
	if stdinFeed {
		t.Errorf("expected primary path to not feed stdin")
	}
}

func TestCommandFallsBackWhenPrimaryMissing(t *testing.T) {
	s := New(config.ScannerConfig{PrimaryBinary: "definitely-not-a-real-binary-xyz", FallbackBinary: "cat"})
	binary, args, stdinFeed := s.command([]string{"/var/log/a.log"}, "pattern")
	if binary != "cat" {
		t.Errorf("expected fallback binary %q, got %q", "cat", binary)
	}
	if !stdinFeed {
		t.Errorf("expected fallback path to feed stdin")
	}
	if len(args) == 0 {
		t.Errorf("expected fallback args to be non-empty")
	}
}

func TestBackendMatchesCommandSelection(t *testing.T) {
	s := New(config.ScannerConfig{PrimaryBinary: "definitely-not-a-real-binary-xyz", FallbackBinary: "cat"})
	if got := s.Backend(); got != "cat" {
		t.Errorf("expected Backend() %q, got %q", "cat", got)
	}

	s2 := New(config.ScannerConfig{PrimaryBinary: "true"})
	if got := s2.Backend(); got != "true" {
		t.Errorf("expected Backend() %q, got %q", "true", got)
	}
}

func TestScanReturnsNilForEmptyPaths(t *testing.T) {
	s := New(config.ScannerConfig{PrimaryBinary: "true"})
	matches, err := s.Scan(context.Background(), nil, "pattern", "svc", nil)
	if err != nil {
		t.Fatalf("expected no error for empty paths, got %v", err)
	}
	if matches != nil {
		t.Errorf("expected nil matches for empty paths, got %v", matches)
	}
}
