package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	l.Info("test message", slog.String("key", "value"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}

	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
}

func TestSetup_IncludesTimeField(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Info("test")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

func TestSetup_IncludesLevelField(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Warn("warning test")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}
}

func TestSetup_MultipleAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Info("external fetch completed",
		slog.String("event_id", "e-123"),
		slog.Int64("listing_id", 456),
		slog.String("url", "https://jobs.example.com/jobs?country=Spain"),
		slog.Int("http_status", 200),
		slog.Int("listings_count", 25),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if entry["event_id"] != "e-123" {
		t.Errorf("event_id = %q, want %q", entry["event_id"], "e-123")
	}
	if entry["listing_id"] != float64(456) {
		t.Errorf("listing_id = %v, want %v", entry["listing_id"], 456)
	}
	if entry["url"] != "https://jobs.example.com/jobs?country=Spain" {
		t.Errorf("url = %q, want %q", entry["url"], "https://jobs.example.com/jobs?country=Spain")
	}
	if entry["http_status"] != float64(200) {
		t.Errorf("http_status = %v, want %v", entry["http_status"], 200)
	}
	if entry["listings_count"] != float64(25) {
		t.Errorf("listings_count = %v, want %v", entry["listings_count"], 25)
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v\nraw: %s", err, buf.String())
	}

	if entry["msg"] != "global test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "global test")
	}
	if entry["test_key"] != "test_val" {
		t.Errorf("test_key = %q, want %q", entry["test_key"], "test_val")
	}
}

func TestSetLevel_FiltersLowerLevels(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel("info") })

	var buf bytes.Buffer
	l := Setup(&buf)

	if err := SetLevel("error"); err != nil {
		t.Fatalf("SetLevel returned error: %v", err)
	}

	l.Warn("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("expected no output below error level, got %s", buf.String())
	}

	l.Error("kept")
	if buf.Len() == 0 {
		t.Error("expected error log to be written")
	}
}

func TestSetLevel_Debug(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel("info") })

	var buf bytes.Buffer
	l := Setup(&buf)

	if err := SetLevel("DEBUG"); err != nil {
		t.Fatalf("SetLevel returned error: %v", err)
	}
	l.Debug("debug message")

	if buf.Len() == 0 {
		t.Error("expected debug log to be written")
	}
}

func TestSetLevel_Unknown_ReturnsError(t *testing.T) {
	if err := SetLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level, got nil")
	}
}
