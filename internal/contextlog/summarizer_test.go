package contextlog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arshiii08/windbot/internal/storage"
)

// mockLogStore implements LogStore for testing.
type mockLogStore struct {
	logs     []storage.ErrorLog
	err      error
	gotLimit int
}

func (m *mockLogStore) ErrorLogs(ctx context.Context, turbineID, logDate string, limit int) ([]storage.ErrorLog, error) {
	m.gotLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.logs) {
		return m.logs[:limit], nil
	}
	return m.logs, nil
}

func TestSummarize_RendersBullets(t *testing.T) {
	base := time.Date(2025, 3, 25, 2, 30, 0, 0, time.UTC)
	mock := &mockLogStore{logs: []storage.ErrorLog{
		{TurbineID: "LH-003", ErrorTime: base, ShortDescription: "Gearbox oil temperature high", Duration: "00:42:10"},
		{TurbineID: "LH-003", ErrorTime: base.Add(3 * time.Hour), ShortDescription: "Pitch system warning", Duration: "00:05:00"},
	}}

	got, err := NewSummarizer(mock).Summarize(context.Background(), "LH-003", "2025-03-25")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	want := "• Gearbox oil temperature high (Duration: 00:42:10)\n" +
		"• Pitch system warning (Duration: 00:05:00)"
	if got != want {
		t.Errorf("Summarize = %q, want %q", got, want)
	}
}

// TestSummarize_EmptySentinel verifies the fixed sentinel replaces an empty
// result and is never the empty string.
func TestSummarize_EmptySentinel(t *testing.T) {
	got, err := NewSummarizer(&mockLogStore{}).Summarize(context.Background(), "LH-003", "2025-03-25")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != EmptySummary {
		t.Errorf("Summarize = %q, want sentinel %q", got, EmptySummary)
	}
	if strings.TrimSpace(got) == "" {
		t.Error("sentinel must not be empty")
	}
}

func TestSummarize_CapsAtFive(t *testing.T) {
	mock := &mockLogStore{}
	if _, err := NewSummarizer(mock).Summarize(context.Background(), "LH-003", "2025-03-25"); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if mock.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", mock.gotLimit)
	}
}

func TestSummarize_StoreFailure(t *testing.T) {
	mock := &mockLogStore{err: errors.New("connection reset")}
	_, err := NewSummarizer(mock).Summarize(context.Background(), "LH-003", "2025-03-25")
	if err == nil {
		t.Fatal("expected error for store failure")
	}
	if !strings.Contains(err.Error(), "LH-003") {
		t.Errorf("error = %q, want it to name the turbine", err.Error())
	}
}
