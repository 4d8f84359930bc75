package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arshiii08/windbot/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
	UserID string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
			UserID: r.Header.Get("X-User-ID"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAskCommand_PostsQuestion(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /ask": `{"answer":"Gearbox wear is the main driver.","explanations":[{"feature":"fault_time","shap_value":1.2}]}`,
	})

	client := ts.client()
	client.userID = "operator-12"

	resp, err := client.post(ctx, "/ask", map[string]any{"question": "Why might WTG-07 fail?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Answer string `json:"answer"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.Answer != "Gearbox wear is the main driver." {
		t.Errorf("answer = %q", result.Answer)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.UserID != "operator-12" {
		t.Errorf("X-User-ID = %q, want operator-12", r.UserID)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["question"] != "Why might WTG-07 fail?" {
		t.Errorf("body.question = %v", body["question"])
	}
}

func TestPredictCommand_SendsDate(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /predict_fault": `{"turbine_id":"WTG-07","log_date":"2024-03-15","fault_probability":0.83,"explanations":[]}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/predict_fault", map[string]any{"turbine_id": "WTG-07", "log_date": "2024-03-15"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		FaultProbability float64 `json:"fault_probability"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.FaultProbability != 0.83 {
		t.Errorf("probability = %v, want 0.83", result.FaultProbability)
	}
}

func TestChatsCommand_SendsAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /chats": `[{"question":"q","answer":"a","intent":"explanation","created_at":"2024-03-15T10:30:00Z"}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/chats?limit=20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", ts.requests[0].Auth)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"no data for given turbine/date","type":"not_found"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		httpClient: ts.Client(),
	}

	resp, err := client.post(ctx, "/predict_fault", map[string]any{"turbine_id": "WTG-99"})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want it to contain '404'", err.Error())
	}
}

func TestClient_ServerNotReachable(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

// --- load ---

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp CSV: %v", err)
	}
	return path
}

func featureCSV(t *testing.T) string {
	t.Helper()
	header := "turbine_id,log_date," + strings.Join(storage.FeatureColumns, ",")
	var values []string
	for i := range storage.FeatureColumns {
		values = append(values, fmt.Sprintf("%d.5", i))
	}
	row := "WTG-07,2024-03-15," + strings.Join(values, ",")
	return header + "\n" + row + "\n"
}

func TestLoadFeatures(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	path := writeTempCSV(t, "features.csv", featureCSV(t))

	n, err := loadFeatures(store, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("loaded %d rows, want 1", n)
	}

	row, err := store.FeatureRow(ctx, "WTG-07", "2024-03-15")
	if err != nil {
		t.Fatalf("fetching row: %v", err)
	}
	if len(row.Values) != len(storage.FeatureColumns) {
		t.Fatalf("values = %d, want %d", len(row.Values), len(storage.FeatureColumns))
	}
	if row.Values[0] != 0.5 {
		t.Errorf("first value = %v, want 0.5", row.Values[0])
	}
}

func TestLoadFeatures_BadHeader(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	path := writeTempCSV(t, "features.csv", "turbine_id,log_date,bogus_column\nWTG-07,2024-03-15,1.0\n")

	if _, err := loadFeatures(store, path); err == nil {
		t.Fatal("expected error for bad header")
	}
}

func TestLoadFeatures_BadValue(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	content := strings.Replace(featureCSV(t), "0.5", "not-a-number", 1)
	path := writeTempCSV(t, "features.csv", content)

	if _, err := loadFeatures(store, path); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

func TestLoadErrorLogs(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	content := "turbine_id,error_time,alarm_code,short_description,duration\n" +
		"WTG-07,2024-03-15 08:12:00,A-311,Gearbox oil overtemperature,00:42:00\n" +
		"WTG-07,2024-03-15T09:30:00Z,A-120,Pitch motor stall,00:05:00\n"
	path := writeTempCSV(t, "errors.csv", content)

	n, err := loadErrorLogs(store, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d entries, want 2", n)
	}

	logs, err := store.ErrorLogs(ctx, "WTG-07", "2024-03-15", 5)
	if err != nil {
		t.Fatalf("fetching logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	if logs[0].ShortDescription != "Gearbox oil overtemperature" {
		t.Errorf("first log = %q", logs[0].ShortDescription)
	}
}

func TestLoadErrorLogs_BadTimestamp(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	content := "turbine_id,error_time,alarm_code,short_description,duration\n" +
		"WTG-07,yesterday,A-311,Gearbox oil overtemperature,00:42:00\n"
	path := writeTempCSV(t, "errors.csv", content)

	if _, err := loadErrorLogs(store, path); err == nil {
		t.Fatal("expected error for bad timestamp")
	}
}

func TestLoadCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"load"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}
