package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/skywatch/internal/ingest"
)

func finishedRun(outcome ingest.Outcome) *ingest.Run {
	done := time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC)
	return &ingest.Run{
		ID:             "01JN123",
		StartedAt:      done.Add(-12 * time.Second),
		CompletedAt:    &done,
		Outcome:        outcome,
		AlertsImported: 7,
	}
}

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.Send(context.Background(), finishedRun(ingest.OutcomeSuccess)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields = 3 blocks for a clean run
	if len(blocks) != 3 {
		t.Errorf("blocks count = %d, want 3", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "Complete") {
		t.Errorf("header text = %q, want to contain Complete", headerText)
	}
	if !strings.Contains(headerText, ":white_check_mark:") {
		t.Errorf("header text = %q, want success emoji", headerText)
	}

	fields := blocks[2].(map[string]any)["fields"].([]any)
	var sawImported bool
	for _, f := range fields {
		if strings.Contains(f.(map[string]any)["text"].(string), "*Imported:* 7") {
			sawImported = true
		}
	}
	if !sawImported {
		t.Error("fields missing imported count")
	}
}

func TestSend_FailedRunIncludesErrorBlock(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	run := finishedRun(ingest.OutcomeFailed)
	run.ErrorDetail = "feed auth: feed rejected api key (403)"

	n := New(srv.URL)
	if err := n.Send(context.Background(), run); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	// header, divider, fields, divider, error = 5 blocks
	if len(blocks) != 5 {
		t.Fatalf("blocks count = %d, want 5", len(blocks))
	}

	headerText := blocks[0].(map[string]any)["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, ":x:") {
		t.Errorf("header text = %q, want failure emoji", headerText)
	}

	errText := blocks[4].(map[string]any)["text"].(map[string]any)["text"].(string)
	if !strings.Contains(errText, "rejected api key") {
		t.Errorf("error block = %q, want error detail", errText)
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.Send(context.Background(), finishedRun(ingest.OutcomeSuccess)); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_TruncatesLongErrorDetail(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	run := finishedRun(ingest.OutcomeFailed)
	run.ErrorDetail = strings.Repeat("x", 4000)

	n := New(srv.URL)
	if err := n.Send(context.Background(), run); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	text := blocks[4].(map[string]any)["text"].(map[string]any)["text"].(string)

	// Text wraps the detail in ``` fences; the detail itself is capped at
	// maxDetailLen chars plus the ellipsis.
	if len(text) > maxDetailLen+len("......")+len("``````") {
		t.Errorf("error text length = %d, expected truncation around %d", len(text), maxDetailLen)
	}
	if !strings.Contains(text, "...") {
		t.Error("expected truncated detail to contain ellipsis")
	}
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Send(context.Background(), finishedRun(ingest.OutcomeSuccess))
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}

func FuzzBuildMessage(f *testing.F) {
	f.Add("run-1", "Success", "", 0)
	f.Add("run-2", "Failed", "feed auth: rejected", 3)
	f.Add("", "", strings.Repeat("x", 10000), -1)
	f.Add("run\x00id", "Pending", "detail\nwith\tescapes ```code```", 1<<20)

	f.Fuzz(func(t *testing.T, id, outcome, detail string, imported int) {
		done := time.Now().UTC()
		run := &ingest.Run{
			ID:             id,
			StartedAt:      done.Add(-time.Second),
			CompletedAt:    &done,
			Outcome:        ingest.Outcome(outcome),
			AlertsImported: imported,
			ErrorDetail:    detail,
		}

		// Must not panic and must produce marshalable JSON.
		msg := buildMessage(run)
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}
		if _, ok := decoded["blocks"].([]any); !ok {
			t.Fatal("expected blocks array")
		}
	})
}
