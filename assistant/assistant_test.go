package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/it-spirit/spiritsearch/common/httpx"
	"github.com/it-spirit/spiritsearch/config"
)

// fakeAssistants emulates the Assistants v2 endpoints used by the client.
func fakeAssistants(t *testing.T, runStatuses []string, reply string) *httptest.Server {
	t.Helper()
	var pollCount int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "thread_1"})
	})
	mux.HandleFunc("POST /threads/thread_1/messages", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "msg_1"})
	})
	mux.HandleFunc("POST /threads/thread_1/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("OpenAI-Beta") != "assistants=v2" {
			t.Error("missing assistants=v2 header")
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "run_1", "status": runStatuses[0]})
	})
	mux.HandleFunc("GET /threads/thread_1/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		i := atomic.AddInt64(&pollCount, 1)
		status := runStatuses[len(runStatuses)-1]
		if int(i) < len(runStatuses) {
			status = runStatuses[i]
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "run_1", "status": status})
	})
	mux.HandleFunc("GET /threads/thread_1/messages", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"role": "assistant",
					"content": []map[string]any{
						{"type": "text", "text": map[string]string{"value": reply}},
					},
				},
			},
		})
	})
	return httptest.NewServer(mux)
}

func newTestClient(baseURL string) *Client {
	cfg := config.AssistantsConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		PollIntervalMS: 1,
		MaxPollSeconds: 2,
	}
	return New(cfg, httpx.NewFromConfig(nil))
}

func TestAskCompletesAfterPolling(t *testing.T) {
	srv := fakeAssistants(t, []string{"queued", "in_progress", "completed"}, "Voici la procédure.")
	defer srv.Close()
	c := newTestClient(srv.URL)
	answer, err := c.Ask(context.Background(), "asst_sap", "Comment configurer les taxes ?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer != "Voici la procédure." {
		t.Errorf("unexpected answer %q", answer)
	}
}

func TestAskFailedRun(t *testing.T) {
	srv := fakeAssistants(t, []string{"queued", "failed"}, "")
	defer srv.Close()
	c := newTestClient(srv.URL)
	_, err := c.Ask(context.Background(), "asst_sap", "question assez longue")
	if err == nil || !strings.Contains(err.Error(), "run ended") {
		t.Fatalf("expected run failure, got %v", err)
	}
}

func TestAskContextCancelled(t *testing.T) {
	srv := fakeAssistants(t, []string{"queued", "queued", "queued"}, "")
	defer srv.Close()
	c := newTestClient(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Ask(ctx, "asst_sap", "question assez longue"); err == nil {
		t.Fatal("expected context error")
	}
}
