package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"log/slog"

	"github.com/skillbit/marketplace/pkg/config"
)

func TestScoreParsesNumericReply(t *testing.T) {
	server := chatServer(t, "87")
	defer server.Close()

	client := newTestClient(server.URL)
	score, err := client.Score(context.Background(), "resume text", "job description")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if score != 87 {
		t.Fatalf("expected score 87, got %d", score)
	}
}

func TestScoreTrimsWhitespace(t *testing.T) {
	server := chatServer(t, "  42\n")
	defer server.Close()

	client := newTestClient(server.URL)
	score, err := client.Score(context.Background(), "resume", "job")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if score != 42 {
		t.Fatalf("expected score 42, got %d", score)
	}
}

func TestScoreRejectsProseReply(t *testing.T) {
	server := chatServer(t, "I would rate this resume an 87 out of 100.")
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Score(context.Background(), "resume", "job"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestScoreRejectsOutOfRangeReply(t *testing.T) {
	server := chatServer(t, "150")
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Score(context.Background(), "resume", "job"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestScoreMapsServerErrorToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Score(context.Background(), "resume", "job"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestScoreMapsConnectionFailureToUnavailable(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	if _, err := client.Score(context.Background(), "resume", "job"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGenerateQuestionParsesJSONReply(t *testing.T) {
	reply := `{"question": "What balances an AVL tree?", "options": ["Rotations", "Hashing", "Sorting", "Recoloring"], "correct_option": "Rotations"}`
	server := chatServer(t, reply)
	defer server.Close()

	client := newTestClient(server.URL)
	q, err := client.GenerateQuestion(context.Background(), "trees")
	if err != nil {
		t.Fatalf("GenerateQuestion returned error: %v", err)
	}
	if q.Text != "What balances an AVL tree?" {
		t.Fatalf("unexpected question text %q", q.Text)
	}
	if len(q.Options) != 4 || q.CorrectOption != "Rotations" {
		t.Fatalf("unexpected question payload %+v", q)
	}
}

func TestGenerateQuestionStripsSurroundingProse(t *testing.T) {
	reply := "Here is your question:\n```json\n{\"question\": \"Q?\", \"options\": [\"A\", \"B\"], \"correct_option\": \"B\"}\n```\nGood luck!"
	server := chatServer(t, reply)
	defer server.Close()

	client := newTestClient(server.URL)
	q, err := client.GenerateQuestion(context.Background(), "trees")
	if err != nil {
		t.Fatalf("GenerateQuestion returned error: %v", err)
	}
	if q.CorrectOption != "B" {
		t.Fatalf("expected correct option B, got %q", q.CorrectOption)
	}
}

func TestGenerateQuestionRejectsCorrectOptionOutsideOptions(t *testing.T) {
	reply := `{"question": "Q?", "options": ["A", "B"], "correct_option": "C"}`
	server := chatServer(t, reply)
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.GenerateQuestion(context.Background(), "trees"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGenerateQuestionRejectsTooFewOptions(t *testing.T) {
	reply := `{"question": "Q?", "options": ["A"], "correct_option": "A"}`
	server := chatServer(t, reply)
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.GenerateQuestion(context.Background(), "trees"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCompleteSendsBearerAuth(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeChatReply(w, "10")
	}))
	defer server.Close()

	client := NewHTTPClient(discardLogger(), config.APIConfig{
		OracleURL:    server.URL,
		OracleModel:  "test-model",
		OracleAPIKey: "secret-key",
	})
	if _, err := client.Score(context.Background(), "resume", "job"); err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode chat request: %v", err)
		}
		if len(req.Messages) == 0 {
			t.Error("expected at least one chat message")
		}
		writeChatReply(w, content)
	}))
}

func writeChatReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		Choices: []struct {
			Message chatMessage `json:"message"`
		}{
			{Message: chatMessage{Role: "assistant", Content: content}},
		},
	})
}

func newTestClient(url string) *HTTPClient {
	return NewHTTPClient(discardLogger(), config.APIConfig{OracleURL: url, OracleModel: "test-model"})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
