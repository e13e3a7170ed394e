package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/skillbit/marketplace/pkg/config"
)

// ErrUnavailable is returned when the oracle cannot produce a usable
// response. Callers must degrade gracefully rather than fail the flow.
var ErrUnavailable = errors.New("screening oracle unavailable")

// Question is one generated multiple-choice question.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correct_option"`
}

// Client scores candidate profiles against jobs and generates
// interview/quiz questions. Implementations are opaque remote services.
type Client interface {
	Score(ctx context.Context, resume, jobDescription string) (int, error)
	GenerateQuestion(ctx context.Context, topic string) (*Question, error)
}

// HTTPClient talks to an OpenAI-compatible chat-completions endpoint.
type HTTPClient struct {
	client *http.Client
	logger *slog.Logger
	cfg    config.APIConfig
}

// NewHTTPClient returns a chat-completions backed oracle client.
func NewHTTPClient(logger *slog.Logger, cfg config.APIConfig) *HTTPClient {
	timeout := cfg.OracleTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
		logger: logger,
		cfg:    cfg,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Score asks the oracle to rate a resume against a job description on a
// 0-100 scale. Any malformed or out-of-range reply maps to ErrUnavailable.
func (c *HTTPClient) Score(ctx context.Context, resume, jobDescription string) (int, error) {
	prompt := fmt.Sprintf(
		"Rate how well this resume matches the job description on a scale of 0 to 100. Reply with only the number.\n\nResume:\n%s\n\nJob description:\n%s",
		resume, jobDescription,
	)
	content, err := c.complete(ctx, prompt)
	if err != nil {
		return 0, err
	}
	score, err := strconv.Atoi(strings.TrimSpace(content))
	if err != nil || score < 0 || score > 100 {
		c.logger.Warn("oracle returned unparsable score", "content", content)
		return 0, ErrUnavailable
	}
	return score, nil
}

// GenerateQuestion asks the oracle for one multiple-choice question on the
// topic. The reply must be a JSON object with question, options and
// correct_option fields; anything else maps to ErrUnavailable.
func (c *HTTPClient) GenerateQuestion(ctx context.Context, topic string) (*Question, error) {
	prompt := fmt.Sprintf(
		"Generate one multiple-choice question about %s. Reply with only a JSON object: {\"question\": \"...\", \"options\": [\"...\", \"...\", \"...\", \"...\"], \"correct_option\": \"...\"}. correct_option must be one of options.",
		topic,
	)
	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var q Question
	if err := json.Unmarshal([]byte(extractJSON(content)), &q); err != nil {
		c.logger.Warn("oracle returned unparsable question", "error", err)
		return nil, ErrUnavailable
	}
	if !q.valid() {
		return nil, ErrUnavailable
	}
	return &q, nil
}

func (c *HTTPClient) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.cfg.OracleModel,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OracleURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.OracleAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.OracleAPIKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("oracle request failed", "error", err)
		return "", ErrUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		c.logger.Warn("oracle returned error", "status", resp.Status)
		return "", ErrUnavailable
	}
	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", ErrUnavailable
	}
	if len(parsed.Choices) == 0 {
		return "", ErrUnavailable
	}
	return parsed.Choices[0].Message.Content, nil
}

func (q *Question) valid() bool {
	if strings.TrimSpace(q.Text) == "" || len(q.Options) < 2 {
		return false
	}
	for _, opt := range q.Options {
		if opt == q.CorrectOption {
			return true
		}
	}
	return false
}

// extractJSON trims any prose the model wraps around the JSON object.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
