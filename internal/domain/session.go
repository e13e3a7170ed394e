package domain

import "time"

// Session kinds.
const (
	SessionInterview = "interview"
	SessionQuiz      = "quiz"
)

// SessionAttempt is one timed question-answer cycle. Exactly one scoring
// event may be applied to an attempt: Consumed flips on the first answer or
// on deadline expiry, and every later event is a no-op.
type SessionAttempt struct {
	ID            string
	UserEmail     string
	Kind          string
	Topic         string
	Question      string
	Options       []string
	CorrectOption string
	Deadline      time.Time
	Consumed      bool
	Correct       bool
	TimedOut      bool
}
