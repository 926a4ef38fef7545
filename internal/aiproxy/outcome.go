package aiproxy

import (
	"errors"
	"fmt"
)

// ApologyMessage replaces the answer whenever the call fails for any reason
// other than rate limiting.
const ApologyMessage = "I apologize, but I'm having trouble connecting right now. Please try again in a moment."

// ErrNoStream is returned when an event-stream response carries no body.
var ErrNoStream = errors.New("no stream available")

// RateLimitError signals that the caller has to back off. It carries no
// retry-after hint.
type RateLimitError struct {
	StatusCode int
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rate limit exceeded (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("rate limit exceeded (status %d)", e.StatusCode)
}

// IsRateLimited reports whether err is, or wraps, a *RateLimitError.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// HTTPError is a non-2xx endpoint response that is not a rate limit.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// OutcomeKind tags how a dispatch ended.
type OutcomeKind int

const (
	// OutcomeAnswer: the endpoint answered, as JSON or as a stream.
	OutcomeAnswer OutcomeKind = iota
	// OutcomeRateLimited: the endpoint asked the caller to back off.
	OutcomeRateLimited
	// OutcomeFallback: the call failed and Answer holds ApologyMessage.
	OutcomeFallback
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAnswer:
		return "answer"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFallback:
		return "fallback"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one dispatch. Err is set for OutcomeRateLimited
// (always a *RateLimitError) and for OutcomeFallback (the swallowed cause).
type Outcome struct {
	Kind   OutcomeKind
	Answer AnswerResult
	Err    error
}

func answered(answer AnswerResult) Outcome {
	return Outcome{Kind: OutcomeAnswer, Answer: answer}
}

func rateLimited(err *RateLimitError) Outcome {
	return Outcome{Kind: OutcomeRateLimited, Err: err}
}

func fallback(cause error) Outcome {
	return Outcome{
		Kind:   OutcomeFallback,
		Answer: AnswerResult{Content: ApologyMessage},
		Err:    cause,
	}
}

// RateLimited reports whether the caller must back off.
func (o Outcome) RateLimited() bool {
	return o.Kind == OutcomeRateLimited
}

// Result returns the answer the caller should show. The error is non-nil only
// for rate limiting; swallowed failures come back as the apology answer.
func (o Outcome) Result() (AnswerResult, error) {
	if o.Kind == OutcomeRateLimited {
		return AnswerResult{}, o.Err
	}
	return o.Answer, nil
}
