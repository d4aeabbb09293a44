// Package parser turns raw model output into domain objects. Model output
// is hostile input: it may wrap the JSON in markdown fences, surround it
// with commentary, or contain no JSON at all. Extraction is isolated here
// so every provider's output goes through the same path.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/campaign-agent/internal/models"
)

// ErrEmpty means the buffer held nothing to parse. Callers treat it as
// benign: a stream that produced no text yet is not a malformed stream.
var ErrEmpty = errors.New("empty output buffer")

// ErrNoJSON means text was present but no JSON object could be located.
// The error message carries a bounded excerpt of the raw output for
// diagnostics.
var ErrNoJSON = errors.New("no JSON object found in output")

const rawExcerptLimit = 300

// ExtractJSON locates the JSON object inside raw model output. A fenced
// ```json block wins when present; otherwise the first balanced top-level
// object is taken by brace scanning. The scan is string-aware, so braces
// inside JSON string values never unbalance it.
func ExtractJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmpty
	}

	if fenced, ok := extractFenced(trimmed); ok {
		return fenced, nil
	}
	if object, ok := scanObject(trimmed); ok {
		return object, nil
	}

	excerpt := trimmed
	if len(excerpt) > rawExcerptLimit {
		excerpt = excerpt[:rawExcerptLimit] + "..."
	}
	return "", fmt.Errorf("%w: %q", ErrNoJSON, excerpt)
}

func extractFenced(s string) (string, bool) {
	start := strings.Index(s, "```json")
	if start == -1 {
		return "", false
	}
	body := s[start+len("```json"):]
	end := strings.Index(body, "```")
	if end == -1 {
		// Unterminated fence, common when a stream was cut off. Fall
		// back to scanning what is there.
		return scanObject(body)
	}
	return scanObject(body[:end])
}

// scanObject returns the first balanced {...} span in s.
func scanObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Result is the domain content recovered from one generation call. Any of
// the fields may be absent; an empty object {} yields a Result with
// nothing set, which callers surface as a warning rather than an error.
type Result struct {
	Analysis    *models.TopicAnalysis
	Posts       []*models.Post
	Suggestions []models.SchedulingSuggestion
}

// Empty reports whether the result carried no recognized content.
func (r *Result) Empty() bool {
	return r.Analysis == nil && len(r.Posts) == 0 && len(r.Suggestions) == 0
}

type envelope struct {
	TopicAnalysis         *models.TopicAnalysis         `json:"topic_analysis"`
	Posts                 []*models.Post                `json:"posts"`
	SchedulingSuggestions []models.SchedulingSuggestion `json:"scheduling_suggestions"`
}

// Parse extracts and decodes the campaign envelope from raw model output.
// Every recovered post gets a fresh ID and idle sub-states; any state the
// model hallucinated into those fields is discarded.
func Parse(raw string) (*Result, error) {
	object, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal([]byte(object), &env); err != nil {
		excerpt := object
		if len(excerpt) > rawExcerptLimit {
			excerpt = excerpt[:rawExcerptLimit] + "..."
		}
		return nil, fmt.Errorf("malformed JSON in output: %w (raw: %q)", err, excerpt)
	}

	result := &Result{
		Analysis:    env.TopicAnalysis,
		Suggestions: env.SchedulingSuggestions,
	}
	for _, post := range env.Posts {
		if post == nil {
			continue
		}
		result.Posts = append(result.Posts, initPost(post))
	}
	return result, nil
}

func initPost(post *models.Post) *models.Post {
	post.ID = uuid.NewString()
	post.ImageStatus = models.ImageIdle
	post.ImageData = ""
	post.ImageError = ""
	post.WordPressStatus = models.WordPressIdle
	post.WordPressURL = ""
	post.WordPressError = ""
	post.IsScheduled = false
	post.ScheduledAt = nil
	return post
}

type rewriteEnvelope struct {
	Text string `json:"text"`
}

// ParseRewrite decodes the single-field rewrite response.
func ParseRewrite(raw string) (string, error) {
	object, err := ExtractJSON(raw)
	if err != nil {
		return "", err
	}
	var env rewriteEnvelope
	if err := json.Unmarshal([]byte(object), &env); err != nil {
		return "", fmt.Errorf("malformed rewrite JSON: %w", err)
	}
	if env.Text == "" {
		return "", errors.New("rewrite response contained no text")
	}
	return env.Text, nil
}
