package xray

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const maxMessageLen = 200

// Response is one completed round trip.
type Response struct {
	StatusCode int
	Elapsed    time.Duration
	Body       []byte
}

// Field returns the JSON value at path, accepting "$.a.b" and "a.b" forms.
// Missing fields yield "".
func (r *Response) Field(path string) string {
	if r == nil || len(r.Body) == 0 {
		return ""
	}
	if strings.HasPrefix(path, "$.") {
		path = path[2:]
	} else if path == "$" {
		path = "@this"
	}
	result := gjson.GetBytes(r.Body, path)
	if !result.Exists() {
		return ""
	}
	return result.String()
}

// Message extracts a human readable error from a JFrog error body, falling
// back to the raw body.
func (r *Response) Message() string {
	if r == nil {
		return ""
	}
	for _, path := range []string{"errors.0.message", "error", "message"} {
		if msg := r.Field(path); msg != "" {
			return msg
		}
	}
	msg := strings.TrimSpace(string(r.Body))
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen] + "..."
	}
	return msg
}

// ScanStatus is the overall artifact scan state reported by Xray, or "" when
// the body does not carry one.
func (r *Response) ScanStatus() string {
	return r.Field("overall.status")
}

// ViolationCount is the total_violations value of a violations query.
func (r *Response) ViolationCount() int64 {
	if r == nil {
		return 0
	}
	return gjson.GetBytes(r.Body, "total_violations").Int()
}

// StatusError reports a response whose status the operation does not accept.
type StatusError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Operation, e.StatusCode, e.Message)
}
