package rest

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Result is the decoded reply to a JSON request.
type Result struct {
	StatusCode int
	// Body holds the raw reply body.
	Body []byte
	// Value holds the decoded JSON document or, if the body is not JSON, the body text.
	Value interface{}

	isJSON bool
}

// DecodeResult decodes body as JSON, falling back to the raw text.
func DecodeResult(status int, body []byte) *Result {
	r := &Result{StatusCode: status, Body: body, Value: string(body)}
	if len(bytes.TrimSpace(body)) == 0 {
		return r
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err == nil {
		r.Value, r.isJSON = v, true
	}
	return r
}

// IsJSON reports whether the body was decoded as JSON.
func (r *Result) IsJSON() bool { return r.isJSON }

// Text delivers the body as a string.
func (r *Result) Text() string { return string(r.Body) }

// Object delivers the decoded value as a JSON object, if it is one.
func (r *Result) Object() (map[string]interface{}, bool) {
	m, ok := r.Value.(map[string]interface{})
	return m, ok
}

// Unmarshal decodes the body into v.
func (r *Result) Unmarshal(v interface{}) error {
	if !r.isJSON {
		return errors.New("reply is not json")
	}
	return errors.Wrap(json.Unmarshal(r.Body, v), "failed to decode reply")
}
