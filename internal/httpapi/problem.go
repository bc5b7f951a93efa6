// Package httpapi holds the HTTP plumbing shared by the gateway and the
// engine: problem responses, request logging and the serve loop.
package httpapi

import (
	"encoding/json"
	"net/http"
)

// ProblemContentType is the media type of error bodies.
const ProblemContentType = "application/problem+json"

// Problem is an RFC 9457 problem details object.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// WriteProblem writes a problem response. Type defaults to about:blank.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	p := Problem{Type: "about:blank", Title: title, Status: status, Detail: detail}
	w.Header().Set("Content-Type", ProblemContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeProblem parses a problem body. It returns false if body is not one.
func DecodeProblem(body []byte) (Problem, bool) {
	var p Problem
	if err := json.Unmarshal(body, &p); err != nil || p.Status == 0 {
		return Problem{}, false
	}
	return p, true
}
