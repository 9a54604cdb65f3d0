// Package protocol defines the request and response types exchanged with the
// daemon. Messages are JSON-encoded and sent over a Unix domain socket, one
// per line, discriminated by a "type" field carrying the variant name.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Request type tags.
const (
	TypeSearch  = "Search"
	TypeRefresh = "Refresh"
	TypeStatus  = "Status"
)

// Response type tags. Status replies reuse TypeStatus.
const (
	TypeSearchResults   = "SearchResults"
	TypeRefreshComplete = "RefreshComplete"
	TypeError           = "Error"
)

// Request is one of SearchRequest, RefreshRequest or StatusRequest.
type Request interface {
	requestTag() string
}

// SearchRequest asks for a ranked fuzzy search over the index.
// Limit is nil when the client wants the daemon's default.
type SearchRequest struct {
	Query string `json:"query"`
	Limit *int   `json:"limit,omitempty"`
}

// RefreshRequest forces a synchronous index rebuild.
type RefreshRequest struct{}

// StatusRequest reports index size and freshness.
type StatusRequest struct{}

func (SearchRequest) requestTag() string  { return TypeSearch }
func (RefreshRequest) requestTag() string { return TypeRefresh }
func (StatusRequest) requestTag() string  { return TypeStatus }

// SearchMatch is one highlighted character offset into a result's
// display path.
type SearchMatch struct {
	CharIndex int `json:"char_index"`
}

// SearchResult is a single ranked entry returned for a search.
type SearchResult struct {
	Path        string        `json:"path"`
	DisplayPath string        `json:"display_path"`
	Matches     []SearchMatch `json:"matches"`
	Score       int           `json:"score"`
}

// Response is one of SearchResults, RefreshComplete, StatusResponse or
// ErrorResponse.
type Response interface {
	responseTag() string
}

// SearchResults carries the ranked results for one search request.
type SearchResults struct {
	Results      []SearchResult `json:"results"`
	ResultsCount int            `json:"results_count"`
	TotalFiles   int            `json:"total_files"`
}

// RefreshComplete acknowledges a successful rebuild.
type RefreshComplete struct {
	FilesCount int `json:"files_count"`
}

// StatusResponse reports the index size and last rebuild time
// (epoch seconds, 0 when the index has never been built).
type StatusResponse struct {
	FilesCount  int   `json:"files_count"`
	LastUpdated int64 `json:"last_updated"`
}

// ErrorResponse carries a human-readable failure message. Every request
// frame gets a well-formed response frame, even on failure.
type ErrorResponse struct {
	Message string `json:"message"`
}

func (SearchResults) responseTag() string   { return TypeSearchResults }
func (RefreshComplete) responseTag() string { return TypeRefreshComplete }
func (StatusResponse) responseTag() string  { return TypeStatus }
func (ErrorResponse) responseTag() string   { return TypeError }

type tagOnly struct {
	Type string `json:"type"`
}

// EncodeRequest serializes a request as a single JSON frame
// (without the trailing newline).
func EncodeRequest(req Request) ([]byte, error) {
	switch r := req.(type) {
	case SearchRequest:
		return json.Marshal(struct {
			Type string `json:"type"`
			SearchRequest
		}{TypeSearch, r})
	case RefreshRequest:
		return json.Marshal(tagOnly{TypeRefresh})
	case StatusRequest:
		return json.Marshal(tagOnly{TypeStatus})
	default:
		return nil, fmt.Errorf("unknown request type %T", req)
	}
}

// DecodeRequest parses one request frame. It rejects invalid JSON, missing
// or unknown type tags, and Search frames without a query field.
func DecodeRequest(frame []byte) (Request, error) {
	var probe tagOnly
	if err := json.Unmarshal(frame, &probe); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	switch probe.Type {
	case TypeSearch:
		var raw struct {
			Query *string `json:"query"`
			Limit *int    `json:"limit"`
		}
		if err := json.Unmarshal(frame, &raw); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
		if raw.Query == nil {
			return nil, fmt.Errorf("invalid request: Search is missing field query")
		}
		return SearchRequest{Query: *raw.Query, Limit: raw.Limit}, nil
	case TypeRefresh:
		return RefreshRequest{}, nil
	case TypeStatus:
		return StatusRequest{}, nil
	case "":
		return nil, fmt.Errorf("invalid request: missing type tag")
	default:
		return nil, fmt.Errorf("invalid request: unknown type %q", probe.Type)
	}
}

// EncodeResponse serializes a response as a single JSON frame
// (without the trailing newline).
func EncodeResponse(resp Response) ([]byte, error) {
	switch r := resp.(type) {
	case SearchResults:
		return json.Marshal(struct {
			Type string `json:"type"`
			SearchResults
		}{TypeSearchResults, r})
	case RefreshComplete:
		return json.Marshal(struct {
			Type string `json:"type"`
			RefreshComplete
		}{TypeRefreshComplete, r})
	case StatusResponse:
		return json.Marshal(struct {
			Type string `json:"type"`
			StatusResponse
		}{TypeStatus, r})
	case ErrorResponse:
		return json.Marshal(struct {
			Type string `json:"type"`
			ErrorResponse
		}{TypeError, r})
	default:
		return nil, fmt.Errorf("unknown response type %T", resp)
	}
}

// DecodeResponse parses one response frame. Used by client tooling and by
// anything reading the out-of-band response socket.
func DecodeResponse(frame []byte) (Response, error) {
	var probe tagOnly
	if err := json.Unmarshal(frame, &probe); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}

	switch probe.Type {
	case TypeSearchResults:
		var r SearchResults
		if err := json.Unmarshal(frame, &r); err != nil {
			return nil, fmt.Errorf("invalid response: %w", err)
		}
		return r, nil
	case TypeRefreshComplete:
		var r RefreshComplete
		if err := json.Unmarshal(frame, &r); err != nil {
			return nil, fmt.Errorf("invalid response: %w", err)
		}
		return r, nil
	case TypeStatus:
		var r StatusResponse
		if err := json.Unmarshal(frame, &r); err != nil {
			return nil, fmt.Errorf("invalid response: %w", err)
		}
		return r, nil
	case TypeError:
		var r ErrorResponse
		if err := json.Unmarshal(frame, &r); err != nil {
			return nil, fmt.Errorf("invalid response: %w", err)
		}
		return r, nil
	case "":
		return nil, fmt.Errorf("invalid response: missing type tag")
	default:
		return nil, fmt.Errorf("invalid response: unknown type %q", probe.Type)
	}
}
