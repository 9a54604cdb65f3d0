package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	limit := 25
	requests := []Request{
		SearchRequest{Query: "main"},
		SearchRequest{Query: "", Limit: &limit},
		RefreshRequest{},
		StatusRequest{},
	}

	for _, req := range requests {
		frame, err := EncodeRequest(req)
		require.NoError(t, err)

		decoded, err := DecodeRequest(frame)
		require.NoError(t, err)
		assert.Equal(t, req, decoded)
	}
}

func TestRequestWireFormat(t *testing.T) {
	frame, err := EncodeRequest(SearchRequest{Query: "notes"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Search","query":"notes"}`, string(frame))

	frame, err = EncodeRequest(RefreshRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Refresh"}`, string(frame))
}

func TestDecodeRequestAcceptsExternalFrames(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"type":"Search","query":"cfg","limit":5}`))
	require.NoError(t, err)

	search, ok := req.(SearchRequest)
	require.True(t, ok)
	assert.Equal(t, "cfg", search.Query)
	require.NotNil(t, search.Limit)
	assert.Equal(t, 5, *search.Limit)
}

func TestDecodeRequestErrors(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"type":`,
		"missing tag":   `{"query":"x"}`,
		"unknown tag":   `{"type":"Shutdown"}`,
		"missing query": `{"type":"Search","limit":10}`,
	}

	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(frame))
			assert.Error(t, err)
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	responses := []Response{
		SearchResults{
			Results: []SearchResult{
				{
					Path:        "/home/u/proj/app/main.rs",
					DisplayPath: "~/proj/app/main.rs",
					Matches:     []SearchMatch{{CharIndex: 11}, {CharIndex: 12}},
					Score:       87,
				},
			},
			ResultsCount: 1,
			TotalFiles:   2,
		},
		RefreshComplete{FilesCount: 2},
		StatusResponse{FilesCount: 2, LastUpdated: 1756339200},
		ErrorResponse{Message: "fd command failed: boom"},
	}

	for _, resp := range responses {
		frame, err := EncodeResponse(resp)
		require.NoError(t, err)

		decoded, err := DecodeResponse(frame)
		require.NoError(t, err)
		assert.Equal(t, resp, decoded)
	}
}

func TestResponseWireFormat(t *testing.T) {
	frame, err := EncodeResponse(SearchResults{
		Results:      []SearchResult{},
		ResultsCount: 0,
		TotalFiles:   3,
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"SearchResults","results":[],"results_count":0,"total_files":3}`,
		string(frame))

	frame, err = EncodeResponse(StatusResponse{FilesCount: 3, LastUpdated: 0})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Status","files_count":3,"last_updated":0}`, string(frame))
}

func TestDecodeResponseErrors(t *testing.T) {
	_, err := DecodeResponse([]byte(`{"files_count":1}`))
	assert.Error(t, err)

	_, err = DecodeResponse([]byte(`{"type":"Nope"}`))
	assert.Error(t, err)
}
