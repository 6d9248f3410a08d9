package responseformat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type sample struct {
	Active string         `json:"active"`
	Plan   map[string]int `json:"plan"`
}

func TestWriteResponse(t *testing.T) {
	data := sample{Active: "North", Plan: map[string]int{"North": 35, "South": 17}}

	tests := []struct {
		name        string
		target      string
		contentType string
		decode      func([]byte, *sample) error
	}{
		{
			name:        "json by default",
			target:      "/api/signal",
			contentType: "application/json",
			decode:      func(b []byte, s *sample) error { return json.Unmarshal(b, s) },
		},
		{
			name:        "msgpack on request",
			target:      "/api/signal?format=msgpack",
			contentType: "application/x-msgpack",
			decode: func(b []byte, s *sample) error {
				dec := msgpack.NewDecoder(bytes.NewReader(b))
				dec.SetCustomStructTag("json")
				return dec.Decode(s)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)

			require.NoError(t, NewFormatter().WriteResponse(rec, req, data))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))

			var got sample
			require.NoError(t, tt.decode(rec.Body.Bytes(), &got))
			assert.Equal(t, data, got)
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/operator", nil)

	require.NoError(t, NewFormatter().WriteError(rec, req, http.StatusBadRequest, "unknown approach"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"unknown approach"}`, rec.Body.String())
}
