package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedErr struct {
	code  string
	field string
}

func (e codedErr) Error() string      { return "coded: " + e.code }
func (e codedErr) ErrorCode() string  { return e.code }
func (e codedErr) ErrorField() string { return e.field }

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func TestRespondErrorMapsCodes(t *testing.T) {
	cases := []struct {
		code   string
		status int
	}{
		{"NOT_FOUND", http.StatusNotFound},
		{"VALIDATION_ERROR", http.StatusBadRequest},
		{"DUPLICATE", http.StatusConflict},
		{"BUSY", http.StatusConflict},
		{"PERMISSION_DENIED", http.StatusForbidden},
		{"NETWORK_ERROR", http.StatusServiceUnavailable},
		{"SERVER_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, fmt.Errorf("op: %w", codedErr{code: tc.code}))
			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.code, decodeProblem(t, rr).Code)
		})
	}
}

func TestRespondErrorIncludesField(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, codedErr{code: "VALIDATION_ERROR", field: "items[0].category"})

	p := decodeProblem(t, rr)
	assert.Equal(t, "items[0].category", p.Field)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestRespondErrorHidesUnclassified(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: secret detail"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, decodeProblem(t, rr).Detail)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	var target struct {
		Name string `json:"name"`
	}
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrBadRequest)
}
