package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronerog/furia-app/pkg/utils"
)

// MakeRequest builds a bridge request. A non-nil body is sent as JSON.
func MakeRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "encode request body")
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ParseJSONResponse decodes the response body into v and fails the test
// when it is not valid JSON.
func ParseJSONResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoErrorf(t, json.Unmarshal(resp.Body.Bytes(), v), "decode response body: %s", resp.Body.String())
}

// AssertStatusCode checks the status and prints the body on mismatch.
func AssertStatusCode(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equalf(t, expected, resp.Code, "unexpected status, body: %s", resp.Body.String())
}

// AssertJSONContentType checks that the response is served as JSON.
func AssertJSONContentType(t *testing.T, resp *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))
}

// ErrorCode decodes a bridge error body and returns its machine readable code.
func ErrorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()

	var body utils.ErrorResponse
	ParseJSONResponse(t, resp, &body)
	return body.Error
}
