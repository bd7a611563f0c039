package utils

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteJSON(w, 200, map[string]string{"key": "value"})
	require.NoError(t, err)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "value", body["key"])
}

func TestWriteJSON_NilBody(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteJSON(w, 204, nil)
	require.NoError(t, err)
	assert.Equal(t, 204, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteBadRequest(w, "bad field", map[string]interface{}{"field": "required"})
	require.NoError(t, err)

	assert.Equal(t, 400, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "bad_request", resp.Error)
	assert.Equal(t, "bad field", resp.Message)
}

func TestWriteUnauthorized_DefaultMessage(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteUnauthorized(w, ""))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Authentication required", resp.Message)
}
