package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestError_Message проверяет формирование текста ошибки
func TestError_Message(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "message only",
			err:      New(ErrNotFound, "route not found"),
			expected: "route not found",
		},
		{
			name:     "with details",
			err:      New(ErrValidation, "invalid port").WithDetails("70000"),
			expected: "invalid port (70000)",
		},
		{
			name:     "with cause",
			err:      Wrap(syscall.EADDRINUSE, ErrBindFailure, "failed to bind listener").WithDetails("0.0.0.0:3000"),
			expected: "failed to bind listener (0.0.0.0:3000): address already in use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

// TestWrap_Nil проверяет, что Wrap(nil) возвращает nil
func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternal, "nothing"))
	var e *Error
	assert.Nil(t, e.WithDetails("x"))
}

// TestError_Chain проверяет работу с errors.Is/As и Unwrap
func TestError_Chain(t *testing.T) {
	bindErr := Wrap(syscall.EADDRINUSE, ErrBindFailure, "failed to bind listener")
	wrapped := fmt.Errorf("start server: %w", bindErr)

	assert.True(t, stderrors.Is(wrapped, syscall.EADDRINUSE))
	assert.True(t, stderrors.Is(wrapped, New(ErrBindFailure, "")))
	assert.False(t, stderrors.Is(wrapped, New(ErrInternal, "")))

	assert.True(t, IsCode(wrapped, ErrBindFailure))
	assert.False(t, IsCode(wrapped, ErrNotFound))
	assert.False(t, IsCode(stderrors.New("plain"), ErrBindFailure))
	assert.False(t, IsCode(nil, ErrBindFailure))
}

// TestError_HTTPStatus проверяет соответствие кодов и HTTP статусов
func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrValidation, http.StatusBadRequest},
		{ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		{ErrInternal, http.StatusInternalServerError},
		{ErrUnavailable, http.StatusServiceUnavailable},
		{ErrBindFailure, http.StatusServiceUnavailable},
		{ErrorCode("UNKNOWN"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, "msg").HTTPStatus())
		})
	}

	var nilErr *Error
	assert.Equal(t, http.StatusOK, nilErr.HTTPStatus())
}

// TestWriteJSON проверяет формат JSON ответа с ошибкой
func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, New(ErrMethodNotAllowed, "method not allowed").WithDetails("POST"))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details string `json:"details"`
		} `json:"error"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "METHOD_NOT_ALLOWED", response.Error.Code)
	assert.Equal(t, "method not allowed", response.Error.Message)
	assert.Equal(t, "POST", response.Error.Details)
	assert.NotEmpty(t, response.Timestamp)
}
