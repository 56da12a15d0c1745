package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := ValidationError("year must be numeric")
	wrapped := Wrap(base, "table fetch rejected")

	assert.Equal(t, CodeValidationError, GetCode(wrapped))
	assert.Equal(t, "table fetch rejected: year must be numeric", wrapped.Error())
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("boom"), "step 2")
	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestGetCodeUnknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
	assert.Equal(t, CodeNotFound, GetCode(fmt.Errorf("outer: %w", NotFound("page"))))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{WithCode(CodeInvalidInput, fmt.Errorf("x")), http.StatusBadRequest},
		{ValidationError("x"), http.StatusBadRequest},
		{NotFound("x"), http.StatusNotFound},
		{ExternalServiceError("worldbank", nil), http.StatusBadGateway},
		{Conflict("x", nil), http.StatusConflict},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, HTTPStatus(test.err), "error %v", test.err)
	}
}
