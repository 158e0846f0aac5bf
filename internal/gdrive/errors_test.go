package gdrive

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrThrottled},
		{http.StatusInternalServerError, ErrServerError},
		{http.StatusServiceUnavailable, ErrServerError},
		{http.StatusConflict, ErrUnexpected},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyStatus(tt.code), "code %d", tt.code)
	}
}

func TestWrapErr_GoogleAPIError(t *testing.T) {
	err := wrapErr("getting file x", &googleapi.Error{Code: http.StatusNotFound})

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Not Found", apiErr.Message)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "gdrive: getting file x: HTTP 404: Not Found", err.Error())
}

func TestWrapErr_OtherError(t *testing.T) {
	base := errors.New("connection reset")
	err := wrapErr("listing files", base)

	assert.ErrorIs(t, err, base)
	assert.Equal(t, "gdrive: listing files: connection reset", err.Error())

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
