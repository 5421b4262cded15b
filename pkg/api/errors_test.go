package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-hunter/pkg/models"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrEmptyQuery, http.StatusBadRequest},
		{fmt.Errorf("%w: top_n must be positive", models.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: unknown source %q", models.ErrInvalidSource, "x"), http.StatusBadRequest},
		{fmt.Errorf("fetch a from b: %w", models.ErrProductNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: price_out_of_range", models.ErrRejected), http.StatusUnprocessableEntity},
		{fmt.Errorf("fetch: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestWriteErr(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteErr(rr, fmt.Errorf("%w: unknown source %q", models.ErrInvalidSource, "nope"), "/api/search")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	var pd ProblemDetails
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pd))
	assert.Equal(t, "about:blank", pd.Type)
	assert.Equal(t, "Bad Request", pd.Title)
	assert.Equal(t, http.StatusBadRequest, pd.Status)
	assert.Contains(t, pd.Detail, `unknown source "nope"`)
	assert.Equal(t, "/api/search", pd.Instance)
}

func TestWriteErr_Internal(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteErr(rr, errors.New("adapter exploded"), "/api/scrape")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var pd ProblemDetails
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pd))
	assert.Equal(t, "Internal Server Error", pd.Title)
	assert.Equal(t, http.StatusInternalServerError, pd.Status)
	assert.Equal(t, "adapter exploded", pd.Detail)
	assert.Equal(t, "/api/scrape", pd.Instance)
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rr, http.StatusOK, map[string]int{"count": 2}))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count":2}`, rr.Body.String())
}
