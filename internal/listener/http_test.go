// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package listener

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/docrunner/internal/runner"
)

func TestHTTPListener_RejectsNonPost(t *testing.T) {
	l := NewHTTPListener("", &fakeHandler{})
	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTPListener_RejectsOversizedBody(t *testing.T) {
	handler := &fakeHandler{}
	l := NewHTTPListener("", handler)
	body := strings.Repeat("x", int(HTTPBodyLimitBytes)+1)

	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, handler.callCount())
}

func TestHTTPListener_ReturnsRunResponse(t *testing.T) {
	tests := []struct {
		name     string
		resp     runner.Response
		err      error
		wantCode int
	}{
		{"success", runner.Response{StatusCode: http.StatusOK, Body: runner.BodySuccess}, nil, http.StatusOK},
		{"no records", runner.Response{StatusCode: http.StatusOK, Body: runner.BodyNoRecords}, nil, http.StatusOK},
		{"malformed", runner.Response{StatusCode: http.StatusBadRequest, Body: "bad envelope"}, errors.New("bad envelope"), http.StatusBadRequest},
		{"run failed", runner.Response{StatusCode: http.StatusInternalServerError, Body: "fetch failed"}, errors.New("fetch failed"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &fakeHandler{fn: func([]byte) (runner.Response, error) { return tt.resp, tt.err }}
			l := NewHTTPListener("", handler)

			rec := httptest.NewRecorder()
			l.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Records":[]}`)))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var got runner.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.resp, got)
			require.Equal(t, 1, handler.callCount())
			assert.Equal(t, `{"Records":[]}`, string(handler.calls[0]))
		})
	}
}

func TestHTTPListener_EventGridValidation(t *testing.T) {
	handler := &fakeHandler{}
	l := NewHTTPListener("", handler)

	body := `[{"id":"1","eventType":"Microsoft.EventGrid.SubscriptionValidationEvent","data":{"validationCode":"abc-123"}}]`
	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"validationResponse":"abc-123"}`, rec.Body.String())
	assert.Equal(t, 0, handler.callCount())
}

func TestEventGridValidationCode(t *testing.T) {
	_, ok := eventGridValidationCode([]byte(`{"Records":[]}`))
	assert.False(t, ok)

	_, ok = eventGridValidationCode([]byte(`[{"eventType":"Microsoft.Storage.BlobCreated","data":{}}]`))
	assert.False(t, ok)

	_, ok = eventGridValidationCode([]byte(`[`))
	assert.False(t, ok)
}

func TestHTTPListener_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewHTTPListener("127.0.0.1:0", &fakeHandler{})
	assert.NoError(t, l.Run(ctx))
	assert.Equal(t, "http", l.GetName())
}
