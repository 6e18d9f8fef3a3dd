package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteJSONSuccess(t *testing.T) {
	recorder := httptest.NewRecorder()
	w := NewResponseWriter(recorder)

	w.WriteJSON(http.StatusOK, map[string]bool{"ok": true}, nil, "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json; charset=utf-8", recorder.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, recorder.Body.String())
}

func TestWriteJSONErrorDefaultsBodyToMessage(t *testing.T) {
	recorder := httptest.NewRecorder()
	w := NewResponseWriter(recorder)

	w.WriteJSON(http.StatusBadRequest, nil, nil, "invalid payload")

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.JSONEq(t, `{"error":"invalid payload"}`, recorder.Body.String())
}

func TestErrorEnvelope(t *testing.T) {
	recorder := httptest.NewRecorder()
	w := NewResponseWriter(recorder)

	w.Error(http.StatusUnauthorized, "unauthorized", WithErrorScope("token"), WithErrorType(1))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.JSONEq(t, `{"errors":[{"code":401,"message":"unauthorized","scope":"token","type":1,"data":null}],"success":false,"data":null}`, recorder.Body.String())
}

func TestStringWritesPlainText(t *testing.T) {
	recorder := httptest.NewRecorder()
	w := NewResponseWriter(recorder)

	w.String(http.StatusOK, "OK")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "text/plain; charset=utf-8", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "OK", recorder.Body.String())
}
