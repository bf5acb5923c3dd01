package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteSuccess(rec, map[string]int{"types": 3}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"types": 3}`, rec.Body.String())
}

func TestWriteErrors(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
	}{
		{"not found", func(w http.ResponseWriter) { WriteNotFoundError(w, "no such file") }, http.StatusNotFound},
		{"unavailable", func(w http.ResponseWriter) { WriteUnavailable(w, "no such file") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "no such file", resp.Error)
		})
	}
}

func TestParseParameters(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/files/{path:.+}", func(w http.ResponseWriter, r *http.Request) {
		path, err := ParsePathString(r, "path")
		require.NoError(t, err)
		assert.Equal(t, "squareup/dinosaurs/dinosaur.proto", path)
		assert.Equal(t, "squareup", ParseQueryString(r, "package", "*"))
		assert.Equal(t, "*", ParseQueryString(r, "missing", "*"))

		source, err := ParseQueryBool(r, "source", false)
		require.NoError(t, err)
		assert.True(t, source)
		_, err = ParseQueryBool(r, "broken", false)
		assert.Error(t, err)
	})

	req := httptest.NewRequest(http.MethodGet, "/files/squareup/dinosaurs/dinosaur.proto?package=squareup&source=true&broken=maybe", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	_, err := ParsePathString(httptest.NewRequest(http.MethodGet, "/", nil), "path")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	handler := Chain(
		RequestIDMiddleware,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/panic" {
			panic("boom")
		}
		WriteText(w, http.StatusTeapot, "ok")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/types", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, http.StatusTeapot, hook.LastEntry().Data["status"])

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(RequestIDHeader, "fixed")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "fixed", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
