package errorhandler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/agentgate/pkg/logging"
)

func TestErrorHandler(t *testing.T) {
	t.Run("recovers panic and writes 500", func(t *testing.T) {
		var caught error
		handler := NewErrorHandler(func(r *http.Request, err error) {
			caught = err
		}, logging.Discard())

		h := handler.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(errors.New("boom"))
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "internal server error") {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
		if caught == nil || caught.Error() != "boom" {
			t.Errorf("handler not notified, got %v", caught)
		}
	})

	t.Run("non-error panic values are wrapped", func(t *testing.T) {
		var caught error
		handler := NewErrorHandler(func(r *http.Request, err error) {
			caught = err
		}, logging.Discard())

		h := handler.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("bad state")
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if caught == nil || caught.Error() != "bad state" {
			t.Errorf("expected wrapped panic value, got %v", caught)
		}
	})

	t.Run("passes through normal responses", func(t *testing.T) {
		handlerCalled := false
		handler := NewErrorHandler(func(r *http.Request, err error) {
			handlerCalled = true
		}, logging.Discard())

		h := handler.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusAccepted {
			t.Errorf("expected 202, got %d", rec.Code)
		}
		if handlerCalled {
			t.Error("handler should not be called without a panic")
		}
	})

	t.Run("nil handler func", func(t *testing.T) {
		handler := NewErrorHandler(nil, logging.Discard())
		if handler.Name() != "ErrorHandler" {
			t.Errorf("unexpected name %q", handler.Name())
		}
		h := handler.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("x")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}
