package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func tagging(name string, order *[]string) Middleware {
	return NewFunc(name, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, name)
			next.ServeHTTP(w, r)
		})
	})
}

func TestChain(t *testing.T) {
	t.Run("empty chain executes final handler", func(t *testing.T) {
		executed := false
		h := NewChain().Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			executed = true
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if !executed {
			t.Error("final handler was not executed")
		}
	})

	t.Run("middlewares run in insertion order", func(t *testing.T) {
		var order []string
		chain := NewChain(tagging("m1", &order), nil, tagging("m2", &order))
		h := chain.Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "final")
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		expected := []string{"m1", "m2", "final"}
		if len(order) != len(expected) {
			t.Fatalf("expected %d steps, got %v", len(expected), order)
		}
		for i, e := range expected {
			if order[i] != e {
				t.Errorf("expected step %d to be %s, got %s", i, e, order[i])
			}
		}
		if chain.Len() != 2 {
			t.Errorf("expected 2 middlewares, got %d", chain.Len())
		}
		if names := chain.Names(); names[0] != "m1" || names[1] != "m2" {
			t.Errorf("unexpected names %v", names)
		}
	})

	t.Run("middleware can short-circuit", func(t *testing.T) {
		var order []string
		stop := NewFunc("stop", func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				WriteError(w, http.StatusForbidden, "nope")
			})
		})
		h := NewChain(tagging("m1", &order), stop, tagging("m2", &order)).
			Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, "final")
			}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
		if len(order) != 1 || order[0] != "m1" {
			t.Errorf("expected only m1 to run, got %v", order)
		}
	})
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := NewStatusRecorder(rec)

	if sr.Status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", sr.Status)
	}
	sr.WriteHeader(http.StatusTeapot)
	n, err := sr.Write([]byte("short and stout"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sr.Status != http.StatusTeapot || rec.Code != http.StatusTeapot {
		t.Errorf("status not recorded: %d / %d", sr.Status, rec.Code)
	}
	if sr.Bytes != n || n != 15 {
		t.Errorf("expected 15 bytes, got %d", sr.Bytes)
	}
	if sr.Unwrap() != rec {
		t.Error("Unwrap should return the wrapped writer")
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "bad")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["error"] != "bad" {
		t.Errorf("unexpected body %v", body)
	}
}
