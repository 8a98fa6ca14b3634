package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSPAHandlerServesIndexForUnknownPaths(t *testing.T) {
	h := SPAHandler()

	for _, path := range []string{"/", "/chat/anything"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "WMS Askbot") {
			t.Errorf("%s: expected chat page", path)
		}
		if w.Header().Get("Cache-Control") != "no-cache" {
			t.Errorf("%s: expected no-cache header", path)
		}
	}
}
