package identity

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddlewareIssuesCookie(t *testing.T) {
	var gotKey, gotAnon string
	h := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAnon = AnonIDFromContext(r.Context())
		gotKey = ConversationKey(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat", nil))

	if !isValidAnonID(gotAnon) {
		t.Fatalf("Expected generated anon id, got %q", gotAnon)
	}
	if gotKey != gotAnon+":"+DefaultTabIDValue {
		t.Errorf("Unexpected conversation key %q", gotKey)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != gotAnon {
		t.Fatalf("Expected anon cookie to be set, got %+v", cookies)
	}
	if cookies[0].Secure {
		t.Error("Expected insecure cookie in development")
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	existing := "anon_" + strings.Repeat("ab", 16)

	var got string
	h := Middleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ConversationKey(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: existing})
	req.Header.Set(TabHeaderName, "tab-2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != existing+":tab-2" {
		t.Errorf("Expected key for existing cookie and tab, got %q", got)
	}
}

func TestMiddlewareReplacesForgedCookie(t *testing.T) {
	var got string
	h := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = AnonIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "admin"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == "admin" || !isValidAnonID(got) {
		t.Errorf("Expected forged cookie to be replaced, got %q", got)
	}
}

func TestSanitizeTabID(t *testing.T) {
	cases := map[string]string{
		"":        DefaultTabIDValue,
		"  ":      DefaultTabIDValue,
		"tab-1":   "tab-1",
		"bad id!": DefaultTabIDValue,
		"a:b.c_d": "a:b.c_d",
	}
	cases[strings.Repeat("x", 129)] = DefaultTabIDValue
	for in, want := range cases {
		if got := sanitizeTabID(in); got != want {
			t.Errorf("sanitizeTabID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	if got := IPFromRequest(req); got != "10.0.0.7" {
		t.Errorf("Expected 10.0.0.7, got %q", got)
	}
}
