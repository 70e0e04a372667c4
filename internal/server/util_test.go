package server

import "testing"

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":       "",
		"/":      "",
		"api":    "/api",
		"/api":   "/api",
		"/api/":  "/api",
		" /v1/ ": "/v1",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Errorf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsSafeID(t *testing.T) {
	valid := []string{"m1", "host-01", "nas.local", "a_b", "A.B-c_9"}
	for _, s := range valid {
		if !isSafeID(s) {
			t.Errorf("isSafeID(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "..", "a..b", "a/b", `a\b`, "héllo", "a b", "a:b"}
	for _, s := range invalid {
		if isSafeID(s) {
			t.Errorf("isSafeID(%q) = true, want false", s)
		}
	}
}
