package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/metrics":                  "/metrics",
		"/v1/incidents":             "/v1/incidents",
		"/v1/incidents/abc":         "/v1/incidents/:id",
		"/v1/incidents/abc?limit=1": "/v1/incidents/:id",
		"/v1/users/u-1":             "/v1/users/:id",
		"/v1/users/u-1/roles":       "/v1/users/:id/roles",
		"/v1/users/u-1/roles/x":     "/v1/users/u-1/roles/x",
		"/v1/audit":                 "/v1/audit",
		"/v1/auth/signin":           "/v1/auth/signin",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
