package rbac_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lumenlms/assessment-engine/internal/rbac"
)

func TestDefaultPolicy(t *testing.T) {
	cases := []struct {
		role, perm string
		want       bool
	}{
		{"student", "attempt:create", true},
		{"student", "attempt:view-own", true},
		{"student", "attempt:view-all", false},
		{"student", "attempt:grade", false},
		{"student", "assessment:view-answers", false},
		{"teacher", "attempt:grade", true},
		{"teacher", "assessment:view-answers", true},
		{"teacher", "attempt:create", false},
		{"proctor", "attempt:report-violation", true},
		{"proctor", "attempt:grade", false},
		{"admin", "anything:at-all", true},
		{"", "attempt:create", false},
		{"ghost", "attempt:create", false},
	}
	for _, tc := range cases {
		if got := rbac.Can(tc.role, tc.perm); got != tc.want {
			t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestCheckerWildcardPrefix(t *testing.T) {
	c := rbac.NewChecker(map[string][]string{
		"auditor": {"attempt:*"},
	})
	if !c.Has("auditor", "attempt:view-all") {
		t.Fatalf("prefix wildcard must match attempt:view-all")
	}
	if c.Has("auditor", "assessment:view") {
		t.Fatalf("prefix wildcard must not cross the prefix")
	}
	if !c.Any("auditor", "assessment:view", "attempt:grade") {
		t.Fatalf("Any must succeed when one permission matches")
	}
}

func TestRequireMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) })

	serve := func(role string, h http.Handler) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if role != "" {
			req = req.WithContext(rbac.WithRole(req.Context(), role))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	guarded := rbac.Require("attempt:grade")(ok)
	if code := serve("teacher", guarded); code != 204 {
		t.Fatalf("teacher: %d", code)
	}
	if code := serve("student", guarded); code != http.StatusForbidden {
		t.Fatalf("student: %d", code)
	}
	if code := serve("", guarded); code != http.StatusForbidden {
		t.Fatalf("no role: %d", code)
	}

	either := rbac.RequireAny("attempt:view-own", "attempt:view-all")(ok)
	if code := serve("student", either); code != 204 {
		t.Fatalf("student view-own: %d", code)
	}
	if code := serve("proctor", either); code != 204 {
		t.Fatalf("proctor view-all: %d", code)
	}
	if code := serve("ghost", either); code != http.StatusForbidden {
		t.Fatalf("ghost: %d", code)
	}
}
