package middleware

import (
	"net/http"
	"strings"
)

// AuthCookie is set by the login handler once the password matched.
const AuthCookie = "authenticated"

// public paths are reachable without logging in
func public(path string) bool {
	return path == "/login" ||
		path == "/auth/login" ||
		path == "/metrics" ||
		strings.HasPrefix(path, "/static/")
}

// AuthMiddleware lets a request through when it carries the auth cookie. API
// calls without it get 401, page requests are redirected to the login page.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if public(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(AuthCookie)
		if err != nil || cookie.Value != "true" {
			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
