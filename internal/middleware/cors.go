// Package middleware provides HTTP middleware for the onboarding API.
package middleware

import "net/http"

// CORS returns middleware that handles CORS headers for the chat frontend.
// In development every origin is allowed; in production only the configured
// frontend origin is echoed back.
func CORS(frontendOrigin string, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case isDev && origin != "":
				w.Header().Set("Access-Control-Allow-Origin", origin)
			case origin != "" && origin == frontendOrigin:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				// Credentials only for the explicit origin; pairing them
				// with an echoed wildcard enables CSRF.
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
