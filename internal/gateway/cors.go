package gateway

import "net/http"

// CORS is a minimal allowed-origins middleware. spec.md scopes the HTTP
// veneer (routing, CORS, JSON codec) out of the hard-part budget, but the
// gateway still needs to be a running HTTP surface end-to-end (§6), so this
// stays intentionally thin.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if allowAll {
					rw.Header().Set("Access-Control-Allow-Origin", "*")
				} else if _, ok := allowed[origin]; ok {
					rw.Header().Set("Access-Control-Allow-Origin", origin)
				}
			}
			rw.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			rw.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Key, Authorization")

			if r.Method == http.MethodOptions {
				rw.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}
