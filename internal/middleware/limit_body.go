package middleware

import "net/http"

// Request bodies on this API are small JSON documents; the largest
// legitimate payload is a transaction draft plus a shard envelope and a
// signing proof, well under a megabyte.
const maxRequestBody = 1 << 20

// LimitBody caps the request body before any handler reads it. Oversized
// bodies surface as a read error inside JSON decoding.
func LimitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}
