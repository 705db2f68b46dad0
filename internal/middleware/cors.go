package middleware

import (
	"net/http"
	"strings"
)

type CORSOptions struct {
	AllowedOrigin  string
	AllowedHeaders []string
	AllowedMethods []string
}

// RelayCORS is the permissive policy of the generate-chat relay.
var RelayCORS = CORSOptions{
	AllowedOrigin:  "*",
	AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
}

// APICORS restricts the store API to the frontend origin.
func APICORS(frontendURL string) CORSOptions {
	return CORSOptions{
		AllowedOrigin:  frontendURL,
		AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type", "x-request-id"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}
}

// SetHeaders writes the policy onto h.
func (o CORSOptions) SetHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", o.AllowedOrigin)
	h.Set("Access-Control-Allow-Headers", strings.Join(o.AllowedHeaders, ", "))
	if len(o.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(o.AllowedMethods, ", "))
	}
	if o.AllowedOrigin != "*" {
		h.Add("Vary", "Origin")
	}
}

// CORS sets the policy headers on every response and answers preflight
// requests with an empty 200.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			opts.SetHeaders(w.Header())
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
