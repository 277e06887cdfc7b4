package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",            // local dev
	"https://app.tablewise.io",         // staff dashboard
	"https://staging.app.tablewise.io", // staging dashboard
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS(allowAll bool) func(http.Handler) http.Handler {
	origins := defaultCORSOrigins
	if allowAll {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: !allowAll,
		MaxAge:           300,
	}).Handler
}
