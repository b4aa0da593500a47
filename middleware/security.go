package middleware

import (
	"net/http"
	"strconv"
)

// SecurityHeadersOptions configures SecurityHeaders. Empty fields are not sent.
type SecurityHeadersOptions struct {
	XFrameOptions         string
	XContentTypeOptions   string
	ReferrerPolicy        string
	ContentSecurityPolicy string

	// HSTSMaxAge is in seconds and only applies to TLS requests.
	HSTSMaxAge            int
	HSTSIncludeSubDomains bool
}

// APISecurityHeaders are the defaults for a JSON API that never serves markup.
func APISecurityHeaders() SecurityHeadersOptions {
	return SecurityHeadersOptions{
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubDomains: true,
	}
}

// SecurityHeaders sets the configured response headers before calling next.
func SecurityHeaders(opts SecurityHeadersOptions) func(next http.Handler) http.Handler {
	static := map[string]string{
		"X-Frame-Options":         opts.XFrameOptions,
		"X-Content-Type-Options":  opts.XContentTypeOptions,
		"Referrer-Policy":         opts.ReferrerPolicy,
		"Content-Security-Policy": opts.ContentSecurityPolicy,
	}
	var hsts string
	if opts.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(opts.HSTSMaxAge)
		if opts.HSTSIncludeSubDomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range static {
				if v != "" {
					h.Set(k, v)
				}
			}
			if hsts != "" && r.TLS != nil {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}
