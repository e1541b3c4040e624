package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig lists the browser origins allowed to call the API, typically the
// ordering page and the kitchen dashboard.
type CORSConfig struct {
	// Origins allowed to call the API. Empty or "*" allows any origin.
	Origins []string `json:"origins" yaml:"origins"`
	// Methods defaults to GET, POST, PUT, DELETE, OPTIONS.
	Methods []string `json:"methods" yaml:"methods"`
	// Headers allowed on requests. Empty echoes the preflight request.
	Headers []string `json:"headers" yaml:"headers"`
	// MaxAge caches preflight results, in seconds.
	MaxAge int `json:"maxAge" yaml:"maxAge"`
}

type corsPolicy struct {
	any     bool
	origins map[string]string
	methods string
	headers string
	maxAge  string
}

func (p corsPolicy) origin(o string) string {
	if p.any {
		return "*"
	}
	return p.origins[strings.ToLower(o)]
}

// CORS answers preflight requests and tags responses for allowed origins.
// Disallowed origins get no CORS headers and the browser blocks them.
func CORS(cfg CORSConfig) Middleware {
	p := corsPolicy{
		any:     len(cfg.Origins) == 0,
		origins: make(map[string]string, len(cfg.Origins)),
		methods: "GET, POST, PUT, DELETE, OPTIONS",
		headers: strings.Join(cfg.Headers, ", "),
	}
	for _, o := range cfg.Origins {
		if o == "*" {
			p.any = true
		}
		p.origins[strings.ToLower(o)] = o
	}
	if len(cfg.Methods) > 0 {
		p.methods = strings.Join(cfg.Methods, ", ")
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if !p.any {
				h.Add("Vary", "Origin")
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allow := p.origin(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allow != "" {
					h.Set("Access-Control-Allow-Origin", allow)
					h.Set("Access-Control-Allow-Methods", p.methods)
					if p.headers != "" {
						h.Set("Access-Control-Allow-Headers", p.headers)
					} else if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
						h.Set("Access-Control-Allow-Headers", req)
					}
					if p.maxAge != "" {
						h.Set("Access-Control-Max-Age", p.maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allow != "" {
				h.Set("Access-Control-Allow-Origin", allow)
				h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
			}
			next.ServeHTTP(w, r)
		})
	}
}
