package middleware

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"qplace/pkg/requestcontext"
)

// ClientInfo extracts the caller's IP and User-Agent, parses the agent
// string, and stores the result in the context. Job submissions record it
// for provenance.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := requestcontext.ClientInfo{
			IP:        clientIP(r),
			UserAgent: r.Header.Get("User-Agent"),
		}
		if info.UserAgent != "" {
			ua := useragent.New(info.UserAgent)
			name, version := ua.Browser()
			if name != "" {
				info.Browser = strings.TrimSpace(name + " " + version)
			}
			info.OS = ua.OS()
			info.Bot = ua.Bot()
		}
		ctx := requestcontext.WithClient(r.Context(), info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP resolves the original client address behind proxies.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
