package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"OpenMint-Chain/pkg/logger"
)

// Guard 校验管理接口的静态访问令牌。令牌为空时认证被禁用，
// 所有请求直接放行。
type Guard struct {
	token string
}

// NewGuard 创建访问令牌校验器。
func NewGuard(token string) *Guard {
	return &Guard{token: strings.TrimSpace(token)}
}

// Enabled 返回是否启用了令牌校验。
func (g *Guard) Enabled() bool {
	return g != nil && g.token != ""
}

// Protect 包装处理函数，要求请求携带 Authorization: Bearer <token>。
func (g *Guard) Protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() {
			next(w, r)
			return
		}
		presented, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(g.token)) != 1 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			logger.Audit().Warn("access_denied",
				"path", r.URL.Path,
				"method", r.Method,
				"status", http.StatusUnauthorized,
			)
			return
		}
		next(w, r)
	}
}

// bearerToken 解析 Authorization 头中的 Bearer 令牌。
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
