package middleware

import (
	"crypto/hmac"
	"net/http"
)

// AdminTokenHeader — заголовок, в котором панель управления передаёт токен.
const AdminTokenHeader = "X-Admin-Token"

// AuthMiddleware ограничивает доступ к административным маршрутам по токену.
// Пустой токен отключает проверку: локальная установка работает без настройки.
type AuthMiddleware struct {
	token []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным токеном.
func NewAuthMiddleware(token string) *AuthMiddleware {
	return &AuthMiddleware{token: []byte(token)}
}

// Middleware сверяет токен запроса с настроенным токеном за постоянное время.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.token) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		got := []byte(r.Header.Get(AdminTokenHeader))
		if !hmac.Equal(got, a.token) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
