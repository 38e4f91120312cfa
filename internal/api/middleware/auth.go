package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"stopguard/pkg/crypto"
)

// BearerAuth проверяет admin-токен из заголовка Authorization.
//
// В памяти процесса хранится только bcrypt-хеш токена; сравнение
// constant-time внутри bcrypt. Запросы без валидного токена
// получают 401 без уточнения причины.
func BearerAuth(tokenHash string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}
			if !crypto.CheckTokenMatch(token, tokenHash) {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
