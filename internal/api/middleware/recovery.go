package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	"stopguard/pkg/utils"
)

// Recovery перехватывает панику в handler'ах: сервер продолжает
// обслуживать запросы, клиент получает 500 без деталей паники.
// Stack trace остается в логах.
func Recovery(logger *utils.Logger) mux.MiddlewareFunc {
	log := logger.WithComponent("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic in handler",
						utils.String("path", r.URL.Path),
						utils.String("panic", fmt.Sprintf("%v", err)),
						utils.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
