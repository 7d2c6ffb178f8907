package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"gruz-board/internal/domain"
)

type ctxKey int

const identityKey ctxKey = 0

// IdentityMiddleware извлекает аккаунт из Telegram WebApp initData и
// кладёт его в контекст запроса. Отсутствующий или невалидный initData
// не ошибка: запрос идёт дальше анонимным, требование аутентификации
// решают операции, а не транспорт.
func IdentityMiddleware(botToken string) func(http.Handler) http.Handler {
	secret := webAppSecret(botToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			initData := r.Header.Get("X-Telegram-Init-Data")
			if initData == "" {
				initData = r.URL.Query().Get("init_data")
			}
			identity := domain.Anonymous()
			if initData != "" && validateInitData(initData, secret) {
				if id, ok := parseIdentity(initData); ok {
					identity = id
				}
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// webAppSecret выводит ключ подписи initData из токена бота.
func webAppSecret(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// WithIdentity кладёт аккаунт в контекст вручную, минуя initData.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom возвращает аккаунт запроса. Без middleware отдаёт анонима.
func IdentityFrom(ctx context.Context) domain.Identity {
	if id, ok := ctx.Value(identityKey).(domain.Identity); ok {
		return id
	}
	return domain.Anonymous()
}

// validateInitData сверяет подпись initData: пара hash исключается,
// остальные пары в URL-декодированном виде сортируются и хэшируются
// через перевод строки.
func validateInitData(initData string, secret []byte) bool {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(values.Get("hash"))
	if err != nil || len(expected) == 0 {
		return false
	}
	values.Del("hash")

	pairs := make([]string, 0, len(values))
	for key, vals := range values {
		for _, v := range vals {
			pairs = append(pairs, key+"="+v)
		}
	}
	sort.Strings(pairs)

	h := hmac.New(sha256.New, secret)
	h.Write([]byte(strings.Join(pairs, "\n")))
	return hmac.Equal(h.Sum(nil), expected)
}

func parseIdentity(initData string) (domain.Identity, bool) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return domain.Identity{}, false
	}
	var user struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
		Username  string `json:"username"`
	}
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return domain.Identity{}, false
	}
	name := user.FirstName
	if name == "" {
		name = user.Username
	}
	return domain.Identity{ID: strconv.FormatInt(user.ID, 10), Name: name}, true
}

// RequestID возвращает request ID из контекста chi.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// ErrorResponse описывает ошибку.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError отправляет JSON с ошибкой.
func WriteError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":"%s"}`, err.Error())))
}
