package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/logger"
)

const csrfCookieName = "_csrf_token"

// GetCSRFToken issues a fresh signed token in both a cookie and the response,
// for double-submit validation on state-changing requests.
func GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	token := generateSignedCSRFToken(config.Cfg.CSRFAuthKey)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		MaxAge:   3600,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-CSRF-Token", token)
	json.NewEncoder(w).Encode(map[string]string{
		"csrfToken": token,
	})
}

func generateRandomToken() string {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		// Timestamp fallback if the entropy source is unavailable.
		logger.L.Error("Error generating random bytes for token", "error", err)
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return base64.StdEncoding.EncodeToString(b)
}

// generateSignedCSRFToken produces "payload.signature", binding the random
// payload to the server's CSRF auth key. The base64 alphabet never contains
// '.', so the separator is unambiguous.
func generateSignedCSRFToken(authKey []byte) string {
	payload := generateRandomToken()
	return payload + "." + signCSRFPayload(authKey, payload)
}

func signCSRFPayload(authKey []byte, payload string) string {
	mac := hmac.New(sha256.New, authKey)
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validCSRFToken(authKey []byte, token string) bool {
	payload, sig, found := strings.Cut(token, ".")
	if !found {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(signCSRFPayload(authKey, payload)))
}

// CSRFMiddleware validates the double-submit token: the X-CSRF-Token header
// must match the CSRF cookie and carry a valid HMAC under authKey, so a token
// cannot be minted by anything but this server. OPTIONS preflights and safe
// GETs pass through.
func CSRFMiddleware(authKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get("X-CSRF-Token")
			cookie, err := r.Cookie(csrfCookieName)

			if headerToken != "" && err == nil && headerToken == cookie.Value && validCSRFToken(authKey, headerToken) {
				next.ServeHTTP(w, r)
				return
			}

			logger.L.Warn("CSRF token validation failed",
				"method", r.Method,
				"path", r.URL.Path,
				"origin", r.Header.Get("Origin"),
				"hasHeaderToken", headerToken != "",
				"cookieError", err != nil)
			http.Error(w, "CSRF token validation failed", http.StatusForbidden)
		})
	}
}
