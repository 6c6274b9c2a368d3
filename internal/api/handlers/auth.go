// auth.go - вход через Keycloak OIDC (Authorization Code + PKCE):
// /auth/login, /auth/callback, /auth/logout, /auth/refresh.
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/ngriffiths19/lunch-planner/internal/api/errors"
	"github.com/ngriffiths19/lunch-planner/internal/auth"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

// stateCookieName - cookie с PKCE state на время входа.
const stateCookieName = "lunch_auth_state"

// stateCookieMaxAge - 5 минут.
const stateCookieMaxAge = 5 * 60

// TokenValidator проверяет access token и возвращает Principal (nil - невалиден).
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) *model.Principal
}

// AuthHandler - обработчики браузерного входа.
type AuthHandler struct {
	oidcClient     *auth.OIDCClient
	sessionManager *auth.SessionManager
	tokens         TokenValidator
	// publicURL - внешний адрес сервиса; пустой - берётся из запроса
	publicURL    string
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler создаёт обработчик входа.
func NewAuthHandler(
	oidcClient *auth.OIDCClient,
	sessionManager *auth.SessionManager,
	tokens TokenValidator,
	publicURL string,
	secureCookie bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		oidcClient:     oidcClient,
		sessionManager: sessionManager,
		tokens:         tokens,
		publicURL:      strings.TrimRight(publicURL, "/"),
		secureCookie:   secureCookie,
		logger:         logger.With(slog.String("component", "auth_handler")),
	}
}

// stateData - содержимое state cookie.
type stateData struct {
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier"`
}

// HandleLogin - GET /auth/login. Redirect на страницу входа Keycloak.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	pkce, err := auth.GeneratePKCE()
	if err != nil {
		h.logger.Error("Ошибка генерации PKCE", slog.String("error", err.Error()))
		apierrors.InternalError(w)
		return
	}
	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("Ошибка генерации state", slog.String("error", err.Error()))
		apierrors.InternalError(w)
		return
	}

	sdJSON, _ := json.Marshal(stateData{State: state, CodeVerifier: pkce.CodeVerifier})
	h.setStateCookie(w, base64.URLEncoding.EncodeToString(sdJSON), stateCookieMaxAge)

	http.Redirect(w, r, h.oidcClient.AuthorizeURL(h.redirectURI(r), state, pkce.CodeChallenge), http.StatusFound)
}

// HandleCallback - GET /auth/callback. Обменивает code на токены
// и устанавливает cookie сессии.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		h.logger.Warn("Keycloak вернул ошибку авторизации",
			slog.String("error", errCode),
			slog.String("description", q.Get("error_description")),
		)
		apierrors.ValidationError(w, "Ошибка авторизации: "+errCode)
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		apierrors.ValidationError(w, "Отсутствует code или state")
		return
	}

	sd, ok := h.readStateCookie(r)
	if !ok {
		apierrors.ValidationError(w, "Сессия авторизации истекла, попробуйте ещё раз")
		return
	}
	if sd.State != state {
		h.logger.Warn("State mismatch при входе", slog.String("remote_addr", r.RemoteAddr))
		apierrors.ValidationError(w, "State mismatch")
		return
	}
	h.setStateCookie(w, "", -1)

	tokenResp, err := h.oidcClient.ExchangeCode(r.Context(), code, h.redirectURI(r), sd.CodeVerifier)
	if err != nil {
		h.logger.Error("Ошибка обмена code на токены", slog.String("error", err.Error()))
		apierrors.InternalError(w)
		return
	}

	p := h.tokens.ValidateToken(r.Context(), tokenResp.AccessToken)
	if p == nil {
		h.logger.Warn("Keycloak выдал токен, не прошедший проверку")
		apierrors.Unauthorized(w)
		return
	}

	if err := h.sessionManager.SetSessionCookie(w, tokenResp.Session(p.Email)); err != nil {
		h.logger.Error("Ошибка установки cookie сессии", slog.String("error", err.Error()))
		apierrors.InternalError(w)
		return
	}

	h.logger.Info("Пользователь вошёл",
		slog.String("user_id", p.ID),
		slog.String("email", p.Email),
	)
	http.Redirect(w, r, h.baseURL(r)+"/", http.StatusFound)
}

// HandleLogout - POST /auth/logout. Очищает сессию и уводит на logout Keycloak.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	idToken := ""
	if sess, err := h.sessionManager.SessionFromRequest(r); err == nil && sess != nil {
		idToken = sess.IDToken
	}
	h.sessionManager.ClearSessionCookie(w)

	http.Redirect(w, r, h.oidcClient.LogoutURL(idToken, h.baseURL(r)+"/"), http.StatusFound)
}

// HandleRefresh - POST /auth/refresh. Обновляет access token в cookie.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionManager.SessionFromRequest(r)
	if err != nil || sess == nil || sess.RefreshToken == "" {
		apierrors.Unauthorized(w)
		return
	}

	tokenResp, err := h.oidcClient.RefreshTokens(r.Context(), sess.RefreshToken)
	if err != nil {
		h.logger.Warn("Ошибка обновления токена", slog.String("error", err.Error()))
		h.sessionManager.ClearSessionCookie(w)
		apierrors.Unauthorized(w)
		return
	}

	next := tokenResp.Session(sess.Email)
	if next.RefreshToken == "" {
		next.RefreshToken = sess.RefreshToken
	}
	if next.IDToken == "" {
		next.IDToken = sess.IDToken
	}
	if err := h.sessionManager.SetSessionCookie(w, next); err != nil {
		h.logger.Error("Ошибка установки cookie сессии", slog.String("error", err.Error()))
		apierrors.InternalError(w)
		return
	}
	writeOK(w)
}

func (h *AuthHandler) setStateCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    value,
		Path:     "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) readStateCookie(r *http.Request) (*stateData, bool) {
	c, err := r.Cookie(stateCookieName)
	if err != nil {
		return nil, false
	}
	raw, err := base64.URLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil, false
	}
	var sd stateData
	if err := json.Unmarshal(raw, &sd); err != nil || sd.State == "" {
		return nil, false
	}
	return &sd, true
}

func (h *AuthHandler) redirectURI(r *http.Request) string {
	return h.baseURL(r) + "/auth/callback"
}

// baseURL - publicURL из конфигурации или scheme://host запроса
// с учётом X-Forwarded-* от reverse proxy.
func (h *AuthHandler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	host := r.Host
	if fwdHost := r.Header.Get("X-Forwarded-Host"); fwdHost != "" {
		host = fwdHost
	}
	return scheme + "://" + host
}
