package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/service"
)

// AuthHandler exposes account registration and the session cookie lifecycle.
//
// ROUTES:
//   - POST /api/auth/register  → create account, log in
//   - POST /api/auth/login     → check password, log in
//   - POST /api/auth/logout    → revoke session, clear cookie
//   - GET  /api/auth/verify    → who am I?
//   - ANY  /api/auth?action=X  → same four, dispatched on the query string
//
// The service issues sessions; only this handler knows they travel in a cookie.
type AuthHandler struct {
	auth    *service.AuthService
	cookies auth.CookieOptions
	logger  *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, cookies auth.CookieOptions, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, cookies: cookies, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Username    string `json:"username"     validate:"required"`
	Password    string `json:"password"     validate:"required"`
	Email       string `json:"email"        validate:"omitempty,email"`
	DisplayName string `json:"display_name" validate:"omitempty,max=40"`
	// Older clients send camelCase.
	DisplayNameCamel string `json:"displayName" validate:"omitempty,max=40"`
}

const credentialsRequired = "Username and password are required"

func (loginRequest) validationMessage(fe validator.FieldError) (string, bool) {
	return credentialsRequired, fe.Tag() == "required"
}

func (registerRequest) validationMessage(fe validator.FieldError) (string, bool) {
	return credentialsRequired, fe.Tag() == "required"
}

type sessionJSON struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type authResponse struct {
	User    model.PublicUser `json:"user"`
	Session sessionJSON      `json:"session"`
}

func (h *AuthHandler) respondWithSession(w http.ResponseWriter, status int, res *service.AuthResult) {
	auth.SetSessionCookie(w, res.Session.Token, h.cookies)
	writeJSON(w, status, authResponse{
		User:    res.User.Public(),
		Session: sessionJSON{Token: res.Session.Token, ExpiresAt: res.Session.ExpiresAt},
	})
}

// HandleRegister creates an account and logs it in.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"username": "alice", "password": "hunter22", "display_name": "Alice"}
// RESPONSE: 201 {"user": {...}, "session": {"token": "...", "expires_at": 1700000000000}}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.DisplayNameCamel
	}

	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		DisplayName: displayName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.respondWithSession(w, http.StatusCreated, res)
}

// HandleLogin checks credentials and sets the session cookie.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respondWithSession(w, http.StatusOK, res)
}

// HandleLogout always clears the cookie, even if the session was already gone.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), auth.SessionTokenFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}
	auth.ClearSessionCookie(w, h.cookies)
	writeSuccess(w)
}

// HandleVerify reports whether the session cookie is still good.
//
// HTTP: GET /api/auth/verify
// RESPONSE: 200 {"authenticated": true, "user": {...}}
// or 401 {"error": "...", "authenticated": false}
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Verify(r.Context(), auth.SessionTokenFromRequest(r))
	if err != nil {
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrUnauthorized) && errors.As(err, &appErr) {
			appErr.WithDetail("authenticated", false)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          user.Public(),
	})
}

// HandleAction serves the combined /api/auth?action= endpoint.
func (h *AuthHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	routes := map[string]struct {
		method string
		handle http.HandlerFunc
	}{
		"login":    {http.MethodPost, h.HandleLogin},
		"register": {http.MethodPost, h.HandleRegister},
		"logout":   {http.MethodPost, h.HandleLogout},
		"verify":   {http.MethodGet, h.HandleVerify},
	}

	action := r.URL.Query().Get("action")
	if action == "" {
		writeError(w, apperror.ValidationFailed("action", "Action parameter required (login, register, logout, verify)"))
		return
	}

	route, ok := routes[action]
	if !ok {
		writeMethodNotAllowed(w, "Method not allowed for action: "+action)
		return
	}
	if r.Method != route.method {
		writeMethodNotAllowed(w, "Method not allowed for action: "+action, route.method)
		return
	}
	route.handle(w, r)
}
