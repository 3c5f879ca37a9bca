package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"app/internal/api/v1/dto"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthHandler handles signup, login, token refresh and the OAuth callback.
type AuthHandler struct {
	authService  service.AuthService
	validate     *validator.Validate
	appOriginURL string
	logger       zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService, v *validator.Validate, appOriginURL string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, validate: v, appOriginURL: appOriginURL, logger: logger}
}

// RegisterRoutes mounts v1 auth routes. None of them require a bearer token.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/signup", h.signUp)
	mux.HandleFunc("/auth/login", h.login)
	mux.HandleFunc("/auth/refresh", h.refresh)
	mux.HandleFunc("/auth/logout", h.logout)
	mux.HandleFunc("/auth/google", h.googleLogin)
	mux.HandleFunc("/auth/google/callback", h.googleCallback)
}

func (h *AuthHandler) signUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.SignUpDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, pair, err := h.authService.SignUp(r.Context(), req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error().Err(err).Msg("failed to sign up")
		http.Error(w, "failed to sign up", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse(user, pair))
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, pair, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h.logger.Error().Err(err).Msg("failed to log in")
		http.Error(w, "failed to log in", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse(user, pair))
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.RefreshDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound), errors.Is(err, service.ErrSessionExpired):
			http.Error(w, err.Error(), http.StatusUnauthorized)
		default:
			h.logger.Error().Err(err).Msg("failed to refresh session")
			http.Error(w, "failed to refresh session", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse(nil, pair))
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.RefreshDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		h.logger.Error().Err(err).Msg("failed to log out")
		http.Error(w, "failed to log out", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// googleLogin redirects the browser to the Google consent screen. The CSRF
// state is stored in a short-lived cookie checked on callback.
func (h *AuthHandler) googleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.authService.GoogleLoginURL(state), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) googleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	cookie, err := r.Cookie("oauth_state")
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	_, pair, err := h.authService.GoogleCallback(r.Context(), code)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to complete google login")
		http.Error(w, "failed to complete google login", http.StatusInternalServerError)
		return
	}

	// Hand the tokens back to the app in the redirect fragment.
	redirect := h.appOriginURL + "#access_token=" + url.QueryEscape(pair.AccessToken) +
		"&refresh_token=" + url.QueryEscape(pair.RefreshToken)
	http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
}

func tokenResponse(user *model.User, pair *service.TokenPair) dto.TokenResponseDTO {
	resp := dto.TokenResponseDTO{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	}
	if user != nil {
		u := userResponse(user)
		resp.User = &u
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
