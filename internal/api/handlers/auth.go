package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/go-crm/internal/api/dto"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/api/validation"
	"github.com/hugh/go-crm/internal/auth"
)

type AuthHandler struct {
	authService  *auth.Service
	logger       *slog.Logger
	secureCookie bool
	maxAge       int
}

func NewAuthHandler(authService *auth.Service, jwtService *auth.JWTService, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		logger:       logger,
		secureCookie: secureCookie,
		maxAge:       int(jwtService.Expiry().Seconds()),
	}
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   h.maxAge,
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if ok, msg := validation.IsValidPassword(req.Password); !ok {
		writeValidation(w, map[string]string{"password": msg})
		return
	}

	resp, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: validation.SanitizeString(req.FirstName),
		LastName:  validation.SanitizeString(req.LastName),
		OrgName:   validation.SanitizeString(req.OrgName),
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			writeError(w, http.StatusConflict, "User already exists")
			return
		}
		h.logger.Error("registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	h.setTokenCookie(w, resp.Token)
	writeJSON(w, http.StatusCreated, dto.AuthResponse{
		Token: resp.Token,
		User:  dto.NewUserDTO(resp.User),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	login := req.Identifier()
	if login == "" {
		writeValidation(w, map[string]string{"login": "is required"})
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Login:    login,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, auth.ErrInactiveUser):
			writeError(w, http.StatusForbidden, "Account is inactive")
		default:
			h.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	h.setTokenCookie(w, resp.Token)
	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token: resp.Token,
		User:  dto.NewUserDTO(resp.User),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

// Me returns the signed-in user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}
