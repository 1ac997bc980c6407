package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/taskhub/internal/accounts"
	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Register(ctx context.Context, req user.RegisterRequest) (accounts.Session, error)
	Login(ctx context.Context, req user.LoginRequest) (accounts.Session, error)
	Me(ctx context.Context, userID string) (user.Identity, error)
	UpdateProfile(ctx context.Context, userID string, req user.UpdateProfileRequest) (user.Identity, error)
	ChangePassword(ctx context.Context, userID string, req user.ChangePasswordRequest) error
}

type LoginRecorder interface {
	ObserveLogin(ok bool)
}

type AuthOptions struct {
	Conveyance   auth.Conveyance
	CookieSecure bool
	Timeout      time.Duration
	Logins       LoginRecorder
}

type AuthHandler struct {
	accounts AccountService
	opts     AuthOptions
}

func NewAuthHandler(accounts AccountService, opts AuthOptions) *AuthHandler {
	if opts.Conveyance == "" {
		opts.Conveyance = auth.ConveyanceCookie
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	return &AuthHandler{accounts: accounts, opts: opts}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.opts.Timeout)
	defer cancel()

	sess, err := h.accounts.Register(cctx, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	h.respondSession(ctx, http.StatusCreated, "User registered successfully", sess)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.opts.Timeout)
	defer cancel()

	sess, err := h.accounts.Login(cctx, req)
	if h.opts.Logins != nil {
		h.opts.Logins.ObserveLogin(err == nil)
	}
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	h.respondSession(ctx, http.StatusOK, "Login successful", sess)
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.opts.Timeout)
	defer cancel()

	me, err := h.accounts.Me(cctx, userID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondOK(ctx, http.StatusOK, "User profile retrieved", gin.H{"user": me})
}

func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req user.UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.opts.Timeout)
	defer cancel()

	updated, err := h.accounts.UpdateProfile(cctx, userID, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondOK(ctx, http.StatusOK, "Profile updated successfully", gin.H{"user": updated})
}

func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req user.ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.opts.Timeout)
	defer cancel()

	if err := h.accounts.ChangePassword(cctx, userID, req); err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondOK(ctx, http.StatusOK, "Password updated successfully", nil)
}

// Logout clears the session cookie. Tokens are stateless, so header clients just drop theirs.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	if h.opts.Conveyance == auth.ConveyanceCookie {
		h.clearSessionCookie(ctx)
	}

	RespondOK(ctx, http.StatusOK, "Logout successful", nil)
}

func (h *AuthHandler) respondSession(ctx *gin.Context, status int, message string, sess accounts.Session) {
	if h.opts.Conveyance == auth.ConveyanceHeader {
		RespondOK(ctx, status, message, gin.H{
			"user":      sess.User,
			"token":     sess.Token,
			"expiresAt": sess.ExpiresAt,
		})
		return
	}

	h.setSessionCookie(ctx, sess.Token, sess.ExpiresAt)
	RespondOK(ctx, status, message, gin.H{"user": sess.User})
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		auth.CookieName,
		raw,
		maxAge,
		"/",
		"",
		h.opts.CookieSecure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		auth.CookieName,
		"",
		-1,
		"/",
		"",
		h.opts.CookieSecure,
		true,
	)
}
