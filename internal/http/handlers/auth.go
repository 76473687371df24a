package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/friendhub/internal/domain/user"
	"github.com/geocoder89/friendhub/internal/observability"
	"github.com/gin-gonic/gin"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, u user.User) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	hasher     PasswordHasher
	tokens     TokenIssuer
	prom       *observability.Prom
	log        *slog.Logger
}

func NewAuthHandler(users UserReader, userWriter UserWriter, hasher PasswordHasher, tokens TokenIssuer, prom *observability.Prom, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}

	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		hasher:     hasher,
		tokens:     tokens,
		prom:       prom,
		log:        log,
	}
}

const registrationFailed = "registration_failed"

// Register reports every failure as 500 registration_failed. Details name
// the offending field when there is one.
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if details, ok := ParseJSON(ctx, &req); !ok {
		RespondError(ctx, http.StatusInternalServerError, registrationFailed, "Registration failed", details)
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		RespondError(ctx, http.StatusInternalServerError, registrationFailed, "Registration failed: "+err.Error(), nil)
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	u, err := h.userWriter.Create(cctx, user.NewFromRegisterRequest(req, hash))
	if err != nil {
		var vErr *user.ValidationError

		switch {
		case errors.As(err, &vErr):
			RespondError(ctx, http.StatusInternalServerError, registrationFailed, "Registration failed",
				gin.H{"fields": []FieldError{{Field: vErr.Field, Rule: vErr.Rule, Message: validationMessage(vErr.Rule, "")}}})
		case errors.Is(err, user.ErrEmailTaken):
			RespondError(ctx, http.StatusInternalServerError, registrationFailed, "Registration failed", nil)
		default:
			_ = ctx.Error(err)
			RespondError(ctx, http.StatusInternalServerError, registrationFailed, "Registration failed: "+err.Error(), nil)
		}
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "user_registered", "user_id", u.ID)

	ctx.String(http.StatusCreated, "Registration successful")
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if _, ok := ParseJSON(ctx, &req); !ok {
		h.invalidCredentials(ctx)
		return
	}

	// short timeout for store lookup
	cctx, cancel := requestContext(ctx, 2*time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			h.invalidCredentials(ctx)
			return
		}

		RespondInternal(ctx, "Could not log in", err)
		return
	}

	if !h.hasher.Verify(req.Password, foundUser.PasswordHash) {
		h.invalidCredentials(ctx)
		return
	}

	token, err := h.tokens.Issue(foundUser.ID)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"token": token,
	})
}

func (h *AuthHandler) invalidCredentials(ctx *gin.Context) {
	h.prom.IncAuthFailure("invalid_credentials")
	RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
}
