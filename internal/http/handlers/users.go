package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/friendhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UserLister interface {
	List(ctx context.Context) ([]user.User, error)
}

type UsersHandler struct {
	users UserLister
}

func NewUsersHandler(users UserLister) *UsersHandler {
	return &UsersHandler{users: users}
}

// Registrations lists every registered user in creation order. Password
// hashes are dropped by the record's JSON tags.
func (h *UsersHandler) Registrations(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	users, err := h.users.List(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list registrations", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, users)
}
