package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/friendhub/internal/domain/user"
	"github.com/geocoder89/friendhub/internal/friends"
	"github.com/geocoder89/friendhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type FriendService interface {
	SendRequest(ctx context.Context, actorID, targetID string) error
	AcceptRequest(ctx context.Context, actorID, requesterID string) error
	Candidates(ctx context.Context, actorID string) ([]user.Summary, error)
}

type FriendsHandler struct {
	svc FriendService
}

func NewFriendsHandler(svc FriendService) *FriendsHandler {
	return &FriendsHandler{svc: svc}
}

func (h *FriendsHandler) SendFriendRequest(ctx *gin.Context) {
	h.mutate(ctx, h.svc.SendRequest, "Friend request sent")
}

func (h *FriendsHandler) AcceptFriendRequest(ctx *gin.Context) {
	h.mutate(ctx, h.svc.AcceptRequest, "Friend request accepted")
}

// FriendRequests and SuggestedFriends share one query; the two routes only
// differ by name.
func (h *FriendsHandler) FriendRequests(ctx *gin.Context) {
	h.candidates(ctx)
}

func (h *FriendsHandler) SuggestedFriends(ctx *gin.Context) {
	h.candidates(ctx)
}

func (h *FriendsHandler) mutate(ctx *gin.Context, op func(context.Context, string, string) error, okMessage string) {
	actorID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondForbidden(ctx, "Forbidden")
		return
	}

	friendID := ctx.Param("friendId")

	// ids are UUIDs, anything else cannot name a user
	if _, err := uuid.Parse(friendID); err != nil {
		RespondNotFound(ctx, "User not found")
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	err := op(cctx, actorID, friendID)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, friends.ErrAlreadyRequested):
			RespondBadRequest(ctx, "already_requested", "Friend request already sent")
		case errors.Is(err, friends.ErrAlreadyFriends):
			RespondBadRequest(ctx, "already_friends", "Already friends")
		case errors.Is(err, friends.ErrSelfFriend):
			RespondBadRequest(ctx, "invalid_request", "Cannot befriend yourself")
		default:
			RespondInternal(ctx, "Could not update friends", err)
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": okMessage})
}

func (h *FriendsHandler) candidates(ctx *gin.Context) {
	actorID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondForbidden(ctx, "Forbidden")
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	out, err := h.svc.Candidates(cctx, actorID)
	if err != nil {
		RespondInternal(ctx, "Could not list users", err)
		return
	}

	ctx.JSON(http.StatusOK, out)
}
