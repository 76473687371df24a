// Package friends holds the friend-set rules: directed requests, unconditional
// accepts and the candidate query shared by the requests and suggestions views.
package friends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/friendhub/internal/domain/user"
)

var (
	ErrAlreadyRequested = errors.New("friend request already sent or user is already a friend")
	ErrAlreadyFriends   = errors.New("user is already a friend or friend request not found")
	ErrSelfFriend       = errors.New("cannot befriend yourself")
)

type Store interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	// AddFriend appends friendID to userID's friend set unless it is already
	// there; added is false in that case.
	AddFriend(ctx context.Context, userID, friendID string) (added bool, err error)
	ListExcluding(ctx context.Context, ids []string) ([]user.Summary, error)
}

type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{store: store, log: log}
}

// SendRequest records targetID in actorID's friend set.
func (s *Service) SendRequest(ctx context.Context, actorID, targetID string) error {
	return s.add(ctx, "send_request", actorID, targetID, ErrAlreadyRequested)
}

// AcceptRequest records requesterID in actorID's friend set. It does not look
// for a matching request from requesterID.
func (s *Service) AcceptRequest(ctx context.Context, actorID, requesterID string) error {
	return s.add(ctx, "accept_request", actorID, requesterID, ErrAlreadyFriends)
}

// Candidates lists every user other than actorID that is not yet in its friend set.
func (s *Service) Candidates(ctx context.Context, actorID string) ([]user.Summary, error) {
	actor, err := s.store.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}

	out, err := s.store.ListExcluding(ctx, actor.Excluded())
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	return out, nil
}

func (s *Service) add(ctx context.Context, op, actorID, otherID string, conflict error) error {
	if actorID == otherID {
		return ErrSelfFriend
	}

	if _, err := s.store.GetByID(ctx, otherID); err != nil {
		return fmt.Errorf("load friend: %w", err)
	}

	added, err := s.store.AddFriend(ctx, actorID, otherID)
	if err != nil {
		return fmt.Errorf("add friend: %w", err)
	}

	if !added {
		return conflict
	}

	s.log.InfoContext(ctx, "friend set updated", "op", op, "user_id", actorID, "friend_id", otherID)

	return nil
}
