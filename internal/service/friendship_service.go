package service

import (
	"context"
	"errors"

	"Walcord/internal/model"
	"Walcord/internal/repository/mysql"
)

var ErrCannotFriendSelf = errors.New("cannot befriend self")

type FriendshipService struct {
	repo  *mysql.FriendshipRepository
	users *mysql.UserRepository
}

func NewFriendshipService(repo *mysql.FriendshipRepository, users *mysql.UserRepository) *FriendshipService {
	return &FriendshipService{repo: repo, users: users}
}

// Friend 好友列表中的一项，UserID 是对方
type Friend struct {
	ID     uint64 `json:"id"`
	UserID uint64 `json:"user_id"`
	Status string `json:"status"`
}

func toFriends(userID uint64, rows []model.Friendship) []Friend {
	out := make([]Friend, 0, len(rows))
	for _, f := range rows {
		other := f.RequesterID
		if other == userID {
			other = f.ReceiverID
		}
		out = append(out, Friend{ID: f.ID, UserID: other, Status: f.Status})
	}
	return out
}

// Request 返回关系的最新状态
func (s *FriendshipService) Request(ctx context.Context, from, to uint64) (string, bool, error) {
	if from == 0 || to == 0 {
		return "", false, ErrInvalidUserID
	}
	if from == to {
		return "", false, ErrCannotFriendSelf
	}
	ok, err := s.users.Exists(ctx, to)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, ErrUserNotFound
	}
	return s.repo.Request(ctx, from, to)
}

func (s *FriendshipService) Accept(ctx context.Context, receiverID, requesterID uint64) (bool, error) {
	if receiverID == 0 || requesterID == 0 || receiverID == requesterID {
		return false, ErrInvalidUserID
	}
	return s.repo.Accept(ctx, receiverID, requesterID)
}

func (s *FriendshipService) Remove(ctx context.Context, userID, otherID uint64) (bool, error) {
	if userID == 0 || otherID == 0 || userID == otherID {
		return false, ErrInvalidUserID
	}
	return s.repo.Remove(ctx, userID, otherID)
}

// Status 没有关系时返回空字符串
func (s *FriendshipService) Status(ctx context.Context, a, b uint64) (string, error) {
	rel, err := s.repo.Status(ctx, a, b)
	if err != nil || rel == nil {
		return "", err
	}
	return rel.Status, nil
}

func (s *FriendshipService) List(ctx context.Context, userID, cursor uint64, limit int) ([]Friend, uint64, error) {
	rows, next, err := s.repo.ListAccepted(ctx, userID, cursor, limit)
	if err != nil {
		return nil, 0, err
	}
	return toFriends(userID, rows), next, nil
}

func (s *FriendshipService) Incoming(ctx context.Context, userID, cursor uint64, limit int) ([]Friend, uint64, error) {
	rows, next, err := s.repo.ListIncoming(ctx, userID, cursor, limit)
	if err != nil {
		return nil, 0, err
	}
	return toFriends(userID, rows), next, nil
}
