package service

import (
	"context"
	"database/sql"
	"errors"

	entity "simbi-market/internal/domain"
	repo "simbi-market/internal/repository/postgresql"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrSelfTalk     = errors.New("cannot start a talk with yourself")
	ErrEmptyMessage = errors.New("message content is empty")
)

type TalkService struct {
	store    repo.TxRunner
	talkRepo repo.TalkRepository
	userRepo repo.UserRepository
}

func NewTalkService(store repo.TxRunner, talkRepo repo.TalkRepository, userRepo repo.UserRepository) *TalkService {
	return &TalkService{store: store, talkRepo: talkRepo, userRepo: userRepo}
}

// Create opens a talk between the creator and one other user, optionally
// seeded with a first message. The creator's side starts read; the other
// side starts unread. Initial offers and orders are attached by their own
// services after the talk exists.
func (s *TalkService) Create(ctx context.Context, creatorID uuid.UUID, input *entity.CreateTalkInput) (*entity.Talk, error) {
	otherID, err := uuid.Parse(input.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if otherID == creatorID {
		return nil, ErrSelfTalk
	}

	other, err := s.userRepo.GetByID(otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}

	talk := &entity.Talk{
		ID:     uuid.New(),
		Status: entity.TalkStatusOpen,
	}
	if input.ServiceID != "" {
		serviceID, err := uuid.Parse(input.ServiceID)
		if err != nil {
			return nil, errors.New("service_id is not a valid id")
		}
		talk.ServiceID = serviceID
	}

	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.talkRepo.Insert(tx, talk, []uuid.UUID{creatorID, otherID}, creatorID); err != nil {
			return err
		}
		if input.Message != "" {
			msg := &entity.Message{
				ID:       uuid.New(),
				TalkID:   talk.ID,
				AuthorID: creatorID,
				Content:  input.Message,
			}
			return s.talkRepo.InsertMessage(tx, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return talk, nil
}

// SendMessage appends a message and flips the read markers: read for the
// author, unread for the other side, unarchived for both.
func (s *TalkService) SendMessage(ctx context.Context, talkID, authorID uuid.UUID, content string) (*entity.Message, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := s.Participants(talkID, authorID); err != nil {
		return nil, err
	}

	msg := &entity.Message{
		ID:       uuid.New(),
		TalkID:   talkID,
		AuthorID: authorID,
		Content:  content,
	}
	err := s.store.InTx(ctx, func(tx *sql.Tx) error {
		return s.talkRepo.InsertMessage(tx, msg)
	})
	if err != nil {
		return nil, err
	}

	if err := s.talkRepo.TouchForActor(talkID, authorID); err != nil {
		return nil, err
	}
	return msg, nil
}

// Participants returns the talk's two users after checking the actor is one
// of them.
func (s *TalkService) Participants(talkID, actorID uuid.UUID) ([]uuid.UUID, error) {
	talk, err := s.talkRepo.GetByID(talkID)
	if err != nil {
		return nil, err
	}
	if talk == nil {
		return nil, ErrTalkNotFound
	}
	users, err := s.talkRepo.Participants(talkID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(users, actorID) {
		return nil, ErrNotParticipant
	}
	return users, nil
}

func (s *TalkService) MarkRead(talkIDs []uuid.UUID, userID uuid.UUID) error {
	return s.talkRepo.MarkRead(talkIDs, userID)
}

func (s *TalkService) MarkUnread(talkIDs []uuid.UUID, userID uuid.UUID) error {
	return s.talkRepo.MarkUnread(talkIDs, userID)
}

func (s *TalkService) Archive(talkIDs []uuid.UUID, userID uuid.UUID) error {
	return s.talkRepo.Archive(talkIDs, userID)
}

func (s *TalkService) Unarchive(talkIDs []uuid.UUID, userID uuid.UUID) error {
	return s.talkRepo.Unarchive(talkIDs, userID)
}

func (s *TalkService) UnreadCount(userID uuid.UUID) (int, error) {
	return s.talkRepo.UnreadCount(userID)
}

func (s *TalkService) TabCounts(userID uuid.UUID) (*entity.TabCounts, error) {
	return s.talkRepo.TabCounts(userID)
}
