package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	entity "simbi-market/internal/domain"
	"simbi-market/internal/jobs"
	repo "simbi-market/internal/repository/postgresql"

	"github.com/google/uuid"
)

var (
	ErrAlreadyReviewed = errors.New("item already reviewed by this user")
	ErrReviewNotFound  = errors.New("review not found")
)

// Aggregate recalculation is debounced: repeated rating saves within the
// window collapse into one job.
const ratingRecalcDelay = time.Minute

type RatingService struct {
	store      repo.TxRunner
	ratingRepo repo.RatingRepository
	ledgerRepo repo.LedgerRepository
	queue      jobs.JobQueue
}

func NewRatingService(store repo.TxRunner, ratingRepo repo.RatingRepository, ledgerRepo repo.LedgerRepository, queue jobs.JobQueue) *RatingService {
	return &RatingService{store: store, ratingRepo: ratingRepo, ledgerRepo: ledgerRepo, queue: queue}
}

// SaveRatings upserts the author's marks for the counter-party. Quality and
// expert marks link the traded item; reliability is talk-scoped only. The
// subject's aggregate is recalculated out of process.
func (s *RatingService) SaveRatings(ctx context.Context, talkID, authorID, subjectID, itemID uuid.UUID, itemType string, inputs []entity.RatingInput) (entity.FieldErrors, error) {
	ferrs := entity.FieldErrors{}
	for i, in := range inputs {
		switch in.Kind {
		case entity.RatingKindQuality, entity.RatingKindExpert, entity.RatingKindReliability:
		default:
			ferrs.Add(fmt.Sprintf("ratings.%d", i), "unknown rating kind")
		}
		if in.Value < entity.RatingMinValue || in.Value > 5 {
			ferrs.Add(fmt.Sprintf("ratings.%d", i), "value must be between 1 and 5")
		}
	}
	if ferrs.Any() {
		return ferrs, nil
	}

	for _, in := range inputs {
		rating := &entity.Rating{
			ID:       uuid.New(),
			UserID:   subjectID,
			AuthorID: authorID,
			TalkID:   talkID,
			Kind:     in.Kind,
			Value:    in.Value,
		}
		if in.Kind != entity.RatingKindReliability {
			rating.ItemID = itemID
			rating.ItemType = itemType
		}
		if err := s.ratingRepo.Upsert(rating); err != nil {
			return nil, err
		}
	}

	s.enqueueRecalc(ctx, subjectID)
	return nil, nil
}

// CreateReview stores the author's free-text review of the traded item, one
// per item and author. The review's numeric rating is the mean of the
// author's marks for the talk at save time.
func (s *RatingService) CreateReview(ctx context.Context, talkID, authorID, subjectID, itemID uuid.UUID, itemType, message string) (*entity.Review, error) {
	existing, err := s.ratingRepo.GetReview(itemID, itemType, authorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyReviewed
	}

	ratings, err := s.ratingRepo.ByAuthorAndTalk(authorID, talkID)
	if err != nil {
		return nil, err
	}
	var mean float64
	if len(ratings) > 0 {
		var sum int
		for _, r := range ratings {
			sum += r.Value
		}
		mean = float64(sum) / float64(len(ratings))
	}

	review := &entity.Review{
		ID:       uuid.New(),
		UserID:   subjectID,
		AuthorID: authorID,
		ItemID:   itemID,
		ItemType: itemType,
		Message:  message,
		Rating:   mean,
	}
	if err := s.ratingRepo.InsertReview(review); err != nil {
		return nil, err
	}

	if err := s.store.InTx(ctx, func(tx *sql.Tx) error {
		return s.ledgerRepo.InsertHistory(tx, itemID, itemType, authorID, entity.HistoryReview)
	}); err != nil {
		log.Printf("Warning: failed to record review history for %s %s: %v", itemType, itemID, err)
	}
	return review, nil
}

// UpdateReview replaces the review text and refreshes the numeric rating from
// the author's current marks for the talk.
func (s *RatingService) UpdateReview(talkID, authorID, itemID uuid.UUID, itemType, message string) (*entity.Review, error) {
	review, err := s.ratingRepo.GetReview(itemID, itemType, authorID)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, ErrReviewNotFound
	}

	ratings, err := s.ratingRepo.ByAuthorAndTalk(authorID, talkID)
	if err != nil {
		return nil, err
	}
	if len(ratings) > 0 {
		var sum int
		for _, r := range ratings {
			sum += r.Value
		}
		review.Rating = float64(sum) / float64(len(ratings))
	}

	review.Message = message
	if err := s.ratingRepo.UpdateReview(review); err != nil {
		return nil, err
	}
	return review, nil
}

// RecordNoResponse marks the counter-party's reliability at the floor after a
// no-response cancellation, unless the author already rated reliability for
// this talk.
func (s *RatingService) RecordNoResponse(ctx context.Context, talkID, authorID, subjectID uuid.UUID) error {
	exists, err := s.ratingRepo.Exists(authorID, talkID, entity.RatingKindReliability)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	rating := &entity.Rating{
		ID:       uuid.New(),
		UserID:   subjectID,
		AuthorID: authorID,
		TalkID:   talkID,
		Kind:     entity.RatingKindReliability,
		Value:    entity.RatingMinValue,
	}
	if err := s.ratingRepo.Upsert(rating); err != nil {
		return err
	}

	s.enqueueRecalc(ctx, subjectID)
	return nil
}

func (s *RatingService) enqueueRecalc(ctx context.Context, subjectID uuid.UUID) {
	key := fmt.Sprintf("%s:%s", jobs.JobUpdateUserRating, subjectID)
	args := map[string]string{"user_id": subjectID.String()}
	if err := s.queue.EnqueueIn(ctx, jobs.JobUpdateUserRating, key, args, ratingRecalcDelay); err != nil {
		log.Printf("Warning: failed to enqueue rating recalc for user %s: %v", subjectID, err)
	}
}
