package service

import (
	"context"
	"testing"

	entity "simbi-market/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func ratingFixture(t *testing.T) (*RatingService, *fakeRatingRepo, *fakeQueue) {
	t.Helper()
	ratingRepo := newFakeRatingRepo()
	queue := &fakeQueue{}
	svc := NewRatingService(&fakeStore{}, ratingRepo, &fakeLedger{}, queue)
	return svc, ratingRepo, queue
}

func TestSaveRatingsUpsertsAndDebounces(t *testing.T) {
	svc, ratingRepo, queue := ratingFixture(t)
	talkID, author, subject, itemID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	inputs := []entity.RatingInput{
		{Kind: entity.RatingKindQuality, Value: 5},
		{Kind: entity.RatingKindReliability, Value: 4},
	}
	ferrs, err := svc.SaveRatings(context.Background(), talkID, author, subject, itemID, entity.ItemTypeOffer, inputs)
	require.NoError(t, err)
	require.False(t, ferrs.Any())
	require.Len(t, ratingRepo.ratings, 2)

	quality := ratingRepo.ratings[ratingKey{subject, author, talkID, entity.RatingKindQuality}]
	require.NotNil(t, quality)
	require.Equal(t, 5, quality.Value)
	require.Equal(t, itemID, quality.ItemID)

	// Reliability is talk-scoped, never linked to the item.
	reliability := ratingRepo.ratings[ratingKey{subject, author, talkID, entity.RatingKindReliability}]
	require.NotNil(t, reliability)
	require.Equal(t, uuid.Nil, reliability.ItemID)

	require.Len(t, queue.jobs, 1)
	require.Equal(t, "update_user_rating", queue.jobs[0].name)

	// Re-rating replaces the value instead of adding a row.
	_, err = svc.SaveRatings(context.Background(), talkID, author, subject, itemID, entity.ItemTypeOffer, []entity.RatingInput{
		{Kind: entity.RatingKindQuality, Value: 2},
	})
	require.NoError(t, err)
	require.Len(t, ratingRepo.ratings, 2)
	require.Equal(t, 2, ratingRepo.ratings[ratingKey{subject, author, talkID, entity.RatingKindQuality}].Value)
}

func TestSaveRatingsRejectsBadInput(t *testing.T) {
	svc, _, _ := ratingFixture(t)
	talkID, author, subject := uuid.New(), uuid.New(), uuid.New()

	ferrs, err := svc.SaveRatings(context.Background(), talkID, author, subject, uuid.New(), entity.ItemTypeOffer, []entity.RatingInput{
		{Kind: "charisma", Value: 3},
		{Kind: entity.RatingKindQuality, Value: 9},
	})
	require.NoError(t, err)
	require.Contains(t, ferrs, "ratings.0")
	require.Contains(t, ferrs, "ratings.1")
}

func TestCreateReviewComputesMean(t *testing.T) {
	svc, ratingRepo, _ := ratingFixture(t)
	talkID, author, subject, itemID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	_, err := svc.SaveRatings(context.Background(), talkID, author, subject, itemID, entity.ItemTypeOffer, []entity.RatingInput{
		{Kind: entity.RatingKindQuality, Value: 5},
		{Kind: entity.RatingKindReliability, Value: 2},
	})
	require.NoError(t, err)

	review, err := svc.CreateReview(context.Background(), talkID, author, subject, itemID, entity.ItemTypeOffer, "great trade")
	require.NoError(t, err)
	require.Equal(t, 3.5, review.Rating)
	require.Equal(t, "great trade", review.Message)
	require.Len(t, ratingRepo.reviews, 1)
}

func TestCreateReviewOncePerItem(t *testing.T) {
	svc, _, _ := ratingFixture(t)
	talkID, author, subject, itemID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	_, err := svc.CreateReview(context.Background(), talkID, author, subject, itemID, entity.ItemTypeOffer, "first")
	require.NoError(t, err)

	_, err = svc.CreateReview(context.Background(), talkID, author, subject, itemID, entity.ItemTypeOffer, "second")
	require.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestUpdateReview(t *testing.T) {
	svc, ratingRepo, _ := ratingFixture(t)
	talkID, author, subject, itemID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	_, err := svc.UpdateReview(talkID, author, itemID, entity.ItemTypeOffer, "edited")
	require.ErrorIs(t, err, ErrReviewNotFound)

	_, err = svc.CreateReview(context.Background(), talkID, author, subject, itemID, entity.ItemTypeOffer, "original")
	require.NoError(t, err)

	review, err := svc.UpdateReview(talkID, author, itemID, entity.ItemTypeOffer, "edited")
	require.NoError(t, err)
	require.Equal(t, "edited", review.Message)
	require.Equal(t, "edited", ratingRepo.reviews[0].Message)
}

func TestUpdateReviewRefreshesRating(t *testing.T) {
	svc, ratingRepo, _ := ratingFixture(t)
	talkID, author, subject, itemID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	_, err := svc.SaveRatings(context.Background(), talkID, author, subject, itemID, entity.ItemTypeOffer, []entity.RatingInput{
		{Kind: entity.RatingKindQuality, Value: 2},
	})
	require.NoError(t, err)

	_, err = svc.CreateReview(context.Background(), talkID, author, subject, itemID, entity.ItemTypeOffer, "original")
	require.NoError(t, err)
	require.Equal(t, 2.0, ratingRepo.reviews[0].Rating)

	// The author revises their mark; the review rating follows on update.
	_, err = svc.SaveRatings(context.Background(), talkID, author, subject, itemID, entity.ItemTypeOffer, []entity.RatingInput{
		{Kind: entity.RatingKindQuality, Value: 5},
	})
	require.NoError(t, err)

	review, err := svc.UpdateReview(talkID, author, itemID, entity.ItemTypeOffer, "revised")
	require.NoError(t, err)
	require.Equal(t, 5.0, review.Rating)
	require.Equal(t, 5.0, ratingRepo.reviews[0].Rating)
}

func TestCreateReviewRecordsHistory(t *testing.T) {
	ratingRepo := newFakeRatingRepo()
	ledger := &fakeLedger{}
	svc := NewRatingService(&fakeStore{}, ratingRepo, ledger, &fakeQueue{})
	talkID, author, subject, itemID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	_, err := svc.CreateReview(context.Background(), talkID, author, subject, itemID, entity.ItemTypeOffer, "great trade")
	require.NoError(t, err)

	require.Len(t, ledger.histories, 1)
	require.Equal(t, entity.HistoryReview, ledger.histories[0].Kind)
	require.Equal(t, itemID, ledger.histories[0].ItemID)
	require.Equal(t, author, ledger.histories[0].UserID)
}

func TestRecordNoResponse(t *testing.T) {
	svc, ratingRepo, queue := ratingFixture(t)
	talkID, author, subject := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, svc.RecordNoResponse(context.Background(), talkID, author, subject))

	key := ratingKey{subject, author, talkID, entity.RatingKindReliability}
	require.NotNil(t, ratingRepo.ratings[key])
	require.Equal(t, entity.RatingMinValue, ratingRepo.ratings[key].Value)
	require.Len(t, queue.jobs, 1)
}

func TestRecordNoResponseKeepsExistingRating(t *testing.T) {
	svc, ratingRepo, _ := ratingFixture(t)
	talkID, author, subject := uuid.New(), uuid.New(), uuid.New()

	_, err := svc.SaveRatings(context.Background(), talkID, author, subject, uuid.New(), entity.ItemTypeOffer, []entity.RatingInput{
		{Kind: entity.RatingKindReliability, Value: 4},
	})
	require.NoError(t, err)

	require.NoError(t, svc.RecordNoResponse(context.Background(), talkID, author, subject))

	key := ratingKey{subject, author, talkID, entity.RatingKindReliability}
	require.Equal(t, 4, ratingRepo.ratings[key].Value)
}
