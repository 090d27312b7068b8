package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/bloomstem/internal/catalog"
	"github.com/example/bloomstem/internal/models"
	"github.com/example/bloomstem/internal/store"
)

const (
	reviewKeyPrefix  = "review:"
	maxReviewTextLen = 2000
)

// ReviewService stores append-only product reviews.
type ReviewService struct {
	store   store.Store
	catalog catalog.Catalog
	log     *zap.Logger
	now     func() time.Time
}

// NewReviewService constructs ReviewService.
func NewReviewService(s store.Store, c catalog.Catalog, log *zap.Logger) *ReviewService {
	return &ReviewService{store: s, catalog: c, log: log.Named("reviews"), now: time.Now}
}

// Add stores a review for a catalog product.
func (s *ReviewService) Add(ctx context.Context, productID string, rating int, text, author string) (models.Review, error) {
	if _, ok := s.catalog.Lookup(productID); !ok {
		return models.Review{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if rating < 1 || rating > 5 {
		return models.Review{}, Invalid("rating must be between 1 and 5")
	}
	text = strings.TrimSpace(text)
	if len([]rune(text)) > maxReviewTextLen {
		return models.Review{}, Invalid("review text must be at most %d characters", maxReviewTextLen)
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = "Аноним"
	}

	review := models.Review{
		ID:        uuid.NewString(),
		ProductID: productID,
		Rating:    rating,
		Text:      text,
		Author:    author,
		CreatedAt: s.now().UTC(),
	}

	key := fmt.Sprintf("%s%s:%020d-%s", reviewKeyPrefix, productID, review.CreatedAt.UnixNano(), review.ID)
	created, err := store.CreateJSON(ctx, s.store, key, review)
	if err != nil {
		return models.Review{}, unavailable("persist review", err)
	}
	if !created {
		return models.Review{}, fmt.Errorf("review key %s already exists", key)
	}

	s.log.Info("review added", zap.String("product_id", productID), zap.Int("rating", rating))
	return review, nil
}

// List returns a product's reviews, newest first.
func (s *ReviewService) List(ctx context.Context, productID string) ([]models.Review, error) {
	if _, ok := s.catalog.Lookup(productID); !ok {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}

	records, err := s.store.ScanPrefix(ctx, reviewKeyPrefix+productID+":")
	if err != nil {
		return nil, unavailable("scan reviews", err)
	}

	out := make([]models.Review, 0, len(records))
	for _, rec := range records {
		var r models.Review
		if err := json.Unmarshal(rec.Value, &r); err != nil {
			s.log.Warn("skipping malformed review", zap.String("key", rec.Key), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// AverageRating is the mean rating rounded to one decimal, 0 without reviews.
func AverageRating(reviews []models.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	avg := float64(sum) / float64(len(reviews))
	return float64(int(avg*10+0.5)) / 10
}
