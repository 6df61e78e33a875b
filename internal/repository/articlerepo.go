package repository

import (
	"context"
	"time"

	"github.com/and161185/inkwell/internal/model"
)

// ArticleRepository provides access to articles.
type ArticleRepository interface {
	// Create inserts a draft and fills in ID and timestamps.
	Create(ctx context.Context, a *model.Article) error
	// Get returns a single article by ID.
	Get(ctx context.Context, id int64) (*model.Article, error)
	// List returns one page of articles and the total match count.
	List(ctx context.Context, q model.ArticleQuery) ([]model.Article, int64, error)
	// Update replaces the editable fields.
	Update(ctx context.Context, id int64, in model.ArticleInput) error
	// Delete removes an article.
	Delete(ctx context.Context, id int64) error
	// Publish marks an article published at the given instant.
	Publish(ctx context.Context, id int64, at time.Time) error
	// IncrementViews bumps the view counter.
	IncrementViews(ctx context.Context, id int64) error
	// Hot returns up to limit published articles with the most views.
	Hot(ctx context.Context, limit int) ([]model.Article, error)
	// Recommended returns up to limit published, recommended articles, latest first.
	Recommended(ctx context.Context, limit int) ([]model.Article, error)
	// SetRecommended flags or unflags an article as recommended.
	SetRecommended(ctx context.Context, id int64, on bool) error
	// Like records that userID likes the article. It reports false when the like already existed.
	Like(ctx context.Context, articleID, userID int64) (bool, error)
	// Unlike removes a like. It reports false when there was none.
	Unlike(ctx context.Context, articleID, userID int64) (bool, error)
}
