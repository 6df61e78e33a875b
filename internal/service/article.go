package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/and161185/inkwell/internal/auth"
	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/model"
	"github.com/and161185/inkwell/internal/repository"
)

// Listing bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxFeedSize caps the hot and recommended feeds.
	MaxFeedSize = 50
)

// ArticleService handles article CRUD. Mutations are checked by the Guard before
// touching storage.
type ArticleService struct {
	articles repository.ArticleRepository
	guard    *auth.Guard
	clock    clock.Clock
	log      *zap.Logger
}

// NewArticleService constructs ArticleService. A nil guard allows owners only.
func NewArticleService(articles repository.ArticleRepository, guard *auth.Guard, clk clock.Clock, log *zap.Logger) *ArticleService {
	if guard == nil {
		guard = auth.NewGuard()
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ArticleService{articles: articles, guard: guard, clock: clk, log: log}
}

// Create stores a new draft authored by p.
func (s *ArticleService) Create(ctx context.Context, p *model.Principal, in model.ArticleInput) (*model.Article, error) {
	if err := requireAccount(p); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	a := &model.Article{
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		Summary:    in.Summary,
		CoverImage: in.CoverImage,
		CategoryID: in.CategoryID,
		AuthorID:   p.UserID,
		Status:     model.ArticleDraft,
	}
	if err := s.articles.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns an article and counts the view.
func (s *ArticleService) Get(ctx context.Context, id int64) (*model.Article, error) {
	a, err := s.articles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.articles.IncrementViews(ctx, id); err != nil {
		s.log.Warn("increment views", zap.Int64("article_id", id), zap.Error(err))
	} else {
		a.ViewCount++
	}
	return a, nil
}

// List returns one page of articles. Page and size are clamped to sane bounds.
func (s *ArticleService) List(ctx context.Context, q model.ArticleQuery) (model.Page[model.Article], error) {
	if q.Page < 1 {
		q.Page = 1
	}
	q.Size = clamp(q.Size, DefaultPageSize, MaxPageSize)
	q.Keyword = strings.TrimSpace(q.Keyword)
	items, total, err := s.articles.List(ctx, q)
	if err != nil {
		return model.Page[model.Article]{}, err
	}
	return model.Page[model.Article]{Records: items, Total: total, Page: q.Page, Size: q.Size}, nil
}

// Search pages through published articles whose title, summary or content
// contains keyword, latest publications first.
func (s *ArticleService) Search(ctx context.Context, keyword string, page, size int) (model.Page[model.Article], error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return model.Page[model.Article]{}, fmt.Errorf("%w: keyword is required", errs.ErrValidation)
	}
	return s.List(ctx, model.ArticleQuery{
		Page:      page,
		Size:      size,
		Status:    model.ArticlePublished,
		Keyword:   keyword,
		InContent: true,
		Order:     model.OrderPublished,
	})
}

// Hot returns the most viewed published articles.
func (s *ArticleService) Hot(ctx context.Context, limit int) ([]model.Article, error) {
	return s.articles.Hot(ctx, clamp(limit, DefaultPageSize, MaxFeedSize))
}

// Recommended returns the latest recommended published articles.
func (s *ArticleService) Recommended(ctx context.Context, limit int) ([]model.Article, error) {
	return s.articles.Recommended(ctx, clamp(limit, DefaultPageSize, MaxFeedSize))
}

// SetRecommended flags an article for the recommended feed. Admins only.
func (s *ArticleService) SetRecommended(ctx context.Context, p *model.Principal, id int64, on bool) error {
	if p == nil {
		return errs.ErrUnauthenticated
	}
	if !p.IsAdmin() {
		return errs.ErrForbidden
	}
	if err := s.articles.SetRecommended(ctx, id, on); err != nil {
		return err
	}
	s.log.Info("article recommendation changed",
		zap.Int64("article_id", id), zap.Bool("recommended", on), zap.Int64("admin_id", p.UserID))
	return nil
}

// Like records p's like. Liking twice counts once.
func (s *ArticleService) Like(ctx context.Context, p *model.Principal, id int64) error {
	if err := requireAccount(p); err != nil {
		return err
	}
	_, err := s.articles.Like(ctx, id, p.UserID)
	return err
}

// Unlike withdraws p's like. Withdrawing a like that does not exist is a no-op.
func (s *ArticleService) Unlike(ctx context.Context, p *model.Principal, id int64) error {
	if err := requireAccount(p); err != nil {
		return err
	}
	_, err := s.articles.Unlike(ctx, id, p.UserID)
	return err
}

// Update replaces the editable fields of an article owned by p.
func (s *ArticleService) Update(ctx context.Context, p *model.Principal, id int64, in model.ArticleInput) error {
	if _, err := s.authorize(ctx, p, auth.OpUpdateArticle, id); err != nil {
		return err
	}
	if err := validateInput(in); err != nil {
		return err
	}
	in.Title = strings.TrimSpace(in.Title)
	return s.articles.Update(ctx, id, in)
}

// Delete removes an article.
func (s *ArticleService) Delete(ctx context.Context, p *model.Principal, id int64) error {
	if _, err := s.authorize(ctx, p, auth.OpDeleteArticle, id); err != nil {
		return err
	}
	return s.articles.Delete(ctx, id)
}

// Publish marks an article published. Publishing twice keeps the first publish time.
func (s *ArticleService) Publish(ctx context.Context, p *model.Principal, id int64) error {
	a, err := s.authorize(ctx, p, auth.OpPublishArticle, id)
	if err != nil {
		return err
	}
	if a.Status == model.ArticlePublished {
		return nil
	}
	return s.articles.Publish(ctx, id, s.clock.Now().UTC())
}

// authorize resolves 401, then 404, then 403, in that order.
func (s *ArticleService) authorize(ctx context.Context, p *model.Principal, op auth.Operation, id int64) (*model.Article, error) {
	if p == nil {
		return nil, errs.ErrUnauthenticated
	}
	a, err := s.articles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := s.guard.CheckOwnership(p, op, a.AuthorID)
	if !d.Allowed {
		s.log.Info("ownership denied",
			zap.String("op", string(op)), zap.Int64("article_id", id), zap.Int64("user_id", p.UserID))
		return nil, d.Err()
	}
	if d.Reason == auth.ReasonAdminOverride {
		s.log.Warn("admin override",
			zap.String("op", string(op)), zap.Int64("article_id", id),
			zap.Int64("admin_id", p.UserID), zap.Int64("owner_id", a.AuthorID))
	}
	return a, nil
}

// requireAccount admits principals backed by an existing account.
// A token whose account was removed yields a principal without a role.
func requireAccount(p *model.Principal) error {
	if p == nil {
		return errs.ErrUnauthenticated
	}
	if p.Role == "" {
		return fmt.Errorf("account %d: %w", p.UserID, errs.ErrNotFound)
	}
	return nil
}

func clamp(n, def, maxN int) int {
	if n < 1 {
		return def
	}
	return min(n, maxN)
}

func validateInput(in model.ArticleInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", errs.ErrValidation)
	}
	if in.Content == "" {
		return fmt.Errorf("%w: content is required", errs.ErrValidation)
	}
	return nil
}
