package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/model"
)

// ArticleRepo implements ArticleRepository using PostgreSQL.
type ArticleRepo struct{ db *DB }

// NewArticleRepo constructs an article repository.
func NewArticleRepo(db *DB) *ArticleRepo { return &ArticleRepo{db: db} }

const articleColumns = `id, title, content, summary, cover_image, category_id, author_id, status, view_count, like_count, is_recommend, publish_time, created_at, updated_at`

// Create inserts a draft owned by a.AuthorID.
func (r *ArticleRepo) Create(ctx context.Context, a *model.Article) error {
	const q = `
INSERT INTO articles (title, content, summary, cover_image, category_id, author_id, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at`
	if a.Status == "" {
		a.Status = model.ArticleDraft
	}
	err := r.db.Pool.QueryRow(ctx, q,
		a.Title, a.Content, a.Summary, a.CoverImage, a.CategoryID, a.AuthorID, string(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if foreignKeyViolation(err) {
		return fmt.Errorf("author %d: %w", a.AuthorID, errs.ErrNotFound)
	}
	return err
}

// Get selects an article by ID.
func (r *ArticleRepo) Get(ctx context.Context, id int64) (*model.Article, error) {
	const q = `SELECT ` + articleColumns + ` FROM articles WHERE id=$1`
	a, err := scanArticle(r.db.Pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return a, err
}

// List returns a page of articles in the requested order.
func (r *ArticleRepo) List(ctx context.Context, lq model.ArticleQuery) ([]model.Article, int64, error) {
	var (
		where []string
		args  []any
	)
	if lq.Status != "" {
		args = append(args, string(lq.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if lq.CategoryID != nil {
		args = append(args, *lq.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if lq.Keyword != "" {
		args = append(args, "%"+escapeLike(lq.Keyword)+"%")
		if lq.InContent {
			where = append(where, fmt.Sprintf("(title ILIKE $%[1]d OR summary ILIKE $%[1]d OR content ILIKE $%[1]d)", len(args)))
		} else {
			where = append(where, fmt.Sprintf("(title ILIKE $%[1]d OR summary ILIKE $%[1]d)", len(args)))
		}
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM articles`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "created_at DESC, id DESC"
	if lq.Order == model.OrderPublished {
		order = "publish_time DESC NULLS LAST, id DESC"
	}
	q := `SELECT ` + articleColumns + ` FROM articles` + cond +
		fmt.Sprintf(` ORDER BY %s LIMIT $%d OFFSET $%d`, order, len(args)+1, len(args)+2)
	out, err := r.query(ctx, lq.Size, q, append(args, lq.Size, lq.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Hot returns published articles by view count.
func (r *ArticleRepo) Hot(ctx context.Context, limit int) ([]model.Article, error) {
	const q = `SELECT ` + articleColumns + ` FROM articles
WHERE status = $1
ORDER BY view_count DESC, id DESC
LIMIT $2`
	return r.query(ctx, limit, q, string(model.ArticlePublished), limit)
}

// Recommended returns published, recommended articles by publish time.
func (r *ArticleRepo) Recommended(ctx context.Context, limit int) ([]model.Article, error) {
	const q = `SELECT ` + articleColumns + ` FROM articles
WHERE status = $1 AND is_recommend
ORDER BY publish_time DESC NULLS LAST, id DESC
LIMIT $2`
	return r.query(ctx, limit, q, string(model.ArticlePublished), limit)
}

// SetRecommended sets is_recommend.
func (r *ArticleRepo) SetRecommended(ctx context.Context, id int64, on bool) error {
	return r.execOne(ctx, `UPDATE articles SET is_recommend = $2, updated_at = now() WHERE id = $1`, id, on)
}

// Like inserts the (article, user) pair and bumps like_count only when the pair is new.
func (r *ArticleRepo) Like(ctx context.Context, articleID, userID int64) (bool, error) {
	const q = `
WITH ins AS (
    INSERT INTO article_likes (article_id, user_id) VALUES ($1, $2)
    ON CONFLICT DO NOTHING
    RETURNING article_id
)
UPDATE articles SET like_count = like_count + 1
WHERE id IN (SELECT article_id FROM ins)`
	return r.execChanged(ctx, q, articleID, userID)
}

// Unlike deletes the pair and decrements like_count only when a row went away.
func (r *ArticleRepo) Unlike(ctx context.Context, articleID, userID int64) (bool, error) {
	const q = `
WITH del AS (
    DELETE FROM article_likes WHERE article_id = $1 AND user_id = $2
    RETURNING article_id
)
UPDATE articles SET like_count = like_count - 1
WHERE id IN (SELECT article_id FROM del)`
	return r.execChanged(ctx, q, articleID, userID)
}

func (r *ArticleRepo) execChanged(ctx context.Context, q string, args ...any) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if foreignKeyViolation(err) {
		return false, errs.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ArticleRepo) query(ctx context.Context, capacity int, q string, args ...any) ([]model.Article, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Article, 0, capacity)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Update replaces title, content, summary, cover and category.
func (r *ArticleRepo) Update(ctx context.Context, id int64, in model.ArticleInput) error {
	const q = `
UPDATE articles
SET title = $2, content = $3, summary = $4, cover_image = $5, category_id = $6, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, q, id, in.Title, in.Content, in.Summary, in.CoverImage, in.CategoryID)
}

// Delete removes the article row.
func (r *ArticleRepo) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM articles WHERE id = $1`, id)
}

// Publish sets status PUBLISHED and the publish time.
func (r *ArticleRepo) Publish(ctx context.Context, id int64, at time.Time) error {
	const q = `
UPDATE articles
SET status = $2, publish_time = $3, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, q, id, string(model.ArticlePublished), at)
}

// IncrementViews adds one to view_count.
func (r *ArticleRepo) IncrementViews(ctx context.Context, id int64) error {
	return r.execOne(ctx, `UPDATE articles SET view_count = view_count + 1 WHERE id = $1`, id)
}

func (r *ArticleRepo) execOne(ctx context.Context, q string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func scanArticle(row pgx.Row) (*model.Article, error) {
	var (
		a      model.Article
		status string
	)
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Summary, &a.CoverImage, &a.CategoryID,
		&a.AuthorID, &status, &a.ViewCount, &a.LikeCount, &a.Recommended, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = model.ArticleStatus(status)
	return &a, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
