// Package memory provides in-process repository implementations for local
// development and tests. Data lives only as long as the process.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/model"
)

// UserRepo is a map-backed UserRepository.
type UserRepo struct {
	mu     sync.RWMutex
	byID   map[int64]*model.User
	nextID int64
	now    func() time.Time
}

// NewUserRepo returns an empty repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{byID: map[int64]*model.User{}, now: time.Now}
}

// Create inserts u, enforcing unique username and email.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byID {
		if e.Username == u.Username {
			return errs.ErrDuplicateUsername
		}
		if e.Email == u.Email {
			return errs.ErrDuplicateEmail
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = r.now().UTC()
	u.UpdatedAt = u.CreatedAt
	cpy := *u
	r.byID[u.ID] = &cpy
	return nil
}

func (r *UserRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

// GetByID loads a user by ID.
func (r *UserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

// GetByUsername loads a user by username.
func (r *UserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username })
}

// GetByEmail loads a user by email.
func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r *UserRepo) update(id int64, missErr error, fn func(*model.User) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	if !fn(u) {
		return missErr
	}
	u.UpdatedAt = r.now().UTC()
	return nil
}

// UpdateProfile replaces nickname and avatar.
func (r *UserRepo) UpdateProfile(_ context.Context, id int64, nickname, avatar string) error {
	return r.update(id, nil, func(u *model.User) bool {
		u.Nickname, u.Avatar = nickname, avatar
		return true
	})
}

// UpdatePassword swaps the hash if it still equals oldHash.
func (r *UserRepo) UpdatePassword(_ context.Context, id int64, oldHash, newHash string) error {
	return r.update(id, errs.ErrVersionConflict, func(u *model.User) bool {
		if u.PwdHash != oldHash {
			return false
		}
		u.PwdHash = newHash
		return true
	})
}

// SetStatus changes the account status.
func (r *UserRepo) SetStatus(_ context.Context, id int64, status model.Status) error {
	return r.update(id, nil, func(u *model.User) bool {
		u.Status = status
		return true
	})
}

// ArticleRepo is a map-backed ArticleRepository.
type ArticleRepo struct {
	mu     sync.RWMutex
	byID   map[int64]*model.Article
	likes  map[int64]map[int64]struct{} // article id -> user ids
	nextID int64
	now    func() time.Time
}

// NewArticleRepo returns an empty repository.
func NewArticleRepo() *ArticleRepo {
	return &ArticleRepo{
		byID:  map[int64]*model.Article{},
		likes: map[int64]map[int64]struct{}{},
		now:   time.Now,
	}
}

// Create inserts a.
func (r *ArticleRepo) Create(_ context.Context, a *model.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	if a.Status == "" {
		a.Status = model.ArticleDraft
	}
	a.CreatedAt = r.now().UTC()
	a.UpdatedAt = a.CreatedAt
	cpy := *a
	r.byID[a.ID] = &cpy
	return nil
}

// Get returns an article by ID.
func (r *ArticleRepo) Get(_ context.Context, id int64) (*model.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}

// List filters by status, category and a case-insensitive keyword, in the requested order.
func (r *ArticleRepo) List(_ context.Context, q model.ArticleQuery) ([]model.Article, int64, error) {
	kw := strings.ToLower(q.Keyword)
	all := r.filter(func(a *model.Article) bool {
		if q.Status != "" && a.Status != q.Status {
			return false
		}
		if q.CategoryID != nil && (a.CategoryID == nil || *a.CategoryID != *q.CategoryID) {
			return false
		}
		if kw == "" {
			return true
		}
		return strings.Contains(strings.ToLower(a.Title), kw) ||
			strings.Contains(strings.ToLower(a.Summary), kw) ||
			(q.InContent && strings.Contains(strings.ToLower(a.Content), kw))
	})

	if q.Order == model.OrderPublished {
		sortByPublished(all)
	} else {
		sort.Slice(all, func(i, j int) bool {
			if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].CreatedAt.After(all[j].CreatedAt)
			}
			return all[i].ID > all[j].ID
		})
	}
	total := int64(len(all))
	from := min(max(q.Offset(), 0), len(all))
	to := min(from+max(q.Size, 0), len(all))
	return all[from:to], total, nil
}

// Hot returns published articles by view count.
func (r *ArticleRepo) Hot(_ context.Context, limit int) ([]model.Article, error) {
	all := r.filter(func(a *model.Article) bool { return a.Status == model.ArticlePublished })
	sort.Slice(all, func(i, j int) bool {
		if all[i].ViewCount != all[j].ViewCount {
			return all[i].ViewCount > all[j].ViewCount
		}
		return all[i].ID > all[j].ID
	})
	return all[:min(max(limit, 0), len(all))], nil
}

// Recommended returns published, recommended articles by publish time.
func (r *ArticleRepo) Recommended(_ context.Context, limit int) ([]model.Article, error) {
	all := r.filter(func(a *model.Article) bool { return a.Status == model.ArticlePublished && a.Recommended })
	sortByPublished(all)
	return all[:min(max(limit, 0), len(all))], nil
}

// SetRecommended flags the article.
func (r *ArticleRepo) SetRecommended(_ context.Context, id int64, on bool) error {
	now := r.now().UTC()
	return r.mutate(id, func(a *model.Article) {
		a.Recommended = on
		a.UpdatedAt = now
	})
}

// Like adds userID to the article's likers.
func (r *ArticleRepo) Like(_ context.Context, articleID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[articleID]
	if !ok {
		return false, errs.ErrNotFound
	}
	users := r.likes[articleID]
	if users == nil {
		users = map[int64]struct{}{}
		r.likes[articleID] = users
	}
	if _, dup := users[userID]; dup {
		return false, nil
	}
	users[userID] = struct{}{}
	a.LikeCount++
	return true, nil
}

// Unlike removes userID from the article's likers.
func (r *ArticleRepo) Unlike(_ context.Context, articleID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[articleID]
	if !ok {
		return false, errs.ErrNotFound
	}
	if _, liked := r.likes[articleID][userID]; !liked {
		return false, nil
	}
	delete(r.likes[articleID], userID)
	a.LikeCount--
	return true, nil
}

// filter copies the matching articles under the read lock.
func (r *ArticleRepo) filter(keep func(*model.Article) bool) []model.Article {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Article
	for _, a := range r.byID {
		if keep(a) {
			out = append(out, *a)
		}
	}
	return out
}

// sortByPublished orders by publish time, latest first, unpublished last.
func sortByPublished(all []model.Article) {
	sort.Slice(all, func(i, j int) bool {
		pi, pj := all[i].PublishedAt, all[j].PublishedAt
		switch {
		case pi == nil && pj == nil:
			return all[i].ID > all[j].ID
		case pi == nil || pj == nil:
			return pj == nil
		case !pi.Equal(*pj):
			return pi.After(*pj)
		}
		return all[i].ID > all[j].ID
	})
}

func (r *ArticleRepo) mutate(id int64, fn func(*model.Article)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	fn(a)
	return nil
}

// Update replaces the editable fields.
func (r *ArticleRepo) Update(_ context.Context, id int64, in model.ArticleInput) error {
	now := r.now().UTC()
	return r.mutate(id, func(a *model.Article) {
		a.Title, a.Content, a.Summary, a.CoverImage, a.CategoryID = in.Title, in.Content, in.Summary, in.CoverImage, in.CategoryID
		a.UpdatedAt = now
	})
}

// Delete removes an article.
func (r *ArticleRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.likes, id)
	return nil
}

// Publish marks the article published at the given time.
func (r *ArticleRepo) Publish(_ context.Context, id int64, at time.Time) error {
	return r.mutate(id, func(a *model.Article) {
		a.Status = model.ArticlePublished
		a.PublishedAt = &at
		a.UpdatedAt = at
	})
}

// IncrementViews bumps the view counter.
func (r *ArticleRepo) IncrementViews(_ context.Context, id int64) error {
	return r.mutate(id, func(a *model.Article) { a.ViewCount++ })
}
