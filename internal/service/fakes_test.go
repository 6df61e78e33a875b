package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	pkgcrypto "github.com/and161185/inkwell/internal/crypto"
	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/limiter"
	"github.com/and161185/inkwell/internal/model"
	"github.com/and161185/inkwell/internal/repository"
	"github.com/and161185/inkwell/internal/token"
)

type fakeUsers struct {
	byID   map[int64]*model.User
	nextID int64

	createErr error
	getErr    error
	// casMiss forces UpdatePassword to lose the race.
	casMiss bool
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[int64]*model.User{}} }

func (f *fakeUsers) find(match func(*model.User) bool) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, e := range f.byID {
		if e.Username == u.Username {
			return errs.ErrDuplicateUsername
		}
		if e.Email == u.Email {
			return errs.ErrDuplicateEmail
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	cpy := *u
	f.byID[u.ID] = &cpy
	return nil
}
func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id })
}
func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == username })
}
func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email })
}
func (f *fakeUsers) UpdateProfile(_ context.Context, id int64, nickname, avatar string) error {
	u, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.Nickname, u.Avatar = nickname, avatar
	return nil
}
func (f *fakeUsers) UpdatePassword(_ context.Context, id int64, oldHash, newHash string) error {
	u, ok := f.byID[id]
	if !ok || f.casMiss || u.PwdHash != oldHash {
		return errs.ErrVersionConflict
	}
	u.PwdHash = newHash
	return nil
}
func (f *fakeUsers) SetStatus(_ context.Context, id int64, status model.Status) error {
	u, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.Status = status
	return nil
}

type fakeArticles struct {
	byID   map[int64]*model.Article
	nextID int64

	viewsErr  error
	listQuery model.ArticleQuery
	published []time.Time
	feedLimit int
	likes     map[[2]int64]bool
}

var _ repository.ArticleRepository = (*fakeArticles)(nil)

func newFakeArticles() *fakeArticles {
	return &fakeArticles{byID: map[int64]*model.Article{}, likes: map[[2]int64]bool{}}
}

func (f *fakeArticles) Create(_ context.Context, a *model.Article) error {
	f.nextID++
	a.ID = f.nextID
	cpy := *a
	f.byID[a.ID] = &cpy
	return nil
}
func (f *fakeArticles) Get(_ context.Context, id int64) (*model.Article, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}
func (f *fakeArticles) List(_ context.Context, q model.ArticleQuery) ([]model.Article, int64, error) {
	f.listQuery = q
	out := []model.Article{}
	for _, a := range f.byID {
		if q.Status == "" || a.Status == q.Status {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}
func (f *fakeArticles) Update(_ context.Context, id int64, in model.ArticleInput) error {
	a, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	a.Title, a.Content, a.Summary, a.CoverImage, a.CategoryID = in.Title, in.Content, in.Summary, in.CoverImage, in.CategoryID
	return nil
}
func (f *fakeArticles) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}
func (f *fakeArticles) Publish(_ context.Context, id int64, at time.Time) error {
	a, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	a.Status = model.ArticlePublished
	a.PublishedAt = &at
	f.published = append(f.published, at)
	return nil
}
func (f *fakeArticles) IncrementViews(_ context.Context, id int64) error {
	if f.viewsErr != nil {
		return f.viewsErr
	}
	a, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	a.ViewCount++
	return nil
}
func (f *fakeArticles) Hot(_ context.Context, limit int) ([]model.Article, error) {
	f.feedLimit = limit
	return []model.Article{}, nil
}
func (f *fakeArticles) Recommended(_ context.Context, limit int) ([]model.Article, error) {
	f.feedLimit = limit
	out := []model.Article{}
	for _, a := range f.byID {
		if a.Recommended {
			out = append(out, *a)
		}
	}
	return out, nil
}
func (f *fakeArticles) SetRecommended(_ context.Context, id int64, on bool) error {
	a, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	a.Recommended = on
	return nil
}
func (f *fakeArticles) Like(_ context.Context, articleID, userID int64) (bool, error) {
	a, ok := f.byID[articleID]
	if !ok {
		return false, errs.ErrNotFound
	}
	key := [2]int64{articleID, userID}
	if f.likes[key] {
		return false, nil
	}
	f.likes[key] = true
	a.LikeCount++
	return true, nil
}
func (f *fakeArticles) Unlike(_ context.Context, articleID, userID int64) (bool, error) {
	a, ok := f.byID[articleID]
	if !ok {
		return false, errs.ErrNotFound
	}
	key := [2]int64{articleID, userID}
	if !f.likes[key] {
		return false, nil
	}
	delete(f.likes, key)
	a.LikeCount--
	return true, nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func testKey() []byte {
	k := make([]byte, token.MinKeyLen)
	for i := range k {
		k[i] = byte(i*7 + 3)
	}
	return k
}

func newTestTokens(t *testing.T) *token.Service {
	t.Helper()
	ts, err := token.New(testKey(), time.Hour, testclock.NewClock(t0))
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	return ts
}

func newTestCreds(t *testing.T) *pkgcrypto.Credentials {
	t.Helper()
	h, err := pkgcrypto.NewBcrypt(4)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	return pkgcrypto.NewCredentials(h, 2)
}

var errBoom = errors.New("boom")

// countingHasher wraps a real hasher and records which hashes Verify was asked about.
type countingHasher struct {
	PasswordHasher
	verified []string
}

func (h *countingHasher) Verify(ctx context.Context, plaintext, encoded string) (bool, error) {
	h.verified = append(h.verified, encoded)
	return h.PasswordHasher.Verify(ctx, plaintext, encoded)
}
