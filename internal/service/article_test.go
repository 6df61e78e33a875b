package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/and161185/inkwell/internal/auth"
	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/model"
)

var (
	owner    = &model.Principal{UserID: 5, Username: "alice", Role: model.RoleUser}
	stranger = &model.Principal{UserID: 7, Username: "bob", Role: model.RoleUser}
	admin    = &model.Principal{UserID: 1, Username: "root", Role: model.RoleAdmin}
)

func newArticleService(ops ...auth.Operation) (*ArticleService, *fakeArticles, *testclock.Clock) {
	repo := newFakeArticles()
	clk := testclock.NewClock(t0)
	return NewArticleService(repo, auth.NewGuard(ops...), clk, nil), repo, clk
}

func seed(t *testing.T, s *ArticleService) *model.Article {
	t.Helper()
	a, err := s.Create(context.Background(), owner, model.ArticleInput{Title: "Hello", Content: "world"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return a
}

func TestArticle_Create(t *testing.T) {
	t.Parallel()
	s, _, _ := newArticleService()
	ctx := context.Background()

	if _, err := s.Create(ctx, nil, model.ArticleInput{Title: "t", Content: "c"}); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
	if _, err := s.Create(ctx, owner, model.ArticleInput{Title: "  ", Content: "c"}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	a := seed(t, s)
	if a.AuthorID != owner.UserID || a.Status != model.ArticleDraft || a.ID == 0 {
		t.Fatalf("bad article: %+v", a)
	}
}

func TestArticle_Get_CountsViews(t *testing.T) {
	t.Parallel()
	s, repo, _ := newArticleService()
	a := seed(t, s)

	got, err := s.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ViewCount != 1 || repo.byID[a.ID].ViewCount != 1 {
		t.Fatalf("view not counted: %d", got.ViewCount)
	}

	repo.viewsErr = errBoom
	got, err = s.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("view counter failure must not fail the read: %v", err)
	}
	if got.ViewCount != 1 {
		t.Fatalf("view count should be unchanged, got %d", got.ViewCount)
	}

	if _, err := s.Get(context.Background(), 404); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestArticle_List_ClampsPaging(t *testing.T) {
	t.Parallel()
	s, repo, _ := newArticleService()
	seed(t, s)

	page, err := s.List(context.Background(), model.ArticleQuery{Page: 0, Size: 0})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Page != 1 || page.Size != DefaultPageSize || page.Total != 1 {
		t.Fatalf("bad page: %+v", page)
	}

	if _, err := s.List(context.Background(), model.ArticleQuery{Page: 3, Size: 1000, Keyword: "  go "}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.listQuery.Size != MaxPageSize || repo.listQuery.Page != 3 || repo.listQuery.Keyword != "go" {
		t.Fatalf("query not normalized: %+v", repo.listQuery)
	}
}

func TestArticle_Mutations_OrderOfChecks(t *testing.T) {
	t.Parallel()
	s, _, _ := newArticleService()
	ctx := context.Background()
	a := seed(t, s)
	in := model.ArticleInput{Title: "new", Content: "body"}

	if err := s.Update(ctx, nil, 404, in); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("401 must come before 404, got %v", err)
	}
	if err := s.Update(ctx, stranger, 404, in); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("404 must come before 403, got %v", err)
	}
	if err := s.Update(ctx, stranger, a.ID, in); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if err := s.Delete(ctx, stranger, a.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if err := s.Publish(ctx, stranger, a.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
}

func TestArticle_OwnerMutations(t *testing.T) {
	t.Parallel()
	s, repo, clk := newArticleService()
	ctx := context.Background()
	a := seed(t, s)

	if err := s.Update(ctx, owner, a.ID, model.ArticleInput{Title: " new ", Content: "body"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if repo.byID[a.ID].Title != "new" {
		t.Fatalf("title not updated: %q", repo.byID[a.ID].Title)
	}

	if err := s.Publish(ctx, owner, a.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	clk.Advance(time.Hour)
	if err := s.Publish(ctx, owner, a.ID); err != nil {
		t.Fatalf("Publish again: %v", err)
	}
	if len(repo.published) != 1 || !repo.published[0].Equal(t0) {
		t.Fatalf("publish time must be set once at t0, got %v", repo.published)
	}

	if err := s.Delete(ctx, owner, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := repo.byID[a.ID]; ok {
		t.Fatalf("article not deleted")
	}
}

func TestArticle_AdminOverride(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _, _ := newArticleService(auth.OpDeleteArticle, auth.OpPublishArticle)
	a := seed(t, s)
	if err := s.Update(ctx, admin, a.ID, model.ArticleInput{Title: "x", Content: "y"}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("update is not overridable by default, got %v", err)
	}
	if err := s.Publish(ctx, admin, a.ID); err != nil {
		t.Fatalf("admin publish: %v", err)
	}
	if err := s.Delete(ctx, admin, a.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}

	strict, _, _ := newArticleService()
	b := seed(t, strict)
	if err := strict.Delete(ctx, admin, b.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("no override configured, got %v", err)
	}
}

func TestArticle_Create_VanishedAccount(t *testing.T) {
	t.Parallel()
	s, repo, _ := newArticleService()

	ghost := &model.Principal{UserID: 42, Username: "ghost"}
	if _, err := s.Create(context.Background(), ghost, model.ArticleInput{Title: "t", Content: "c"}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if len(repo.byID) != 0 {
		t.Fatalf("nothing may be stored for a vanished account")
	}
}

func TestArticle_Search(t *testing.T) {
	t.Parallel()
	s, repo, _ := newArticleService()
	ctx := context.Background()

	if _, err := s.Search(ctx, "   ", 1, 10); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("blank keyword: want ErrValidation, got %v", err)
	}
	if _, err := s.Search(ctx, " pgx ", 0, 500); err != nil {
		t.Fatalf("Search: %v", err)
	}
	q := repo.listQuery
	if q.Keyword != "pgx" || !q.InContent || q.Status != model.ArticlePublished || q.Order != model.OrderPublished {
		t.Fatalf("unexpected query: %+v", q)
	}
	if q.Page != 1 || q.Size != MaxPageSize {
		t.Fatalf("paging not clamped: %+v", q)
	}
}

func TestArticle_Feeds(t *testing.T) {
	t.Parallel()
	s, repo, _ := newArticleService()
	ctx := context.Background()

	for _, tc := range []struct{ in, want int }{{0, DefaultPageSize}, {-3, DefaultPageSize}, {5, 5}, {1000, MaxFeedSize}} {
		if _, err := s.Hot(ctx, tc.in); err != nil {
			t.Fatalf("Hot: %v", err)
		}
		if repo.feedLimit != tc.want {
			t.Fatalf("Hot(%d) limit = %d, want %d", tc.in, repo.feedLimit, tc.want)
		}
	}

	a := seed(t, s)
	if err := s.SetRecommended(ctx, nil, a.ID, true); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("anonymous: got %v", err)
	}
	if err := s.SetRecommended(ctx, owner, a.ID, true); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("even the author may not recommend, got %v", err)
	}
	if err := s.SetRecommended(ctx, admin, 999, true); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing article: got %v", err)
	}
	if err := s.SetRecommended(ctx, admin, a.ID, true); err != nil {
		t.Fatalf("SetRecommended: %v", err)
	}
	rec, err := s.Recommended(ctx, 0)
	if err != nil || len(rec) != 1 || rec[0].ID != a.ID {
		t.Fatalf("Recommended: %v %v", rec, err)
	}
}

func TestArticle_LikeUnlike(t *testing.T) {
	t.Parallel()
	s, repo, _ := newArticleService()
	ctx := context.Background()
	a := seed(t, s)

	if err := s.Like(ctx, nil, a.ID); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("anonymous like: got %v", err)
	}
	if err := s.Like(ctx, &model.Principal{UserID: 42}, a.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("vanished account like: got %v", err)
	}
	if err := s.Like(ctx, stranger, 999); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing article: got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.Like(ctx, stranger, a.ID); err != nil {
			t.Fatalf("Like: %v", err)
		}
	}
	if err := s.Like(ctx, owner, a.ID); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if got := repo.byID[a.ID].LikeCount; got != 2 {
		t.Fatalf("like count = %d, want 2", got)
	}

	for i := 0; i < 2; i++ {
		if err := s.Unlike(ctx, stranger, a.ID); err != nil {
			t.Fatalf("Unlike: %v", err)
		}
	}
	if got := repo.byID[a.ID].LikeCount; got != 1 {
		t.Fatalf("like count = %d, want 1", got)
	}
}
