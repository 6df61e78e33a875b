package httpserver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/model"
)

func (h *handlers) createArticle(c *gin.Context) {
	p, authed := h.requirePrincipal(c)
	if !authed {
		return
	}
	var in model.ArticleInput
	if !h.bind(c, &in) {
		return
	}
	a, err := h.articles.Create(c.Request.Context(), p, in)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, a)
}

func (h *handlers) getArticle(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	a, err := h.articles.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, a)
}

func (h *handlers) listArticles(c *gin.Context) {
	q := model.ArticleQuery{Keyword: c.Query("keyword")}
	var err error
	if q.Page, err = intQuery(c, "page", 1); err != nil {
		fail(c, h.log, err)
		return
	}
	if q.Size, err = intQuery(c, "size", 0); err != nil {
		fail(c, h.log, err)
		return
	}
	if v := c.Query("categoryId"); v != "" {
		cat, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fail(c, h.log, fmt.Errorf("%w: categoryId must be a number", errs.ErrValidation))
			return
		}
		q.CategoryID = &cat
	}
	if s := c.Query("status"); s != "" {
		st, valid := model.ParseArticleStatus(s)
		if !valid {
			fail(c, h.log, fmt.Errorf("%w: unknown status %q", errs.ErrValidation, s))
			return
		}
		q.Status = st
	}
	page, err := h.articles.List(c.Request.Context(), q)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, page)
}

func (h *handlers) searchArticles(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	size, err := intQuery(c, "size", 0)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	res, err := h.articles.Search(c.Request.Context(), c.Query("keyword"), page, size)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, res)
}

func (h *handlers) hotArticles(c *gin.Context) {
	h.feed(c, h.articles.Hot)
}

func (h *handlers) recommendedArticles(c *gin.Context) {
	h.feed(c, h.articles.Recommended)
}

func (h *handlers) feed(c *gin.Context, load func(context.Context, int) ([]model.Article, error)) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	list, err := load(c.Request.Context(), limit)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, list)
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", errs.ErrValidation, name)
	}
	return n, nil
}

func (h *handlers) updateArticle(c *gin.Context) {
	p, id, ready := h.mutation(c)
	if !ready {
		return
	}
	var in model.ArticleInput
	if !h.bind(c, &in) {
		return
	}
	if err := h.articles.Update(c.Request.Context(), p, id, in); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, nil)
}

func (h *handlers) deleteArticle(c *gin.Context) {
	p, id, ready := h.mutation(c)
	if !ready {
		return
	}
	if err := h.articles.Delete(c.Request.Context(), p, id); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, nil)
}

func (h *handlers) publishArticle(c *gin.Context) {
	p, id, ready := h.mutation(c)
	if !ready {
		return
	}
	if err := h.articles.Publish(c.Request.Context(), p, id); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, nil)
}

func (h *handlers) likeArticle(c *gin.Context) {
	p, id, ready := h.mutation(c)
	if !ready {
		return
	}
	if err := h.articles.Like(c.Request.Context(), p, id); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, nil)
}

func (h *handlers) unlikeArticle(c *gin.Context) {
	p, id, ready := h.mutation(c)
	if !ready {
		return
	}
	if err := h.articles.Unlike(c.Request.Context(), p, id); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, nil)
}

type recommendRequest struct {
	Recommend *bool `json:"recommend"`
}

func (h *handlers) setRecommended(c *gin.Context) {
	p, id, ready := h.mutation(c)
	if !ready {
		return
	}
	var req recommendRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Recommend == nil {
		fail(c, h.log, fmt.Errorf("%w: recommend is required", errs.ErrValidation))
		return
	}
	if err := h.articles.SetRecommended(c.Request.Context(), p, id, *req.Recommend); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, nil)
}

// mutation resolves the principal before the id so anonymous callers get 401
// regardless of the path.
func (h *handlers) mutation(c *gin.Context) (*model.Principal, int64, bool) {
	p, authed := h.requirePrincipal(c)
	if !authed {
		return nil, 0, false
	}
	id, found := h.idParam(c)
	if !found {
		return nil, 0, false
	}
	return p, id, true
}
