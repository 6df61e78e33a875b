package httpserver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/inkwell/internal/auth"
	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/model"
	"github.com/and161185/inkwell/internal/service"
)

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Accounts      *service.AccountService
	Articles      *service.ArticleService
	Authenticator *auth.Authenticator
	Log           *zap.Logger
	// Ready backs /healthz; nil means always ready.
	Ready func(context.Context) error
}

// NewRouter constructs the gin engine with all routes wired.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	h := &handlers{accounts: d.Accounts, articles: d.Articles, log: d.Log}

	r := gin.New()
	r.Use(RequestID(), Logging(d.Log), Recovery(d.Log), Authenticate(d.Authenticator))

	r.GET("/healthz", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(c.Request.Context()); err != nil {
				d.Log.Warn("not ready", zap.Error(err))
				respond(c, CodeError, "unavailable", nil)
				return
			}
		}
		ok(c, gin.H{"status": "ok"})
	})

	user := r.Group("/user")
	{
		user.POST("/register", h.register)
		user.POST("/login", h.login)
		user.GET("/info", h.info)
		user.PUT("/info", h.updateInfo)
		user.PUT("/password", h.changePassword)
	}

	article := r.Group("/article")
	{
		article.POST("", h.createArticle)
		article.GET("/list", h.listArticles)
		article.GET("/search", h.searchArticles)
		article.GET("/hot", h.hotArticles)
		article.GET("/recommend", h.recommendedArticles)
		article.GET("/:id", h.getArticle)
		article.PUT("/:id", h.updateArticle)
		article.DELETE("/:id", h.deleteArticle)
		article.POST("/:id/publish", h.publishArticle)
		article.POST("/:id/like", h.likeArticle)
		article.DELETE("/:id/like", h.unlikeArticle)
	}

	admin := r.Group("/admin")
	{
		admin.PUT("/users/:id/status", h.setUserStatus)
		admin.PUT("/articles/:id/recommend", h.setRecommended)
	}

	r.NoRoute(func(c *gin.Context) { respond(c, CodeNotFound, "not found", nil) })
	return r
}

type handlers struct {
	accounts *service.AccountService
	articles *service.ArticleService
	log      *zap.Logger
}

func principal(c *gin.Context) *model.Principal {
	p, _ := auth.PrincipalFromCtx(c.Request.Context())
	return p
}

// requirePrincipal answers 401 when the request is anonymous.
func (h *handlers) requirePrincipal(c *gin.Context) (*model.Principal, bool) {
	p := principal(c)
	if p == nil {
		fail(c, h.log, errs.ErrUnauthenticated)
		return nil, false
	}
	return p, true
}

// bind decodes a JSON body; a malformed body is a validation error.
func (h *handlers) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, h.log, fmt.Errorf("%w: invalid request body", errs.ErrValidation))
		return false
	}
	return true
}

// idParam parses :id. Non-numeric ids cannot exist, so they answer 404.
func (h *handlers) idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, h.log, errs.ErrNotFound)
		return 0, false
	}
	return id, true
}
