package httpserver

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/and161185/inkwell/internal/model"
	"github.com/and161185/inkwell/internal/service"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	u, err := h.accounts.Register(c.Request.Context(), service.RegisterInput(req))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, u.Info())
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// login answers with the bare token string as data.
func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	tok, _, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.Header("X-Token-Expires-At", tok.ExpiresAt.UTC().Format(time.RFC3339))
	ok(c, tok.AccessToken)
}

func (h *handlers) info(c *gin.Context) {
	p, authed := h.requirePrincipal(c)
	if !authed {
		return
	}
	info, err := h.accounts.Profile(c.Request.Context(), p.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, info)
}

type profileRequest struct {
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

func (h *handlers) updateInfo(c *gin.Context) {
	p, authed := h.requirePrincipal(c)
	if !authed {
		return
	}
	var req profileRequest
	if !h.bind(c, &req) {
		return
	}
	info, err := h.accounts.UpdateProfile(c.Request.Context(), p.UserID, req.Nickname, req.Avatar)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, info)
}

type passwordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *handlers) changePassword(c *gin.Context) {
	p, authed := h.requirePrincipal(c)
	if !authed {
		return
	}
	var req passwordRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), p.UserID, req.OldPassword, req.NewPassword); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, nil)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *handlers) setUserStatus(c *gin.Context) {
	p, authed := h.requirePrincipal(c)
	if !authed {
		return
	}
	id, found := h.idParam(c)
	if !found {
		return
	}
	var req statusRequest
	if !h.bind(c, &req) {
		return
	}
	st, valid := model.ParseStatus(req.Status)
	if !valid {
		st = model.Status(req.Status)
	}
	if err := h.accounts.SetStatus(c.Request.Context(), p, id, st); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, nil)
}
