// Package model defines domain entities used by services and repositories.
package model

import (
	"strings"
	"time"
)

// Role is the account privilege level.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Status is the account lifecycle state.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDisabled Status = "DISABLED"
)

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, true
	case StatusDisabled:
		return StatusDisabled, true
	default:
		return "", false
	}
}

// Tokens collects an issued access token and its expiry.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server.
type User struct {
	ID        int64  // PK
	Username  string // unique
	PwdHash   string // encoded adaptive hash (bcrypt or argon2id PHC string)
	Email     string // unique
	Nickname  string
	Avatar    string
	Role      Role
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Info returns the public view of the account. The password hash is never part of it.
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Nickname:  u.Nickname,
		Avatar:    u.Avatar,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

// UserInfo is the profile returned to callers.
type UserInfo struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	Avatar    string    `json:"avatar"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createTime"`
}

// Principal is the identity authenticated for a single request.
// Role is empty when the account could not be loaded.
type Principal struct {
	UserID   int64
	Username string
	Role     Role
}

// IsAdmin reports whether the principal carries the administrative role.
func (p *Principal) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

// ArticleStatus is the publication state of an article.
type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "DRAFT"
	ArticlePublished ArticleStatus = "PUBLISHED"
)

// ParseArticleStatus accepts DRAFT or PUBLISHED in any case.
func ParseArticleStatus(s string) (ArticleStatus, bool) {
	switch st := ArticleStatus(strings.ToUpper(s)); st {
	case ArticleDraft, ArticlePublished:
		return st, true
	}
	return "", false
}

// Article is a blog post owned by its author.
type Article struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Content     string        `json:"content"`
	Summary     string        `json:"summary"`
	CoverImage  string        `json:"coverImage"`
	CategoryID  *int64        `json:"categoryId"`
	AuthorID    int64         `json:"authorId"`
	Status      ArticleStatus `json:"status"`
	ViewCount   int64         `json:"viewCount"`
	LikeCount   int64         `json:"likeCount"`
	Recommended bool          `json:"isRecommend"`
	PublishedAt *time.Time    `json:"publishTime"`
	CreatedAt   time.Time     `json:"createTime"`
	UpdatedAt   time.Time     `json:"updateTime"`
}

// ArticleInput carries the editable fields of an article.
type ArticleInput struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Summary    string `json:"summary"`
	CoverImage string `json:"coverImage"`
	CategoryID *int64 `json:"categoryId"`
}

// ArticleOrder selects the sort of a listing.
type ArticleOrder int

const (
	// OrderNewest sorts by creation time, newest first.
	OrderNewest ArticleOrder = iota
	// OrderPublished sorts by publish time, latest first.
	OrderPublished
)

// ArticleQuery filters and paginates article listings.
type ArticleQuery struct {
	Page       int
	Size       int
	Status     ArticleStatus
	CategoryID *int64
	Keyword    string
	// InContent widens the keyword match from title and summary to the body.
	InContent bool
	Order     ArticleOrder
}

// Offset returns the row offset for the current page.
func (q ArticleQuery) Offset() int { return (q.Page - 1) * q.Size }

// Page is a slice of results with the total match count.
type Page[T any] struct {
	Records []T   `json:"records"`
	Total   int64 `json:"total"`
	Page    int   `json:"current"`
	Size    int   `json:"size"`
}
