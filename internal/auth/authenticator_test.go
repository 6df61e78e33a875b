package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/model"
	"github.com/and161185/inkwell/internal/token"
)

type fakeAccounts struct {
	users map[int64]*model.User
	err   error
	calls int
}

func (f *fakeAccounts) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func newTokens(t *testing.T) (*token.Service, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(time.Now())
	s, err := token.New([]byte(strings.Repeat("s", token.MinKeyLen)), time.Hour, clk)
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	return s, clk
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer   abc  ", "abc", true},
		{"Basic foo", "", false},
		{"Bearer   ", "", false},
		{"Bearer", "", false},
		{"", "", false},
		{"abc.def.ghi", "", false},
	}
	for _, c := range cases {
		got, ok := BearerToken(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("BearerToken(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestAuthenticate_States(t *testing.T) {
	t.Parallel()

	tokens, clk := newTokens(t)
	accounts := &fakeAccounts{users: map[int64]*model.User{
		5: {ID: 5, Username: "alice", Role: model.RoleAdmin, Status: model.StatusActive},
		6: {ID: 6, Username: "carol", Role: model.RoleUser, Status: model.StatusDisabled},
	}}
	a := NewAuthenticator(tokens, accounts, zaptest.NewLogger(t))
	ctx := context.Background()

	alice, _ := tokens.Issue("alice", 5)
	carol, _ := tokens.Issue("carol", 6)
	ghost, _ := tokens.Issue("ghost", 9)

	if _, ok := a.Authenticate(ctx, ""); ok {
		t.Fatalf("no header must stay anonymous")
	}
	if _, ok := a.Authenticate(ctx, "Basic "+alice); ok {
		t.Fatalf("wrong scheme must stay anonymous")
	}
	if _, ok := a.Authenticate(ctx, "Bearer not.a.token"); ok {
		t.Fatalf("invalid token must stay anonymous")
	}
	if accounts.calls != 0 {
		t.Fatalf("no lookup expected before a valid token, got %d", accounts.calls)
	}

	p, ok := a.Authenticate(ctx, "Bearer "+alice)
	if !ok || p.UserID != 5 || p.Username != "alice" || p.Role != model.RoleAdmin {
		t.Fatalf("alice: ok=%v p=%+v", ok, p)
	}

	if _, ok := a.Authenticate(ctx, "Bearer "+carol); ok {
		t.Fatalf("disabled account must stay anonymous despite a valid token")
	}

	p, ok = a.Authenticate(ctx, "Bearer "+ghost)
	if !ok || p.UserID != 9 || p.Role != "" {
		t.Fatalf("vanished account: want principal without role, got ok=%v p=%+v", ok, p)
	}

	clk.Advance(2 * time.Hour)
	if _, ok := a.Authenticate(ctx, "Bearer "+alice); ok {
		t.Fatalf("expired token must stay anonymous")
	}
}

func TestAuthenticate_DisabledAfterIssuance(t *testing.T) {
	t.Parallel()

	tokens, _ := newTokens(t)
	accounts := &fakeAccounts{users: map[int64]*model.User{
		1: {ID: 1, Username: "alice", Role: model.RoleUser, Status: model.StatusActive},
	}}
	a := NewAuthenticator(tokens, accounts, nil)
	tok, _ := tokens.Issue("alice", 1)

	if _, ok := a.Authenticate(context.Background(), "Bearer "+tok); !ok {
		t.Fatalf("active account must authenticate")
	}
	accounts.users[1].Status = model.StatusDisabled
	if _, ok := a.Authenticate(context.Background(), "Bearer "+tok); ok {
		t.Fatalf("account disabled after issuance must stay anonymous")
	}
}

func TestAuthenticate_LookupErrorFailsClosed(t *testing.T) {
	t.Parallel()

	tokens, _ := newTokens(t)
	accounts := &fakeAccounts{err: errors.New("db down")}
	a := NewAuthenticator(tokens, accounts, zaptest.NewLogger(t))
	tok, _ := tokens.Issue("alice", 1)

	if _, ok := a.Authenticate(context.Background(), "Bearer "+tok); ok {
		t.Fatalf("lookup error must leave request anonymous")
	}
}
