// Command blogctl is a CLI client for the blog server's HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/and161185/inkwell/internal/crypto"
	"github.com/and161185/inkwell/internal/token"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "blogctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "blogctl")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func readToken() (tokenFile, error) {
	var tf tokenFile
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return tf, err
	}
	if err := json.Unmarshal(b, &tf); err != nil {
		return tf, err
	}
	return tf, nil
}

// loadToken returns the stored token unless it is missing or already expired at now.
func loadToken(now time.Time) (string, error) {
	tf, err := readToken()
	if err != nil {
		return "", err
	}
	if tf.AccessToken == "" || !now.Before(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// tokenExpiry prefers the server's header and falls back to the unverified exp claim.
func tokenExpiry(h http.Header, tok string) (time.Time, error) {
	if v := h.Get("X-Token-Expires-At"); v != "" {
		if exp, err := time.Parse(time.RFC3339, v); err == nil {
			return exp, nil
		}
	}
	claims, err := token.Peek(tok)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// ---- http client ----

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// apiError is a non-200 envelope code.
type apiError struct {
	Code    int
	Message string
}

func (e *apiError) Error() string { return fmt.Sprintf("server: code=%d msg=%s", e.Code, e.Message) }

type client struct {
	base   string
	bearer string
	hc     *http.Client
}

func newClient(addr, bearer string) *client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &client{base: base, bearer: bearer, hc: &http.Client{Timeout: 30 * time.Second}}
}

// call sends body as JSON and decodes the envelope's data into out when out is non-nil.
func (c *client) call(ctx context.Context, method, path string, body, out any) (http.Header, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.Header, fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}
	if env.Code != http.StatusOK {
		return resp.Header, &apiError{Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.Header, fmt.Errorf("decode data: %w", err)
		}
	}
	return resp.Header, nil
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `blogctl
Usage:
  blogctl -addr HOST:PORT <cmd> [args]

Commands:
  version
  register   -u <username> -p <password> -email <email> [-nick <nickname>]
  login      -u <username> -p <password>           (saves token)
  whoami
  passwd     -old <password> -new <password>
  token      [-raw <jwt> | -file <path|->]          (decode without verifying)
  hash       -p <password> [-algo bcrypt|argon2id] [-cost N]
`)
}

var errUsage = errors.New("usage")

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run dispatches one subcommand.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("blogctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	addr := global.String("addr", "localhost:8080", "server addr")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() < 1 {
		usage(stderr)
		return errUsage
	}
	cmd, rest := global.Arg(0), global.Args()[1:]

	sub := func(name string) *flag.FlagSet {
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		return fs
	}

	switch cmd {

	case "version":
		fmt.Fprintf(stdout, "blogctl %s (%s)\n", version, buildDate)

	case "register":
		fs := sub("register")
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		email := fs.String("email", "", "email")
		nick := fs.String("nick", "", "nickname")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *u == "" || *p == "" || *email == "" {
			return errors.New("need -u, -p and -email")
		}
		body := map[string]string{"username": *u, "password": *p, "email": *email, "nickname": *nick}
		if _, err := newClient(*addr, "").call(ctx, http.MethodPost, "/user/register", body, nil); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")

	case "login":
		fs := sub("login")
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *u == "" || *p == "" {
			return errors.New("need -u and -p")
		}
		var tok string
		h, err := newClient(*addr, "").call(ctx, http.MethodPost, "/user/login",
			map[string]string{"username": *u, "password": *p}, &tok)
		if err != nil {
			return err
		}
		exp, err := tokenExpiry(h, tok)
		if err != nil {
			return fmt.Errorf("read token expiry: %w", err)
		}
		if err := saveToken(tok, exp); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "ok (expires %s)\n", exp.UTC().Format(time.RFC3339))

	case "whoami":
		tok, err := loadToken(time.Now())
		if err != nil {
			return err
		}
		var info map[string]any
		if _, err := newClient(*addr, tok).call(ctx, http.MethodGet, "/user/info", nil, &info); err != nil {
			return err
		}
		printJSON(stdout, info)

	case "passwd":
		fs := sub("passwd")
		oldPw := fs.String("old", "", "current password")
		newPw := fs.String("new", "", "new password")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *oldPw == "" || *newPw == "" {
			return errors.New("need -old and -new")
		}
		tok, err := loadToken(time.Now())
		if err != nil {
			return err
		}
		body := map[string]string{"oldPassword": *oldPw, "newPassword": *newPw}
		if _, err := newClient(*addr, tok).call(ctx, http.MethodPut, "/user/password", body, nil); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")

	case "token":
		fs := sub("token")
		raw := fs.String("raw", "", "token string")
		file := fs.String("file", "", "read token from file (- for stdin)")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		tok, err := pickToken(*raw, *file)
		if err != nil {
			return err
		}
		return describeToken(stdout, tok, time.Now())

	case "hash":
		fs := sub("hash")
		p := fs.String("p", "", "password")
		algo := fs.String("algo", crypto.AlgBcrypt, "bcrypt|argon2id")
		cost := fs.Int("cost", 0, "bcrypt cost (0 = default)")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *p == "" {
			return errors.New("need -p")
		}
		hasher, err := crypto.NewHasher(*algo, *cost)
		if err != nil {
			return err
		}
		encoded, err := crypto.NewCredentials(hasher, 1).Hash(ctx, *p)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, encoded)

	default:
		usage(stderr)
		return errUsage
	}
	return nil
}

func pickToken(raw, file string) (string, error) {
	switch {
	case raw != "":
		return raw, nil
	case file != "":
		b, err := readAll(file)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	default:
		tf, err := readToken()
		if err != nil {
			return "", fmt.Errorf("no stored token: %w", err)
		}
		return tf.AccessToken, nil
	}
}

type tokenReport struct {
	Username  string     `json:"username"`
	UserID    int64      `json:"userId"`
	IssuedAt  *time.Time `json:"issuedAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Expired   bool       `json:"expired"`
	Remaining string     `json:"remaining,omitempty"`
}

// describeToken prints the unverified claims. The signature is never checked here.
func describeToken(w io.Writer, raw string, now time.Time) error {
	claims, err := token.Peek(raw)
	if err != nil {
		return err
	}
	r := tokenReport{
		Username: claims.Subject,
		UserID:   claims.UserID,
		Expired:  token.IsExpiredAt(raw, now),
	}
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.UTC()
		r.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.UTC()
		r.ExpiresAt = &t
		if !r.Expired {
			r.Remaining = t.Sub(now).Truncate(time.Second).String()
		}
	}
	printJSON(w, r)
	return nil
}
