package core

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"

	"atdkit/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

const appKey = "atd"

// redirect chains after the oauth callback are short, anything longer
// than this is a loop
const maxRedirectHops = 5

// Login performs the full browser-equivalent sign-in sequence:
// fetch the sign-in form, post credentials, collect the authorization
// code, exchange it at the callback and ride out the redirect chain,
// merging cookies the whole way. On success the resulting session is
// persisted and its identifier returned.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	cookies := cookieSet{}

	// step 1: the sign-in page carries a csrf token in an input field,
	// or on some portal versions in a meta tag
	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.idUrl("/sign_in"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch sign-in page")
		return "", err
	}
	cookies.merge(res.Header().Values("Set-Cookie"))

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse sign-in page html")
		return "", err
	}
	token := doc.Find("input[name=authenticity_token]").AttrOr("value", "")
	if token == "" {
		token = doc.Find("meta[name=csrf-token]").AttrOr("content", "")
	}
	if token == "" {
		span.SetStatus(codes.Error, ErrAuthParse.Error())
		return "", ErrAuthParse
	}

	redirectUri := c.appUrl("/oauth/callback")

	// step 2: post the credentials, redirects stay disabled so the
	// response code is the portal's own verdict
	res, err = c.Http.R().
		SetContext(ctx).
		SetHeader("cookie", cookies.header()).
		SetFormData(map[string]string{
			"authenticity_token": token,
			"user[email]":        email,
			"user[password]":     password,
			"redirect_uri":       redirectUri,
			"app_key":            appKey,
			"commit":             "Login",
		}).
		Post(c.idUrl("/sign_in"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post credentials")
		return "", err
	}
	if res.StatusCode() != 200 && res.StatusCode() != 302 {
		span.SetStatus(codes.Error, ErrAuthCredentials.Error())
		return "", ErrAuthCredentials
	}
	cookies.merge(res.Header().Values("Set-Cookie"))

	// step 3: the authorization endpoint answers with a redirect whose
	// query string carries the one-time code
	res, err = c.Http.R().
		SetContext(ctx).
		SetHeader("cookie", cookies.header()).
		SetQueryParams(map[string]string{
			"client_id":     appKey,
			"redirect_uri":  redirectUri,
			"response_type": "code",
			"scope":         "read",
		}).
		Get(c.idUrl("/oauth/authorize"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch authorization endpoint")
		return "", err
	}
	cookies.merge(res.Header().Values("Set-Cookie"))

	code := authorizationCode(res.Header().Get("Location"))
	if code == "" {
		span.SetStatus(codes.Error, ErrAuthProtocol.Error())
		return "", ErrAuthProtocol
	}

	// step 4: exchange the code at the callback, the session identifier
	// arrives as a cookie
	res, err = c.Http.R().
		SetContext(ctx).
		SetHeader("cookie", cookies.header()).
		SetQueryParam("code", code).
		Get(c.appUrl("/oauth/callback"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch oauth callback")
		return "", err
	}
	cookies.merge(res.Header().Values("Set-Cookie"))

	sessionId := cookies.get(sessionCookieName)
	if sessionId == "" {
		span.SetStatus(codes.Error, "callback did not set a session cookie")
		return "", ErrAuthProtocol
	}

	// step 5: ride the remaining redirect chain, refreshing cookies and
	// the session identifier if the portal rotates it
	next := res.Header().Get("Location")
	for hops := 0; hops < maxRedirectHops && next != ""; hops++ {
		target, err := res.RawResponse.Request.URL.Parse(next)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "redirect target is not a valid url")
			return "", ErrAuthProtocol
		}

		res, err = c.Http.R().
			SetContext(ctx).
			SetHeader("cookie", cookies.header()).
			Get(target.String())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to follow redirect")
			return "", err
		}
		cookies.merge(res.Header().Values("Set-Cookie"))
		if id := cookies.get(sessionCookieName); id != "" {
			sessionId = id
		}

		if res.StatusCode() == 200 {
			break
		}
		next = res.Header().Get("Location")
	}

	if isLoginPage(res.String()) {
		span.SetStatus(codes.Error, ErrAuthCredentials.Error())
		return "", ErrAuthCredentials
	}

	session := Session{
		Id:        sessionId,
		Cookies:   cookies.header(),
		ExpiresAt: timezone.Now().Add(sessionLifetime),
	}
	err = c.Sessions.Write(ctx, session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist session")
		return "", err
	}

	slog.InfoContext(ctx, "logged in", "session_expires_at", session.ExpiresAt)
	return sessionId, nil
}

func authorizationCode(location string) string {
	if location == "" {
		return ""
	}
	target, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return target.Query().Get("code")
}

// EnsureValidSession returns the stored session identifier when it is
// still comfortably inside its lifetime. This is the hot path, it must
// not touch the network. Anything less than the expiry buffer of
// remaining lifetime counts as expired and is purged.
func (c *Client) EnsureValidSession(ctx context.Context) (string, error) {
	session, ok, err := c.Sessions.Read(ctx)
	if err != nil {
		return "", err
	}
	if ok && timezone.Now().Add(sessionExpiryBuffer).Before(session.ExpiresAt) {
		return session.Id, nil
	}
	if ok {
		// expired or about to, treat as absent
		err := c.Sessions.Clear(ctx)
		if err != nil {
			return "", err
		}
	}

	if c.autoRelogin && c.credentials != nil {
		creds, err := c.credentials()
		if err == nil {
			return c.Login(ctx, creds.Email, creds.Password)
		}
		slog.WarnContext(ctx, "auto relogin enabled but credentials unavailable", "err", err)
	}

	if ok {
		return "", ErrSessionExpired
	}
	return "", ErrSessionMissing
}

// Logout tears the remote session down best-effort and purges all local
// state derived from it. A failing logout request is logged, never
// fatal, the local purge happens regardless.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Logout")
	defer span.End()

	session, ok, err := c.Sessions.Read(ctx)
	if err != nil {
		return err
	}
	if ok {
		_, err := c.Http.R().
			SetContext(ctx).
			SetHeader("cookie", c.requestCookies(session)).
			Get(c.appUrl("/employee/logout/"))
		if err != nil {
			slog.WarnContext(ctx, "remote logout failed", "err", err)
		}
	}

	err = c.Sessions.Clear(ctx)
	if err != nil {
		return err
	}
	return c.purgeDerivedCache(ctx)
}
