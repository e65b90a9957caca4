package core

import (
	"context"
	"log/slog"
	"net/url"

	"atdkit/lib/kvstore"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// the portal expects these on every authenticated request, a bare
// session cookie alone gets bounced to the sign-in page
var baselineCookies = map[string]string{
	"locale":  "ja",
	"app_key": appKey,
}

// prefix of every cached value derived from an authenticated response
const DerivedCachePrefix = "attendance:"

func (c *Client) requestCookies(session Session) string {
	cookies := parseCookieSet(session.Cookies)
	for name, value := range baselineCookies {
		cookies.set(name, value)
	}
	cookies.set(sessionCookieName, session.Id)
	return cookies.header()
}

func (c *Client) purgeDerivedCache(ctx context.Context) error {
	entries, err := c.kv.ListPrefix(ctx, DerivedCachePrefix)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		err := c.kv.Delete(ctx, entry.Key)
		if err != nil {
			return err
		}
	}
	return nil
}

// authFailure reports whether a response means the session is dead.
// 401/403 are unambiguous, otherwise the body heuristics decide.
func authFailure(res *resty.Response) bool {
	if res.StatusCode() == 401 || res.StatusCode() == 403 {
		return true
	}
	return isLoginPage(res.String())
}

// Get performs an authenticated GET against the portal.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	return c.do(ctx, "GET", path, query, nil)
}

// PostForm performs an authenticated url-encoded POST against the portal.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*resty.Response, error) {
	return c.do(ctx, "POST", path, nil, form)
}

// do wraps one request with session cookies and standard headers. When
// the response looks unauthenticated it purges the session, forces one
// fresh login and retries exactly once; a second failure is terminal.
// There is deliberately no retry loop beyond that, a permanently broken
// credential must not recurse.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, form url.Values) (*resty.Response, error) {
	ctx, span := tracer.Start(ctx, "client:do")
	defer span.End()

	_, err := c.EnsureValidSession(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no valid session")
		return nil, err
	}

	res, err := c.send(ctx, method, path, query, form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	if !authFailure(res) {
		return res, nil
	}

	slog.WarnContext(ctx, "session invalidated by portal, re-authenticating", "path", path)
	err = c.Sessions.Clear(ctx)
	if err != nil {
		return nil, err
	}

	if c.credentials == nil {
		span.SetStatus(codes.Error, ErrSessionExpired.Error())
		return nil, ErrSessionExpired
	}
	creds, err := c.credentials()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrSessionExpired.Error())
		return nil, ErrSessionExpired
	}
	_, err = c.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forced re-login failed")
		return nil, err
	}

	res, err = c.send(ctx, method, path, query, form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retried request failed")
		return nil, err
	}
	if authFailure(res) {
		span.SetStatus(codes.Error, ErrReauthFailed.Error())
		return nil, ErrReauthFailed
	}
	return res, nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, form url.Values) (*resty.Response, error) {
	session, ok, err := c.Sessions.Read(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionMissing
	}

	req := c.Http.R().
		SetContext(ctx).
		SetHeader("cookie", c.requestCookies(session)).
		SetHeader("referer", c.appUrl("/employee/attendance"))
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if form != nil {
		req.SetFormDataFromValues(form)
	}

	switch method {
	case "POST":
		return req.Post(c.appUrl(path))
	default:
		return req.Get(c.appUrl(path))
	}
}

// Store exposes the underlying key-value store so the higher-level
// scrapers can keep their caches next to the session state.
func (c *Client) Store() kvstore.Store {
	return c.kv
}
