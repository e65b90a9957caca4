package core

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"atdkit/lib/credstore"
	"atdkit/lib/kvstore"
	"atdkit/lib/restyutil"
	"atdkit/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/atd/core")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput must be called before any client is created.
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}

// Client owns the session against the attendance portal. All requests
// from the higher-level scrapers go through it so that cookie handling,
// session renewal and the single reauthentication retry live in one
// place.
type Client struct {
	// the portal itself, e.g. https://atd.example.co.jp
	AppBaseUrl *url.URL
	// the identity provider handling sign-in, e.g. https://id.example.co.jp
	IdBaseUrl *url.URL
	Http      *resty.Client

	Sessions SessionStore

	kv          kvstore.Store
	autoRelogin bool
	credentials func() (credstore.Credentials, error)
}

type ClientOptions struct {
	AppBaseUrl string
	IdBaseUrl  string
	Store      kvstore.Store

	// when true, an expired or missing session triggers a fresh login
	// using Credentials instead of an error
	AutoRelogin bool
	Credentials func() (credstore.Credentials, error)
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	appUrl, err := url.Parse(opts.AppBaseUrl)
	if err != nil {
		return nil, err
	}
	idUrl, err := url.Parse(opts.IdBaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(time.Second * 30)

	// never follow redirects automatically: the login flow inspects
	// Location headers and merges Set-Cookie values hop by hop itself
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(
		func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	))

	telemetry.InstrumentResty(client, "scrapers/atd/http")
	restyutil.InstrumentClient(client, restyInstrumentOutput)

	c := &Client{
		AppBaseUrl:  appUrl,
		IdBaseUrl:   idUrl,
		Http:        client,
		Sessions:    NewSessionStore(opts.Store),
		kv:          opts.Store,
		autoRelogin: opts.AutoRelogin,
		credentials: opts.Credentials,
	}
	return c, nil
}

func (c *Client) appUrl(path string) string {
	return c.AppBaseUrl.ResolveReference(&url.URL{Path: path}).String()
}

func (c *Client) idUrl(path string) string {
	return c.IdBaseUrl.ResolveReference(&url.URL{Path: path}).String()
}
