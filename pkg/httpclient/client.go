package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Client is a thin wrapper around resty that knows how to talk to the trade
// API: query-string parameters, form-encoded bodies and bearer tokens. It
// never retries on its own: order endpoints are not idempotent, so a failed
// call must surface to the caller instead of being silently reissued.
type Client struct {
	client *resty.Client
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "blockex-tradeapi-go")

	return &Client{client: client}
}

// RequestOptions carries the per-request pieces a caller may set. Query and
// Form hold only the parameters the caller actually provided; an absent
// parameter never reaches the wire.
type RequestOptions struct {
	Query       url.Values
	Form        url.Values
	BearerToken string
}

// Do issues a single HTTP request and returns the raw response. Non-2xx
// statuses are not an error here; interpreting them is the caller's job.
func (c *Client) Do(ctx context.Context, method, endpoint string, opt *RequestOptions) (*resty.Response, error) {
	r := c.client.R().SetContext(ctx)
	if opt != nil {
		if len(opt.Query) > 0 {
			r.SetQueryParamsFromValues(opt.Query)
		}
		if len(opt.Form) > 0 {
			r.SetFormDataFromValues(opt.Form)
		}
		if opt.BearerToken != "" {
			r.SetAuthToken(opt.BearerToken)
		}
	}

	var resp *resty.Response
	var err error
	switch method {
	case http.MethodGet:
		resp, err = r.Get(endpoint)
	case http.MethodPost:
		resp, err = r.Post(endpoint)
	default:
		return nil, errors.Errorf("unsupported method: %s", method)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, endpoint)
	}
	return resp, nil
}
