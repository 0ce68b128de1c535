package tradeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/blockex/tradeapi-go/pkg/httpclient"
)

// unauthorizedMessage is the exact body message the API returns when it
// rejects a bearer token. Only this message triggers the single re-login
// and reissue inside DoAuthorized; every other 401 is returned as-is.
const unauthorizedMessage = "Authorization has been denied for this request."

// Credentials identifies one trader against the identity endpoint. They are
// fixed for the lifetime of a Session.
type Credentials struct {
	Username string
	Password string
	APIID    string
}

// Session owns the OAuth2 password-grant lifecycle for one trader: obtaining
// an access token, tracking its expiry and transparently re-authenticating
// when the server rejects it. Token state is guarded by a mutex, so a single
// Session may be shared between goroutines; authorized calls through it
// serialize. Run one Session per trader credential for full parallelism.
type Session struct {
	creds     Credentials
	transport *httpclient.Client
	log       *logrus.Entry

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	// now is swapped out in tests to control expiry.
	now func() time.Time
}

// NewSession creates a logged-out session with the given credentials.
func NewSession(transport *httpclient.Client, creds Credentials) *Session {
	return &Session{
		creds:     creds,
		transport: transport,
		log:       logrus.WithField("component", "tradeapi.session"),
		now:       time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login exchanges the stored credentials for an access token and records its
// expiry. On failure the session state is left untouched and an
// *AuthenticationError is returned.
func (s *Session) Login(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginLocked(ctx)
}

func (s *Session) loginLocked(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {s.creds.Username},
		"password":   {s.creds.Password},
		"client_id":  {s.creds.APIID},
	}

	resp, err := s.transport.Do(ctx, http.MethodPost, EndpointLogin, &httpclient.RequestOptions{Form: form})
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &AuthenticationError{
			StatusCode: resp.StatusCode(),
			Message:    serverMessage(resp.Body()),
		}
	}

	var token tokenResponse
	if err := json.Unmarshal(resp.Body(), &token); err != nil {
		return "", &AuthenticationError{
			StatusCode: resp.StatusCode(),
			Message:    "malformed token response: " + err.Error(),
		}
	}

	s.accessToken = token.AccessToken
	s.tokenExpiry = s.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	s.log.WithField("expires_in", token.ExpiresIn).Debug("logged in")
	return s.accessToken, nil
}

// Logout invalidates the current token on the server and clears the local
// session state. When already logged out it returns immediately without a
// network call. A non-200 response keeps the local token so the session's
// view stays consistent with the server's.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken == "" {
		return nil
	}

	resp, err := s.transport.Do(ctx, http.MethodPost, EndpointLogout, &httpclient.RequestOptions{
		BearerToken: s.accessToken,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return &LogoutError{
			StatusCode: resp.StatusCode(),
			Message:    serverMessage(resp.Body()),
		}
	}

	s.accessToken = ""
	s.tokenExpiry = time.Time{}
	s.log.Debug("logged out")
	return nil
}

// DoAuthorized issues method+path with a valid bearer token, logging in first
// when the session holds no token or the token has passed its recorded
// expiry. If the resource call still comes back 401 with the API's exact
// denial message, the token is assumed dead regardless of local bookkeeping:
// the session re-logs-in once and reissues the request once. The possibly
// retried response is returned as-is; any non-401 status is the caller's to
// interpret. There is never more than one retry, and transport failures are
// never retried at all.
func (s *Session) DoAuthorized(ctx context.Context, method, path string, query url.Values) (*resty.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken == "" || !s.tokenExpiry.After(s.now()) {
		if _, err := s.loginLocked(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := s.issue(ctx, method, path, query)
	if err != nil {
		return nil, err
	}

	if tokenRejected(resp) {
		s.log.WithFields(logrus.Fields{"method": method, "path": path}).
			Debug("token rejected by server, re-authenticating")
		if _, err := s.loginLocked(ctx); err != nil {
			return nil, err
		}
		return s.issue(ctx, method, path, query)
	}

	return resp, nil
}

// issue performs a single resource call with the current token. Both the
// initial attempt and the post-relogin retry go through here so the two call
// sites cannot drift apart.
func (s *Session) issue(ctx context.Context, method, path string, query url.Values) (*resty.Response, error) {
	return s.transport.Do(ctx, method, path, &httpclient.RequestOptions{
		Query:       query,
		BearerToken: s.accessToken,
	})
}

func tokenRejected(resp *resty.Response) bool {
	if resp.StatusCode() != http.StatusUnauthorized {
		return false
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return false
	}
	return body.Message == unauthorizedMessage
}

// serverMessage extracts the best-effort error text from a response body:
// the "error" field, else the "message" field, else empty.
func serverMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
