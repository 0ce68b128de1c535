package tradeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockex/tradeapi-go/pkg/httpclient"
)

const (
	testUsername = "CorrectUsername"
	testPassword = "CorrectPassword"
	testAPIID    = "CorrectApiID"
)

// apiStub is an httptest-backed fake of the trade API. Tests plug in a
// resource handler and inspect how often login and resource calls happened.
type apiStub struct {
	server *httptest.Server

	mu             sync.Mutex
	tokenRequests  int
	logoutRequests int
	resourceCalls  int

	resource http.HandlerFunc
}

func newAPIStub(t *testing.T, resource http.HandlerFunc) *apiStub {
	t.Helper()

	stub := &apiStub{resource: resource}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			stub.mu.Lock()
			stub.tokenRequests++
			n := stub.tokenRequests
			stub.mu.Unlock()

			require.NoError(t, r.ParseForm())
			if r.PostFormValue("password") != testPassword {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_client"}`)
				return
			}
			fmt.Fprintf(w, `{"access_token":"T%d","expires_in":86399}`, n)
		case "/oauth/logout":
			stub.mu.Lock()
			stub.logoutRequests++
			stub.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		default:
			stub.mu.Lock()
			stub.resourceCalls++
			stub.mu.Unlock()
			if stub.resource != nil {
				stub.resource(w, r)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `[]`)
		}
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *apiStub) counts() (token, logout, resource int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenRequests, s.logoutRequests, s.resourceCalls
}

func newTestSession(stub *apiStub) *Session {
	transport := httpclient.NewClient(stub.server.URL, 5*time.Second)
	return NewSession(transport, Credentials{
		Username: testUsername,
		Password: testPassword,
		APIID:    testAPIID,
	})
}

func TestLoginStoresTokenAndExpiry(t *testing.T) {
	stub := newAPIStub(t, nil)
	session := newTestSession(stub)

	token, err := session.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", token)

	assert.Equal(t, "T1", session.accessToken)
	assert.True(t, session.tokenExpiry.After(time.Now()), "expiry must be in the future")
}

func TestLoginFailureLeavesSessionLoggedOut(t *testing.T) {
	stub := newAPIStub(t, nil)
	transport := httpclient.NewClient(stub.server.URL, 5*time.Second)
	session := NewSession(transport, Credentials{
		Username: testUsername,
		Password: "bad_password",
		APIID:    testAPIID,
	})

	_, err := session.Login(context.Background())

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	assert.Contains(t, authErr.Error(), "invalid_client")

	assert.Empty(t, session.accessToken)
	assert.True(t, session.tokenExpiry.IsZero())
}

func TestLogoutWhenLoggedOutMakesNoNetworkCall(t *testing.T) {
	stub := newAPIStub(t, nil)
	session := newTestSession(stub)

	require.NoError(t, session.Logout(context.Background()))

	token, logout, resource := stub.counts()
	assert.Zero(t, token)
	assert.Zero(t, logout)
	assert.Zero(t, resource)
}

func TestLogoutClearsToken(t *testing.T) {
	stub := newAPIStub(t, nil)
	session := newTestSession(stub)

	_, err := session.Login(context.Background())
	require.NoError(t, err)

	require.NoError(t, session.Logout(context.Background()))

	assert.Empty(t, session.accessToken)
	assert.True(t, session.tokenExpiry.IsZero())

	_, logout, _ := stub.counts()
	assert.Equal(t, 1, logout)
}

func TestLogoutFailureKeepsLocalToken(t *testing.T) {
	var logoutStatus int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			fmt.Fprint(w, `{"access_token":"T1","expires_in":86399}`)
		case "/oauth/logout":
			w.WriteHeader(logoutStatus)
			fmt.Fprint(w, `{"message":"session busy"}`)
		}
	}))
	defer server.Close()

	transport := httpclient.NewClient(server.URL, 5*time.Second)
	session := NewSession(transport, Credentials{Username: testUsername, Password: testPassword, APIID: testAPIID})

	_, err := session.Login(context.Background())
	require.NoError(t, err)

	logoutStatus = http.StatusBadRequest
	err = session.Logout(context.Background())

	var logoutErr *LogoutError
	require.ErrorAs(t, err, &logoutErr)
	assert.Contains(t, logoutErr.Error(), "session busy")

	// The server did not confirm the logout, so locally we are still in.
	assert.Equal(t, "T1", session.accessToken)
	assert.False(t, session.tokenExpiry.IsZero())
}

func TestDoAuthorizedLogsInLazily(t *testing.T) {
	var gotAuth string
	stub := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `[]`)
	})
	session := newTestSession(stub)

	resp, err := session.DoAuthorized(context.Background(), http.MethodGet, EndpointGetOrders, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	token, _, resource := stub.counts()
	assert.Equal(t, 1, token, "exactly one login before the resource call")
	assert.Equal(t, 1, resource)
	assert.Equal(t, "Bearer T1", gotAuth)
}

func TestDoAuthorizedRefreshesExpiredToken(t *testing.T) {
	var gotAuth string
	stub := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `[]`)
	})
	session := newTestSession(stub)
	session.accessToken = "stale"
	session.tokenExpiry = time.Now().Add(-time.Minute)

	_, err := session.DoAuthorized(context.Background(), http.MethodGet, EndpointGetOrders, nil)
	require.NoError(t, err)

	token, _, _ := stub.counts()
	assert.Equal(t, 1, token)
	assert.Equal(t, "Bearer T1", gotAuth, "expired token must be replaced before the call")
}

func TestDoAuthorizedRetriesOnceOnDeniedToken(t *testing.T) {
	var tokensSeen []string
	stub := newAPIStub(t, nil)
	stub.resource = func(w http.ResponseWriter, r *http.Request) {
		tokensSeen = append(tokensSeen, r.Header.Get("Authorization"))
		if len(tokensSeen) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintf(w, `{"message":%q}`, unauthorizedMessage)
			return
		}
		fmt.Fprint(w, `[]`)
	}
	session := newTestSession(stub)

	resp, err := session.DoAuthorized(context.Background(), http.MethodGet, EndpointGetOrders, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	token, _, resource := stub.counts()
	assert.Equal(t, 2, token, "lazy login plus one re-login")
	assert.Equal(t, 2, resource, "one attempt plus one retry")
	assert.Equal(t, []string{"Bearer T1", "Bearer T2"}, tokensSeen)
}

func TestDoAuthorizedNeverRetriesTwice(t *testing.T) {
	stub := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprintf(w, `{"message":%q}`, unauthorizedMessage)
	})
	session := newTestSession(stub)

	resp, err := session.DoAuthorized(context.Background(), http.MethodGet, EndpointGetOrders, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode(), "second 401 surfaces to the caller")

	token, _, resource := stub.counts()
	assert.Equal(t, 2, token)
	assert.Equal(t, 2, resource, "no third attempt")
}

func TestDoAuthorizedIgnoresOther401Messages(t *testing.T) {
	stub := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"insufficient permissions"}`)
	})
	session := newTestSession(stub)

	resp, err := session.DoAuthorized(context.Background(), http.MethodGet, EndpointGetOrders, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	token, _, resource := stub.counts()
	assert.Equal(t, 1, token, "a 401 without the exact denial message is not a token problem")
	assert.Equal(t, 1, resource)
}

func TestDoAuthorizedPropagatesLoginFailure(t *testing.T) {
	stub := newAPIStub(t, nil)
	transport := httpclient.NewClient(stub.server.URL, 5*time.Second)
	session := NewSession(transport, Credentials{
		Username: testUsername,
		Password: "bad_password",
		APIID:    testAPIID,
	})

	_, err := session.DoAuthorized(context.Background(), http.MethodGet, EndpointGetOrders, nil)

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)

	_, _, resource := stub.counts()
	assert.Zero(t, resource, "resource call must not happen when login fails")
}

func TestLoginSendsPasswordGrantForm(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"grant_type": r.PostFormValue("grant_type"),
			"username":   r.PostFormValue("username"),
			"password":   r.PostFormValue("password"),
			"client_id":  r.PostFormValue("client_id"),
		}
		fmt.Fprint(w, `{"access_token":"T1","expires_in":86399}`)
	}))
	defer server.Close()

	transport := httpclient.NewClient(server.URL, 5*time.Second)
	session := NewSession(transport, Credentials{Username: testUsername, Password: testPassword, APIID: testAPIID})

	_, err := session.Login(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"grant_type": "password",
		"username":   testUsername,
		"password":   testPassword,
		"client_id":  testAPIID,
	}, form)
}

func TestServerMessageExtraction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "error field wins", body: `{"error":"invalid_client","message":"ignored"}`, want: "invalid_client"},
		{name: "message fallback", body: `{"message":"Unknown trader"}`, want: "Unknown trader"},
		{name: "neither field", body: `{"detail":"nope"}`, want: ""},
		{name: "not json", body: `<html>`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serverMessage([]byte(tt.body)))
		})
	}
}

func TestTokenRejectedRequiresExactMessage(t *testing.T) {
	body, err := json.Marshal(map[string]string{"message": unauthorizedMessage})
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write(body)
	}))
	defer server.Close()

	transport := httpclient.NewClient(server.URL, 5*time.Second)
	resp, err := transport.Do(context.Background(), http.MethodGet, "x", nil)
	require.NoError(t, err)
	assert.True(t, tokenRejected(resp))
}
