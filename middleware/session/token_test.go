package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

type tokenServer struct {
	*httptest.Server
	calls   int
	status  int
	gotForm map[string]string
	gotKey  string
}

func newTokenServer(t *testing.T, status int) *tokenServer {
	ts := &tokenServer{status: status, gotForm: map[string]string{}}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls++
		ts.gotKey = r.Header.Get("apikey")
		_ = r.ParseForm()
		for k := range r.PostForm {
			ts.gotForm[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		if ts.status != http.StatusOK {
			w.WriteHeader(ts.status)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"token_type":    "bearer",
			"expires_in":    3600,
			"refresh_token": "new-refresh",
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newRefresher(t *testing.T, url string) *TokenRefresher {
	t.Helper()
	r, err := NewTokenRefresher(TokenOptions{
		TokenURL: url,
		ClientID: "jobboard",
		APIKey:   "anon-key",
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return r
}

func requestWith(cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "http://example/jobs", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestNewTokenRefresher_RequiresURL(t *testing.T) {
	_, err := NewTokenRefresher(TokenOptions{})
	require.Error(t, err)
}

func TestTokenRefresher_AnonymousIsNoop(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	ref := newRefresher(t, ts.URL)

	cookies, err := ref.Refresh(context.Background(), requestWith())
	require.NoError(t, err)
	require.Empty(t, cookies)
	require.Zero(t, ts.calls)
}

func TestTokenRefresher_ValidAccessTokenSkipsCollaborator(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	ref := newRefresher(t, ts.URL)

	r := requestWith(
		&http.Cookie{Name: "sb-access-token", Value: signedToken(t, testNow.Add(time.Hour))},
		&http.Cookie{Name: "sb-refresh-token", Value: "old-refresh"},
	)
	cookies, err := ref.Refresh(context.Background(), r)
	require.NoError(t, err)
	require.Empty(t, cookies)
	require.Zero(t, ts.calls)
}

func TestTokenRefresher_ExpiredAccessTokenIsRefreshed(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	ref := newRefresher(t, ts.URL)

	r := requestWith(
		&http.Cookie{Name: "sb-access-token", Value: signedToken(t, testNow.Add(10*time.Second))},
		&http.Cookie{Name: "sb-refresh-token", Value: "old-refresh"},
	)
	cookies, err := ref.Refresh(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	require.Equal(t, "sb-access-token", cookies[0].Name)
	require.Equal(t, "new-access", cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, "new-refresh", cookies[1].Value)

	require.Equal(t, 1, ts.calls)
	require.Equal(t, "anon-key", ts.gotKey)
	require.Equal(t, "refresh_token", ts.gotForm["grant_type"])
	require.Equal(t, "old-refresh", ts.gotForm["refresh_token"])
	require.Equal(t, "jobboard", ts.gotForm["client_id"])
}

func TestTokenRefresher_GarbageAccessTokenIsRefreshed(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	ref := newRefresher(t, ts.URL)

	r := requestWith(
		&http.Cookie{Name: "sb-access-token", Value: "not-a-jwt"},
		&http.Cookie{Name: "sb-refresh-token", Value: "old-refresh"},
	)
	cookies, err := ref.Refresh(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, cookies, 2)
}

func TestTokenRefresher_ExpiredWithoutRefreshToken(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	ref := newRefresher(t, ts.URL)

	r := requestWith(&http.Cookie{Name: "sb-access-token", Value: signedToken(t, testNow.Add(-time.Minute))})
	cookies, err := ref.Refresh(context.Background(), r)
	require.ErrorIs(t, err, ErrNoSession)
	require.Empty(t, cookies)
}

func TestTokenRefresher_RejectedRefreshClearsCookies(t *testing.T) {
	ts := newTokenServer(t, http.StatusBadRequest)
	ref := newRefresher(t, ts.URL)

	r := requestWith(&http.Cookie{Name: "sb-refresh-token", Value: "revoked"})
	cookies, err := ref.Refresh(context.Background(), r)
	require.Error(t, err)
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		require.Equal(t, -1, c.MaxAge)
		require.Empty(t, c.Value)
	}
}

func TestTokenRefresher_ServerErrorKeepsCookies(t *testing.T) {
	ts := newTokenServer(t, http.StatusBadGateway)
	ref := newRefresher(t, ts.URL)

	r := requestWith(&http.Cookie{Name: "sb-refresh-token", Value: "ok"})
	cookies, err := ref.Refresh(context.Background(), r)
	require.Error(t, err)
	require.Empty(t, cookies)
}

func TestApply_SetsResponseAndRewritesRequestCookies(t *testing.T) {
	r := requestWith(
		&http.Cookie{Name: "theme", Value: "dark"},
		&http.Cookie{Name: "sb-access-token", Value: "old"},
	)
	w := httptest.NewRecorder()

	Apply(w, r, []*http.Cookie{
		{Name: "sb-access-token", Value: "new", MaxAge: 60},
		{Name: "sb-refresh-token", Value: "rt", MaxAge: 60},
	})

	require.Len(t, w.Result().Cookies(), 2)

	got := map[string]string{}
	for _, c := range r.Cookies() {
		got[c.Name] = c.Value
	}
	require.Equal(t, map[string]string{"theme": "dark", "sb-access-token": "new", "sb-refresh-token": "rt"}, got)
}

func TestApply_ClearingCookiesDropFromRequest(t *testing.T) {
	r := requestWith(&http.Cookie{Name: "sb-access-token", Value: "old"})
	w := httptest.NewRecorder()

	Apply(w, r, []*http.Cookie{{Name: "sb-access-token", MaxAge: -1}})

	_, err := r.Cookie("sb-access-token")
	require.True(t, errors.Is(err, http.ErrNoCookie))
	require.Empty(t, r.Header.Get("Cookie"))
}
