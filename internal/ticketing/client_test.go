package ticketing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bridge/internal/httpclient"
)

type fakeAPI struct {
	tokenCalls int32
	rejectNext int32
	mux        *http.ServeMux
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{mux: http.NewServeMux()}
	api.mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&api.tokenCalls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		writeJSON(w, map[string]any{"access_token": "tok-" + strconv.Itoa(int(n)), "expires_in": 3600})
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" && atomic.CompareAndSwapInt32(&api.rejectNext, 1, 0) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		api.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return api, srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(srv *httptest.Server) *Client {
	caller := httpclient.New(httpclient.Options{Timeout: 2 * time.Second, BaseDelay: time.Millisecond}, nil)
	return NewClient(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret", TokenPath: "/oauth/token"}, caller, nil)
}

func TestCreateTicket(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("/tickets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "printer broken", body["request"])
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"id": "abc-123", "number": "I 2026 042", "processingStatus": map[string]any{"name": "Registered"}})
	})

	created, err := newTestClient(srv).CreateTicket(context.Background(), CreateTicketInput{CallerID: "u1", Email: "a@x.com", Description: "printer broken"})
	require.NoError(t, err)
	assert.Equal(t, "abc-123", created.ID)
	assert.Equal(t, "I 2026 042", created.DisplayID())
	assert.Equal(t, "Registered", created.Status)
}

func TestTokenIsCachedAndRefreshedOn401(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("/tickets/42", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "42", "status": "Open", "auth": r.Header.Get("Authorization")})
	})
	client := newTestClient(srv)
	ctx := context.Background()

	ticket, err := client.GetTicket(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", ticket["auth"])

	_, err = client.GetTicket(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.tokenCalls))

	atomic.StoreInt32(&api.rejectNext, 1)
	ticket, err = client.GetTicket(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-2", ticket["auth"])
}

func TestGetTicketNotFound(t *testing.T) {
	_, srv := newFakeAPI(t)
	_, err := newTestClient(srv).GetTicket(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetStatusServerError(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("/statuses/7", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := newTestClient(srv).GetStatus(context.Background(), "7")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
}

func TestAddNote(t *testing.T) {
	api, srv := newFakeAPI(t)
	var got map[string]any
	api.mux.HandleFunc("/tickets/42/notes", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})
	require.NoError(t, newTestClient(srv).AddNote(context.Background(), "42", "still broken", "a@x.com"))
	assert.Equal(t, "still broken", got["memoText"])
	assert.Equal(t, "a@x.com", got["author"])
}

func TestListUsersPaginates(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.mux.HandleFunc("/persons", func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		count := usersPageSize
		if start > 0 {
			count = 3
		}
		items := make([]map[string]any, 0, count)
		for i := 0; i < count; i++ {
			n := start + i
			items = append(items, map[string]any{
				"id":        fmt.Sprintf("u%d", n),
				"email":     fmt.Sprintf("user%d@x.com", n),
				"firstName": "User",
				"surName":   strconv.Itoa(n),
			})
		}
		if start > 0 {
			writeJSON(w, map[string]any{"data": items})
			return
		}
		writeJSON(w, items)
	})

	users, err := newTestClient(srv).ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, usersPageSize+3)
	assert.Equal(t, "u0", users[0].ID)
	assert.Equal(t, "User 0", users[0].Name)
	assert.Equal(t, "user102@x.com", users[len(users)-1].Email)
}

func TestListUsersStopsWhenServerIgnoresStart(t *testing.T) {
	api, srv := newFakeAPI(t)
	var calls atomic.Int32
	api.mux.HandleFunc("/persons", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		items := make([]map[string]any, 0, usersPageSize)
		for i := 0; i < usersPageSize; i++ {
			items = append(items, map[string]any{"id": fmt.Sprintf("u%d", i), "email": fmt.Sprintf("user%d@x.com", i)})
		}
		writeJSON(w, items)
	})

	users, err := newTestClient(srv).ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, usersPageSize)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenExpiryFromJWTClaim(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	exp := now.Add(2 * time.Hour)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)

	src := &tokenSource{now: func() time.Time { return now }}
	assert.Equal(t, exp.Unix(), src.expiry(signed, 0).Unix())
	assert.Equal(t, now.Add(10*time.Minute), src.expiry(signed, 600))
	assert.Equal(t, now.Add(defaultTokenTTL), src.expiry("opaque-token", 0))
}
