package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chat-service/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchProfiles(t *testing.T) {
	req := require.New(t)
	var gotBody batchRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/users/batch" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":1,"displayName":"Alice","contact":"alice@example.com","status":1,"bio":"hi","avatarRef":"img-1"},
			{"id":2,"username":"bob","email":"bob@example.com","status":0,"bio":null,"imageId":77}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", time.Second)
	got, err := c.FetchProfiles(context.Background(), []int64{1, 2, 3})
	req.NoError(err)
	req.Equal([]int64{1, 2, 3}, gotBody.UserIDs)
	req.Equal("Bearer secret", gotAuth)

	req.Len(got, 2)
	req.Equal("Alice", got[1].DisplayName)
	req.Equal("img-1", got[1].AvatarRef)
	req.Equal("bob", got[2].DisplayName)
	req.Equal("bob@example.com", got[2].Contact)
	req.Equal("77", got[2].AvatarRef)
	req.NotContains(got, int64(3))
}

func TestClient_FetchProfiles_EmptyIDsSkipsNetwork(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, "", time.Second).FetchProfiles(context.Background(), nil)
	req.NoError(err)
	req.Empty(got)
}

func TestClient_FetchProfiles_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-success status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"malformed payload": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data": [`))
		},
		"timeout": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, err := NewClient(srv.URL, "", 50*time.Millisecond).FetchProfiles(context.Background(), []int64{1})
			req.ErrorIs(err, apperr.ErrUpstreamUnavailable)
		})
	}
}

func TestClient_FetchProfiles_NotConfigured(t *testing.T) {
	_, err := NewClient("", "", 0).FetchProfiles(context.Background(), []int64{1})
	require.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}
