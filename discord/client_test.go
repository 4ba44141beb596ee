package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/four20hq/clanhub/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.DiscordConfig{
		APIBase:        srv.URL,
		BotToken:       "bot-token",
		GuildID:        "g-1",
		RequestTimeout: 2 * time.Second,
	}, zap.NewNop())
}

func TestGuildMembers_Pagination(t *testing.T) {
	// first page full (1000), second page short
	page := func(start, n int) []GuildMember {
		out := make([]GuildMember, n)
		for i := range out {
			out[i] = GuildMember{User: User{ID: fmt.Sprintf("%d", start+i)}}
		}
		return out
	}

	var afters []string
	mux := http.NewServeMux()
	mux.HandleFunc("/guilds/g-1/members", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))
		after := r.URL.Query().Get("after")
		afters = append(afters, after)
		if after == "" {
			json.NewEncoder(w).Encode(page(0, 1000))
			return
		}
		json.NewEncoder(w).Encode(page(1000, 3))
	})

	c := testClient(t, mux)
	members, err := c.GuildMembers(context.Background())
	require.NoError(t, err)
	assert.Len(t, members, 1003)
	assert.Equal(t, []string{"", "999"}, afters)
}

func TestGuildMember_NotFoundIsNil(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/guilds/g-1/members/d-1", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(GuildMember{User: User{ID: "d-1", Username: "alice"}})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	c := testClient(t, mux)
	m, err := c.GuildMember(context.Background(), "d-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "alice", m.User.Username)

	gone, err := c.GuildMember(context.Background(), "d-2")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestAddMemberRole(t *testing.T) {
	var method, path string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.AddMemberRole(context.Background(), "d-1", "r-1"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/guilds/g-1/members/d-1/roles/r-1", path)
}

func TestRemoveMemberRole_NotFoundTolerated(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	assert.NoError(t, c.RemoveMemberRole(context.Background(), "d-1", "r-1"))
}

func TestPostMessage(t *testing.T) {
	var body map[string]string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	}))

	require.NoError(t, c.PostMessage(context.Background(), "chan-1", "hello"))
	assert.Equal(t, "hello", body["content"])
}

func TestDo_ErrorIncludesStatus(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Missing Permissions"}`))
	}))
	err := c.AddMemberRole(context.Background(), "d-1", "r-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Missing Permissions")
}

func TestExchangeCodeAndMe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "the-code", r.Form.Get("code"))
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "access-1", TokenType: "Bearer"})
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(User{ID: "d-1", Username: "alice"})
	})

	c := testClient(t, mux)
	tok, err := c.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)

	u, err := c.Me(context.Background(), tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "d-1", u.ID)
}

func TestDisplayName(t *testing.T) {
	m := GuildMember{User: User{Username: "alice", GlobalName: "Alice G"}, Nick: "Ally"}
	assert.Equal(t, "Ally", m.DisplayName())
	m.Nick = ""
	assert.Equal(t, "Alice G", m.DisplayName())
	m.User.GlobalName = ""
	assert.Equal(t, "alice", m.DisplayName())
}
