package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/digimosa/hawk-scan/internal/config"
)

func slackServer(t *testing.T, throttled *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/auth.test", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, []string{r.Header.Get("Authorization"), "Bearer " + r.FormValue("token")}, "Bearer xoxb-test")
		reply(w, map[string]any{"ok": true, "url": "https://acme.slack.com/", "team": "Acme", "user_id": "U0"})
	})
	mux.HandleFunc("/conversations.list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "public_channel", r.FormValue("types"))
		reply(w, map[string]any{"ok": true, "channels": []map[string]string{
			{"id": "C1", "name": "general"},
			{"id": "C2", "name": "random"},
		}})
	})
	mux.HandleFunc("/conversations.history", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(throttled, -1) >= 0 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if r.FormValue("channel") != "C1" {
			reply(w, map[string]any{"ok": true, "messages": []any{}})
			return
		}
		if r.FormValue("cursor") == "" {
			reply(w, map[string]any{
				"ok":                true,
				"has_more":          true,
				"messages":          []map[string]string{{"user": "U1", "text": "mail me at a@b.com", "ts": "1700000000.000100"}},
				"response_metadata": map[string]string{"next_cursor": "page2"},
			})
			return
		}
		reply(w, map[string]any{"ok": true, "messages": []map[string]string{
			{"user": "U2", "text": "", "ts": "1700000001.000200"},
			{"user": "U3", "text": "no secrets", "ts": "1700000002.000300"},
		}})
	})
	return httptest.NewServer(mux)
}

func TestScanSlack(t *testing.T) {
	throttled := int32(1)
	srv := slackServer(t, &throttled)
	defer srv.Close()

	c := newSlackClient("xoxb-test", srv.URL+"/", srv.Client())
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	pool := &inlinePool{}

	err := scanSlack(context.Background(), newEnv(t, pool), c, "acme", config.SlackProfile{
		Token:        "xoxb-test",
		ChannelTypes: "public_channel",
		ChannelNames: []string{"general"},
	})
	require.NoError(t, err)

	require.Len(t, pool.findings, 1)
	f := pool.findings[0]
	assert.Equal(t, "general", f.ChannelName)
	assert.Equal(t, "C1", f.ChannelID)
	assert.Equal(t, "U1", f.User)
	assert.Equal(t, "https://acme.slack.com/archives/C1/p1700000000000100", f.MessageLink)
	assert.Equal(t, []string{"a@b.com"}, f.Matches)
}

func TestSlackClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "invalid_auth"})
	}))
	defer srv.Close()

	c := newSlackClient("bad", srv.URL+"/", srv.Client())
	err := scanSlack(context.Background(), newEnv(t, &inlinePool{}), c, "acme", config.SlackProfile{Token: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_auth")
}

func TestSlackClient_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newSlackClient("t", srv.URL+"/", srv.Client())
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	_, err := c.workspace(context.Background())

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.EqualValues(t, slackMaxRetries+1, atomic.LoadInt32(&calls))
}

func TestRateLimited_MapsSDKError(t *testing.T) {
	err := rateLimited(&slack.RateLimitedError{RetryAfter: 2 * time.Second})
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 2*time.Second, rl.RetryAfter)

	plain := errors.New("channel_not_found")
	assert.Equal(t, plain, rateLimited(plain))
}

func TestPermalink(t *testing.T) {
	assert.Equal(t, "https://x.slack.com/archives/C9/p123456", Permalink("https://x.slack.com", "C9", "123.456"))
}
