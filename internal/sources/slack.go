package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

const slackMaxRetries = 3

func runSlack(ctx context.Context, env *Env, profiles map[string]config.SlackProfile) {
	for _, name := range profileNames(profiles) {
		p := profiles[name]
		if p.Token == "" {
			env.fail(models.SourceSlack, name, fmt.Errorf("token is required"))
			continue
		}
		c := newSlackClient(p.Token, "", nil)
		if err := scanSlack(ctx, env, c, name, p); err != nil {
			env.fail(models.SourceSlack, name, err)
		}
	}
}

// scanSlack submits one task per message of every selected channel.
func scanSlack(ctx context.Context, env *Env, c *slackClient, profile string, p config.SlackProfile) error {
	workspace, err := c.workspace(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	channels, err := c.channels(ctx, p.ChannelTypes)
	if err != nil {
		return err
	}
	if len(p.ChannelNames) > 0 {
		wanted := make(map[string]bool, len(p.ChannelNames))
		for _, n := range p.ChannelNames {
			wanted[n] = true
		}
		kept := channels[:0]
		for _, ch := range channels {
			if wanted[ch.Name] {
				kept = append(kept, ch)
			}
		}
		channels = kept
	}

	log := env.Log.WithField("profile", profile)
	log.WithField("channels", len(channels)).Info("Checking Slack channels")
	for _, ch := range channels {
		ch := ch
		err := c.history(ctx, ch.ID, func(m slack.Message) bool {
			if m.Text == "" {
				return true
			}
			return env.Pool.Submit(ctx, func(context.Context) []models.Finding {
				recs := env.Scanner.ScanText(m.Text, models.SourceSlack)
				return findings(recs, profile, func(f *models.Finding) {
					f.ChannelID = ch.ID
					f.ChannelName = ch.Name
					f.User = m.User
					f.MessageLink = Permalink(workspace, ch.ID, m.Timestamp)
				})
			})
		})
		if err != nil {
			log.WithError(err).WithField("channel", ch.Name).Error("Failed to fetch messages")
		}
	}
	return nil
}

// Permalink builds the web link of a message.
func Permalink(workspace, channelID, ts string) string {
	return workspace + "/archives/" + channelID + "/p" + strings.ReplaceAll(ts, ".", "")
}

// slackClient wraps the Web API client with client-side throttling and
// Retry-After handling.
type slackClient struct {
	api     *slack.Client
	limiter *rate.Limiter
}

// newSlackClient talks to base when set (tests) through client when set.
func newSlackClient(token, base string, client *http.Client) *slackClient {
	var opts []slack.Option
	if base != "" {
		opts = append(opts, slack.OptionAPIURL(base))
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	opts = append(opts, slack.OptionHTTPClient(client))
	return &slackClient{
		api: slack.New(token, opts...),
		// Web API tier 3 allows about 50 calls per minute
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// workspace authenticates and returns the workspace URL without its
// trailing slash.
func (c *slackClient) workspace(ctx context.Context) (string, error) {
	var auth *slack.AuthTestResponse
	err := c.call(ctx, func() (err error) {
		auth, err = c.api.AuthTestContext(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(auth.URL, "/"), nil
}

func (c *slackClient) channels(ctx context.Context, types string) ([]slack.Channel, error) {
	var kinds []string
	for _, t := range strings.Split(types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			kinds = append(kinds, t)
		}
	}

	var all []slack.Channel
	cursor := ""
	for {
		params := &slack.GetConversationsParameters{Types: kinds, Limit: 200, Cursor: cursor}
		var page []slack.Channel
		err := c.call(ctx, func() (err error) {
			page, cursor, err = c.api.GetConversationsContext(ctx, params)
			return err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if cursor == "" {
			return all, nil
		}
	}
}

func (c *slackClient) history(ctx context.Context, channelID string, fn func(slack.Message) bool) error {
	cursor := ""
	for {
		params := &slack.GetConversationHistoryParameters{ChannelID: channelID, Limit: 200, Cursor: cursor}
		var resp *slack.GetConversationHistoryResponse
		err := c.call(ctx, func() (err error) {
			resp, err = c.api.GetConversationHistoryContext(ctx, params)
			return err
		})
		if err != nil {
			return err
		}
		for _, m := range resp.Messages {
			if !fn(m) {
				return nil
			}
		}
		cursor = resp.ResponseMetaData.NextCursor
		if !resp.HasMore || cursor == "" {
			return nil
		}
	}
}

// call runs one Web API request under the limiter, waiting out rate limits
// up to slackMaxRetries times.
func (c *slackClient) call(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		err := rateLimited(fn())
		var rl *RateLimitError
		if !errors.As(err, &rl) || attempt >= slackMaxRetries {
			return err
		}
		select {
		case <-time.After(rl.RetryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func rateLimited(err error) error {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return &RateLimitError{RetryAfter: rl.RetryAfter}
	}
	return err
}
