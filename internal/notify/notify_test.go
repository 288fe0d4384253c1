package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/logging"
	"github.com/digimosa/hawk-scan/internal/models"
	"github.com/digimosa/hawk-scan/internal/suppress"
)

func slackFinding(link string) models.Finding {
	return models.Finding{
		MatchRecord: models.MatchRecord{PatternName: "email", Matches: []string{"a@b.com"}, DataSource: models.SourceSlack},
		Profile:     "workspace",
		ChannelName: "general",
		MessageLink: link,
	}
}

func TestExposedValues(t *testing.T) {
	values := make([]string, 30)
	for i := range values {
		values[i] = fmt.Sprintf("v%d", i)
	}

	assert.Equal(t, "v0, v1", models.ExposedValues(values[:2]))
	assert.False(t, strings.Contains(models.ExposedValues(values[:25]), "more"))
	out := models.ExposedValues(values)
	assert.True(t, strings.HasSuffix(out, "v24 + 5 more"))
}

func TestFormatMessage(t *testing.T) {
	pg := models.Finding{
		MatchRecord: models.MatchRecord{PatternName: "iban", Matches: []string{"x", "y"}, DataSource: models.SourcePostgreSQL},
		Profile:     "prod",
		Host:        "db.local",
		Database:    "app",
		Table:       "users",
		Column:      "notes",
	}
	msg := FormatMessage(pg)
	assert.Equal(t, Title+"\n"+
		"Data Source: PostgreSQL - prod\n"+
		"Host: db.local\nDatabase: app\nTable: users\nColumn: notes\n"+
		"Pattern Name: iban\nTotal Exposed: 2\nExposed Values: x, y\n", msg.Text())
	require.NotNil(t, msg.Finding)
	assert.Equal(t, "users", msg.Finding.Table)

	slack := FormatMessage(slackFinding("https://x.slack.com/archives/C1/p123"))
	assert.Contains(t, slack.Text(), "Message Link: https://x.slack.com/archives/C1/p123")
	assert.NotContains(t, slack.Stable(), "Message Link")
}

func TestSlack_RejectsForeignURL(t *testing.T) {
	_, err := NewSlack("https://example.com/hook", nil)
	assert.Error(t, err)
	_, err = NewSlack("https://hooks.slack.com/services/T/B/X", nil)
	assert.NoError(t, err)
}

func TestSlack_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &Slack{url: srv.URL, client: srv.Client()}
	require.NoError(t, s.Send(context.Background(), FormatMessage(slackFinding("link"))))
	assert.Contains(t, got["text"], "Pattern Name: email")
}

func TestSlack_SendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := &Slack{url: srv.URL, client: srv.Client()}
	err := s.Send(context.Background(), FormatMessage(slackFinding("link")))
	var nerr *NotifyError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, http.StatusBadRequest, nerr.Status)
}

type memIdentities struct {
	mu  sync.Mutex
	ids map[string]string
}

func (m *memIdentities) LookupIdentity(email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[email], nil
}

func (m *memIdentities) SaveIdentity(email, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[email] = id
	return nil
}

type issueBody struct {
	Fields struct {
		Project struct {
			Key string `json:"key"`
		} `json:"project"`
		Summary   string `json:"summary"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Labels   []string `json:"labels"`
		Assignee *struct {
			AccountID string `json:"accountId"`
		} `json:"assignee"`
	} `json:"fields"`
}

func TestJira_CreatesIssueWithCachedAssignee(t *testing.T) {
	var searches int
	var issues []issueBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@corp.com", user)
		assert.Equal(t, "token", pass)

		switch r.URL.Path {
		case "/rest/api/2/user/search":
			searches++
			q := r.URL.Query()
			assert.Contains(t, []string{q.Get("query"), q.Get("username")}, "sec@corp.com")
			json.NewEncoder(w).Encode([]map[string]string{{"accountId": "acc-42"}})
		case "/rest/api/2/issue":
			var issue issueBody
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&issue))
			issues = append(issues, issue)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "10001", "key": "SEC-1"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ids := &memIdentities{ids: map[string]string{}}
	j, err := NewJira(config.Jira{
		ServerURL:     srv.URL + "/",
		Username:      "bot@corp.com",
		APIToken:      "token",
		Project:       "SEC",
		Labels:        []string{"hawk"},
		AssigneeEmail: "sec@corp.com",
	}, ids, srv.Client(), logging.Discard())
	require.NoError(t, err)

	msg := FormatMessage(models.Finding{
		MatchRecord: models.MatchRecord{PatternName: "email", Matches: []string{"a@b.com"}, DataSource: models.SourceFS},
		Profile:     "home",
		FilePath:    "/srv/a.txt",
	})
	require.NoError(t, j.Send(context.Background(), msg))
	require.NoError(t, j.Send(context.Background(), msg))

	assert.Equal(t, 1, searches)
	assert.Equal(t, "acc-42", ids.ids["sec@corp.com"])
	require.Len(t, issues, 2)
	assert.Equal(t, "SEC", issues[0].Fields.Project.Key)
	assert.Equal(t, "Task", issues[0].Fields.IssueType.Name)
	assert.Equal(t, "email found in /srv/a.txt (home)", issues[0].Fields.Summary)
	require.NotNil(t, issues[0].Fields.Assignee)
	assert.Equal(t, "acc-42", issues[0].Fields.Assignee.AccountID)
}

func TestJira_RejectedIssueIsNotifyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"errorMessages": []string{"project is required"}})
	}))
	defer srv.Close()

	j, err := NewJira(config.Jira{ServerURL: srv.URL, Project: "SEC"}, nil, srv.Client(), logging.Discard())
	require.NoError(t, err)

	err = j.Send(context.Background(), FormatMessage(slackFinding("l")))
	var ne *NotifyError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "jira", ne.Channel)
	assert.Equal(t, http.StatusBadRequest, ne.Status)
}

type recorder struct {
	mu   sync.Mutex
	name string
	msgs []models.Message
	err  error
}

func (r *recorder) Name() string {
	if r.name == "" {
		return "recorder"
	}
	return r.name
}

func (r *recorder) Send(_ context.Context, msg models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

type memHashes map[string]bool

func (m memHashes) HasAlertHash(h string) (bool, error) { return m[h], nil }
func (m memHashes) SaveAlertHash(h string) error        { m[h] = true; return nil }

func TestDispatcher_SuppressesPermalinkOnlyDuplicates(t *testing.T) {
	findings := []models.Finding{
		slackFinding("https://x.slack.com/archives/C1/p1"),
		slackFinding("https://x.slack.com/archives/C1/p2"),
	}

	rec := &recorder{}
	d := NewDispatcher(suppress.New(true, memHashes{}), logging.Discard(), rec)
	assert.Equal(t, 1, d.Dispatch(context.Background(), findings))
	assert.Len(t, rec.msgs, 1)

	rec = &recorder{}
	d = NewDispatcher(suppress.New(false, memHashes{}), logging.Discard(), rec)
	assert.Equal(t, 2, d.Dispatch(context.Background(), findings))
	assert.Len(t, rec.msgs, 2)
}

func TestDispatcher_RetriesOnlyTheFailedChannel(t *testing.T) {
	hashes := memHashes{}
	slack := &recorder{name: "slack"}
	jira := &recorder{name: "jira", err: errors.New("jira down")}
	findings := []models.Finding{slackFinding("https://x.slack.com/archives/C1/p1")}

	d := NewDispatcher(suppress.New(true, hashes), logging.Discard(), slack, jira)
	assert.Equal(t, 1, d.Dispatch(context.Background(), findings))

	jira.err = nil
	assert.Equal(t, 1, d.Dispatch(context.Background(), findings))
	assert.Len(t, slack.msgs, 1)
	assert.Len(t, jira.msgs, 1)

	assert.Equal(t, 0, d.Dispatch(context.Background(), findings))
}

func TestDispatcher_FailuresAreNotFatal(t *testing.T) {
	rec := &recorder{err: errors.New("down")}
	d := NewDispatcher(nil, logging.Discard(), rec)
	assert.Equal(t, 0, d.Dispatch(context.Background(), []models.Finding{slackFinding("l")}))
}

func TestDispatcher_NoNotifiers(t *testing.T) {
	d := NewDispatcher(nil, logging.Discard())
	assert.False(t, d.Enabled())
	assert.Equal(t, 0, d.Dispatch(context.Background(), []models.Finding{slackFinding("l")}))
}
