package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

// IdentityStore caches email to account ID lookups across runs.
type IdentityStore interface {
	LookupIdentity(email string) (string, error)
	SaveIdentity(email, resolvedID string) error
}

// Jira opens one issue per message.
type Jira struct {
	cfg        config.Jira
	client     *jira.Client
	identities IdentityStore
	log        logrus.FieldLogger
}

// NewJira authenticates with basic auth (username + API token). client
// supplies the transport and timeout; nil uses the defaults.
func NewJira(cfg config.Jira, identities IdentityStore, client *http.Client, log logrus.FieldLogger) (*Jira, error) {
	if cfg.ServerURL == "" || cfg.Project == "" {
		return nil, fmt.Errorf("jira: server_url and project are required")
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if cfg.IssueType == "" {
		cfg.IssueType = "Task"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	tp := &jira.BasicAuthTransport{
		Username:  cfg.Username,
		Password:  cfg.APIToken,
		Transport: client.Transport,
	}
	jc, err := jira.NewClient(&http.Client{Transport: tp, Timeout: client.Timeout}, cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("jira: %w", err)
	}
	return &Jira{cfg: cfg, client: jc, identities: identities, log: log}, nil
}

func (j *Jira) Name() string { return "jira" }

func (j *Jira) Send(ctx context.Context, msg models.Message) error {
	issue := &jira.Issue{Fields: &jira.IssueFields{
		Project:     jira.Project{Key: j.cfg.Project},
		Summary:     summary(msg),
		Description: msg.Text(),
		Type:        jira.IssueType{Name: j.cfg.IssueType},
		Labels:      j.cfg.Labels,
	}}

	assignee, err := j.assignee(ctx)
	if err != nil {
		j.log.WithError(err).Warn("Could not resolve Jira assignee, creating unassigned issue")
	}
	if assignee != "" {
		issue.Fields.Assignee = &jira.User{AccountID: assignee}
	}

	created, resp, err := j.client.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		return j.fail(resp, err)
	}
	if created != nil && created.Key != "" {
		j.log.WithField("issue", created.Key).Info("Jira ticket created")
	}
	return nil
}

// assignee returns the configured account ID or resolves assignee_email
// through the identity cache and the user search API.
func (j *Jira) assignee(ctx context.Context) (string, error) {
	if j.cfg.Assignee != "" {
		return j.cfg.Assignee, nil
	}
	email := j.cfg.AssigneeEmail
	if email == "" {
		return "", nil
	}

	if j.identities != nil {
		if id, err := j.identities.LookupIdentity(email); err == nil && id != "" {
			return id, nil
		}
	}

	users, resp, err := j.client.User.FindWithContext(ctx, email)
	if err != nil {
		return "", j.fail(resp, err)
	}
	if len(users) == 0 || users[0].AccountID == "" {
		return "", fmt.Errorf("no jira user for %s", email)
	}

	id := users[0].AccountID
	if j.identities != nil {
		if err := j.identities.SaveIdentity(email, id); err != nil {
			j.log.WithError(err).Debug("Could not cache Jira identity")
		}
	}
	return id, nil
}

func (j *Jira) fail(resp *jira.Response, err error) error {
	ne := &NotifyError{Channel: j.Name(), Err: err}
	if resp != nil && resp.Response != nil {
		ne.Status = resp.StatusCode
	}
	return ne
}

func summary(msg models.Message) string {
	f := msg.Finding
	if f == nil {
		return msg.Title
	}
	where := f.Location()
	if where == "" {
		where = f.DataSource
	}
	return fmt.Sprintf("%s found in %s (%s)", f.PatternName, where, f.Profile)
}
