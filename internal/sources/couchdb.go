package sources

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	kivik "github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

func runCouchDB(ctx context.Context, env *Env, profiles map[string]config.CouchDBProfile) {
	for _, name := range profileNames(profiles) {
		p := profiles[name]
		if err := scanCouchDB(ctx, env, name, p); err != nil {
			env.fail(models.SourceCouchDB, name, err)
		}
	}
}

func scanCouchDB(ctx context.Context, env *Env, profile string, p config.CouchDBProfile) error {
	if p.Host == "" || p.Username == "" || p.Password == "" || p.Database == "" {
		return fmt.Errorf("host, username, password and database are required")
	}
	host := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	dsn := url.URL{Scheme: "http", User: url.UserPassword(p.Username, p.Password), Host: host, Path: "/"}

	client, err := kivik.New("couch", dsn.String())
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	env.Defer(func() { client.Close() })
	return scanCouchDatabase(ctx, env, client, profile, host, p.Database)
}

// scanCouchDatabase submits one task per document of name. Design
// documents are skipped.
func scanCouchDatabase(ctx context.Context, env *Env, client *kivik.Client, profile, host, name string) error {
	ok, err := client.DBExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if !ok {
		return fmt.Errorf("database %s not found on the server", name)
	}
	env.Log.WithField("profile", profile).WithField("database", name).Info("Connected to CouchDB database")

	rows := client.DB(name).AllDocs(ctx, kivik.Param("include_docs", true))
	defer rows.Close()
	for rows.Next() {
		id, err := rows.ID()
		if err != nil {
			return err
		}
		if strings.HasPrefix(id, "_design/") {
			continue
		}
		var doc map[string]any
		if err := rows.ScanDoc(&doc); err != nil {
			env.Log.WithError(err).WithField("document", id).Error("Failed to read document")
			continue
		}
		if !env.Pool.Submit(ctx, func(context.Context) []models.Finding {
			return documentFindings(env.Scanner, models.SourceCouchDB, profile, doc, func(f *models.Finding, field string) {
				f.Host = host
				f.Database = name
				f.DocumentID = id
				f.Field = field
			})
		}) {
			return nil
		}
	}
	return rows.Err()
}
