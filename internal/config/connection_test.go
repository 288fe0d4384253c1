package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
notify:
  redacted: true
  suppress_duplicates: true
  slack:
    webhook_url: https://hooks.slack.com/services/T/B/X
  severity_rules:
    Critical:
      - query: length(matches) > 50
        description: Very many matches
    Low:
      - query: length(matches) > 0
        description: Any match
options:
  quick_exit: true
sources:
  fs:
    home:
      path: /home
      exclude_patterns: [.git, node_modules]
      exclude_extensions: [.png]
  text:
    inline:
      text: "contact a@b.com"
  postgresql:
    db1:
      host: localhost
      user: scanner
      database: app
  s3:
    logs:
      bucket_name: company-logs
      region: eu-west-1
      cache: true
`

func TestParseConnection(t *testing.T) {
	conn, err := ParseConnection([]byte(sample))
	require.NoError(t, err)

	assert.True(t, conn.Notify.Redacted)
	assert.True(t, conn.Notify.SuppressDuplicates)
	require.NotNil(t, conn.Notify.Slack)
	assert.Nil(t, conn.Notify.Jira)

	require.Len(t, conn.Notify.SeverityRules, 2)
	assert.Equal(t, "Critical", conn.Notify.SeverityRules[0].Label)
	assert.Equal(t, "Low", conn.Notify.SeverityRules[1].Label)

	assert.True(t, conn.Options.QuickExit)
	assert.Equal(t, 1, conn.Options.MaxMatches)

	fs := conn.Sources.FS["home"]
	assert.Equal(t, "/home", fs.Path)
	assert.Equal(t, []string{".git", "node_modules"}, fs.ExcludePatterns)
	assert.Equal(t, []string{".png"}, fs.ExcludeExtensions)

	pg := conn.Sources.PostgreSQL["db1"]
	assert.Equal(t, 5432, pg.Port)
	assert.Equal(t, 0, pg.LimitStart)
	assert.Equal(t, 500, pg.LimitEnd)

	assert.True(t, conn.Sources.S3["logs"].Cache)
	assert.Equal(t, []string{"fs", "text", "s3", "postgresql"}, conn.Sources.Kinds())
}

func TestParseConnection_BadWindow(t *testing.T) {
	_, err := ParseConnection([]byte(`
sources:
  postgresql:
    db:
      limit_start: 600
      limit_end: 500
`))
	assert.Error(t, err)
}

func TestParseConnection_DatabaseDefaults(t *testing.T) {
	conn, err := ParseConnection([]byte(`
sources:
  mysql:
    shop:
      host: db
      user: root
      database: shop
  mongodb:
    docs:
      uri: mongodb://localhost
      database: docs
      limit_start: 10
  couchdb:
    couch:
      host: couch
  redis:
    cache:
      host: cache
  gdrive_workspace:
    corp:
      credentials_file: sa.json
      impersonate_users: [ann@corp.com]
`))
	require.NoError(t, err)

	my := conn.Sources.MySQL["shop"]
	assert.Equal(t, 3306, my.Port)
	assert.Equal(t, 500, my.LimitEnd)

	mongo := conn.Sources.MongoDB["docs"]
	assert.Equal(t, 27017, mongo.Port)
	assert.Equal(t, 10, mongo.LimitStart)
	assert.Equal(t, 500, mongo.LimitEnd)

	assert.Equal(t, 5984, conn.Sources.CouchDB["couch"].Port)
	assert.Equal(t, 6379, conn.Sources.Redis["cache"].Port)
	assert.Equal(t, "*", conn.Sources.Redis["cache"].Match)
	assert.Equal(t, []string{"ann@corp.com"}, conn.Sources.Workspace["corp"].ImpersonateUsers)

	assert.Equal(t, []string{"mysql", "mongodb", "couchdb", "redis", "gdrive_workspace"}, conn.Sources.Kinds())
}

func TestParseConnection_BadMongoWindow(t *testing.T) {
	_, err := ParseConnection([]byte(`
sources:
  mongodb:
    docs:
      limit_start: -1
`))
	assert.ErrorContains(t, err, "mongodb profile docs")
}

func TestLoadConnection_Missing(t *testing.T) {
	_, err := LoadConnection(filepath.Join(t.TempDir(), "connection.yml"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConnection_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connection.yml")
	require.NoError(t, os.WriteFile(path, []byte("notify: [unclosed"), 0644))

	_, err := LoadConnection(path)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "connection.yml", cfg.ConnectionPath)
	assert.Equal(t, 3, cfg.Extractor.MaxArchiveDepth)
	assert.Greater(t, cfg.Workers, 0)
}
