package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/digimosa/hawk-scan/internal/severity"
)

// ConfigError is a fatal problem with the connection file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("connection config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Connection mirrors connection.yml.
type Connection struct {
	Notify  Notify  `yaml:"notify"`
	Options Options `yaml:"options"`
	Sources Sources `yaml:"sources"`
}

type Notify struct {
	Redacted           bool             `yaml:"redacted"`
	SuppressDuplicates bool             `yaml:"suppress_duplicates"`
	Slack              *Slack           `yaml:"slack"`
	Jira               *Jira            `yaml:"jira"`
	SeverityRules      severity.Entries `yaml:"severity_rules"`
}

type Slack struct {
	WebhookURL string `yaml:"webhook_url"`
}

type Jira struct {
	ServerURL     string   `yaml:"server_url"`
	Username      string   `yaml:"username"`
	APIToken      string   `yaml:"api_token"`
	Project       string   `yaml:"project"`
	IssueType     string   `yaml:"issue_type"`
	Labels        []string `yaml:"labels"`
	Assignee      string   `yaml:"assignee"`
	AssigneeEmail string   `yaml:"assignee_email"`
}

type Options struct {
	QuickExit  bool `yaml:"quick_exit"`
	MaxMatches int  `yaml:"max_matches"`
}

// Sources maps each source kind to its named profiles.
type Sources struct {
	FS         map[string]FSProfile       `yaml:"fs"`
	Text       map[string]TextProfile     `yaml:"text"`
	S3         map[string]S3Profile       `yaml:"s3"`
	GCS        map[string]BucketProfile   `yaml:"gcs"`
	Firebase   map[string]BucketProfile   `yaml:"firebase"`
	PostgreSQL map[string]PostgresProfile `yaml:"postgresql"`
	MySQL      map[string]MySQLProfile    `yaml:"mysql"`
	MongoDB    map[string]MongoDBProfile  `yaml:"mongodb"`
	CouchDB    map[string]CouchDBProfile  `yaml:"couchdb"`
	Redis      map[string]RedisProfile    `yaml:"redis"`
	Slack      map[string]SlackProfile    `yaml:"slack"`
	GDrive     map[string]DriveProfile    `yaml:"gdrive"`
	Workspace  map[string]DriveProfile    `yaml:"gdrive_workspace"`
}

// Kinds lists the configured source kinds in a fixed order.
func (s Sources) Kinds() []string {
	var kinds []string
	add := func(kind string, n int) {
		if n > 0 {
			kinds = append(kinds, kind)
		}
	}
	add("fs", len(s.FS))
	add("text", len(s.Text))
	add("s3", len(s.S3))
	add("gcs", len(s.GCS))
	add("firebase", len(s.Firebase))
	add("postgresql", len(s.PostgreSQL))
	add("mysql", len(s.MySQL))
	add("mongodb", len(s.MongoDB))
	add("couchdb", len(s.CouchDB))
	add("redis", len(s.Redis))
	add("slack", len(s.Slack))
	add("gdrive", len(s.GDrive))
	add("gdrive_workspace", len(s.Workspace))
	return kinds
}

// Exclusions is shared by every source that enumerates named items.
type Exclusions struct {
	ExcludePatterns   []string `yaml:"exclude_patterns"`
	ExcludeExtensions []string `yaml:"exclude_extensions"`
}

type FSProfile struct {
	Path       string `yaml:"path"`
	Exclusions `yaml:",inline"`
}

type TextProfile struct {
	Text string `yaml:"text"`
}

type S3Profile struct {
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	BucketName string `yaml:"bucket_name"`
	Region     string `yaml:"region"`
	// Endpoint overrides the S3 endpoint for compatible stores.
	Endpoint   string `yaml:"endpoint"`
	Cache      bool   `yaml:"cache"`
	Exclusions `yaml:",inline"`
}

type BucketProfile struct {
	BucketName      string `yaml:"bucket_name"`
	CredentialsFile string `yaml:"credentials_file"`
	Cache           bool   `yaml:"cache"`
	Exclusions      `yaml:",inline"`
}

type PostgresProfile struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	User       string   `yaml:"user"`
	Password   string   `yaml:"password"`
	Database   string   `yaml:"database"`
	SSLMode    string   `yaml:"sslmode"`
	LimitStart int      `yaml:"limit_start"`
	LimitEnd   int      `yaml:"limit_end"`
	Tables     []string `yaml:"tables"`
}

type MySQLProfile struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	User       string   `yaml:"user"`
	Password   string   `yaml:"password"`
	Database   string   `yaml:"database"`
	LimitStart int      `yaml:"limit_start"`
	LimitEnd   int      `yaml:"limit_end"`
	Tables     []string `yaml:"tables"`
}

// MongoDBProfile connects through URI when set, otherwise through host
// and credentials.
type MongoDBProfile struct {
	URI         string   `yaml:"uri"`
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	Database    string   `yaml:"database"`
	LimitStart  int      `yaml:"limit_start"`
	LimitEnd    int      `yaml:"limit_end"`
	Collections []string `yaml:"collections"`
}

type CouchDBProfile struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RedisProfile struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Match is the SCAN pattern selecting keys.
	Match string `yaml:"match"`
}

// DriveProfile serves gdrive and gdrive_workspace. FolderName limits a
// gdrive scan to one top-level folder; ImpersonateUsers makes a workspace
// scan walk the drive of every listed user.
type DriveProfile struct {
	CredentialsFile  string   `yaml:"credentials_file"`
	FolderName       string   `yaml:"folder_name"`
	ImpersonateUsers []string `yaml:"impersonate_users"`
	Cache            bool     `yaml:"cache"`
	Exclusions       `yaml:",inline"`
}

type SlackProfile struct {
	Token        string   `yaml:"token"`
	ChannelTypes string   `yaml:"channel_types"`
	ChannelNames []string `yaml:"channel_names"`
}

// LoadConnection reads the connection file. A missing or malformed file
// is a *ConfigError.
func LoadConnection(path string) (*Connection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	conn, err := ParseConnection(data)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return conn, nil
}

// ParseConnection decodes a connection document and applies defaults.
func ParseConnection(data []byte) (*Connection, error) {
	var conn Connection
	if err := yaml.Unmarshal(data, &conn); err != nil {
		return nil, err
	}
	if conn.Options.MaxMatches <= 0 {
		conn.Options.MaxMatches = 1
	}
	for name, p := range conn.Sources.PostgreSQL {
		defaultPort(&p.Port, 5432)
		if err := window("postgresql", name, p.LimitStart, &p.LimitEnd); err != nil {
			return nil, err
		}
		conn.Sources.PostgreSQL[name] = p
	}
	for name, p := range conn.Sources.MySQL {
		defaultPort(&p.Port, 3306)
		if err := window("mysql", name, p.LimitStart, &p.LimitEnd); err != nil {
			return nil, err
		}
		conn.Sources.MySQL[name] = p
	}
	for name, p := range conn.Sources.MongoDB {
		defaultPort(&p.Port, 27017)
		if err := window("mongodb", name, p.LimitStart, &p.LimitEnd); err != nil {
			return nil, err
		}
		conn.Sources.MongoDB[name] = p
	}
	for name, p := range conn.Sources.CouchDB {
		defaultPort(&p.Port, 5984)
		conn.Sources.CouchDB[name] = p
	}
	for name, p := range conn.Sources.Redis {
		defaultPort(&p.Port, 6379)
		if p.Match == "" {
			p.Match = "*"
		}
		conn.Sources.Redis[name] = p
	}
	for name, p := range conn.Sources.Slack {
		if p.ChannelTypes == "" {
			p.ChannelTypes = "public_channel,private_channel"
		}
		conn.Sources.Slack[name] = p
	}
	return &conn, nil
}

func defaultPort(port *int, def int) {
	if *port == 0 {
		*port = def
	}
}

// window defaults the end of a row window to 500 and rejects empty windows.
func window(kind, profile string, start int, end *int) error {
	if *end <= 0 {
		*end = 500
	}
	if start < 0 || start >= *end {
		return fmt.Errorf("%s profile %s: limit_start %d must be below limit_end %d", kind, profile, start, *end)
	}
	return nil
}
