package models

import (
	"fmt"
	"strings"
	"time"
)

// Data source tags carried by every match record.
const (
	SourceFS         = "fs"
	SourceText       = "text"
	SourceS3         = "s3"
	SourceGCS        = "gcs"
	SourceFirebase   = "firebase"
	SourcePostgreSQL = "postgresql"
	SourceMySQL      = "mysql"
	SourceMongoDB    = "mongodb"
	SourceCouchDB    = "couchdb"
	SourceRedis      = "redis"
	SourceSlack      = "slack"
	SourceGDrive     = "gdrive"
	SourceWorkspace  = "gdrive_workspace"
	SourceArchive    = "archive"
)

// MatchRecord holds every distinct hit of one fingerprint inside one payload.
type MatchRecord struct {
	PatternName string   `json:"pattern_name"`
	Matches     []string `json:"matches"`
	SampleText  string   `json:"sample_text"`
	DataSource  string   `json:"data_source"`
}

// FileData is the filesystem metadata attached to fs findings.
type FileData struct {
	Creator      string `json:"creator"`
	CreatedTime  string `json:"created_time"`
	ModifiedTime string `json:"modified_time"`
}

// Finding is a MatchRecord placed at a concrete location of a configured profile.
type Finding struct {
	MatchRecord

	Profile string `json:"profile"`

	Host        string    `json:"host,omitempty"`
	Bucket      string    `json:"bucket,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	Database    string    `json:"database,omitempty"`
	Table       string    `json:"table,omitempty"`
	Column      string    `json:"column,omitempty"`
	Collection  string    `json:"collection,omitempty"`
	DocumentID  string    `json:"document_id,omitempty"`
	Field       string    `json:"field,omitempty"`
	Key         string    `json:"key,omitempty"`
	ChannelID   string    `json:"channel_id,omitempty"`
	ChannelName string    `json:"channel_name,omitempty"`
	MessageLink string    `json:"message_link,omitempty"`
	User        string    `json:"user,omitempty"`
	FileData    *FileData `json:"file_data,omitempty"`

	Severity            string `json:"severity,omitempty"`
	SeverityDescription string `json:"severity_description,omitempty"`
}

// NewFinding copies a match record into a finding for the given profile.
func NewFinding(rec MatchRecord, profile string) Finding {
	return Finding{MatchRecord: rec, Profile: profile}
}

// Location renders the finding position the way the result tables show it.
func (f Finding) Location() string {
	switch f.DataSource {
	case SourceS3, SourceGCS, SourceFirebase, SourceGDrive, SourceWorkspace:
		return f.Bucket + " > " + f.FilePath
	case SourcePostgreSQL, SourceMySQL:
		return fmt.Sprintf("%s > %s > %s.%s", f.Host, f.Database, f.Table, f.Column)
	case SourceMongoDB:
		return fmt.Sprintf("%s > %s > %s.%s", f.Host, f.Database, f.Collection, f.Field)
	case SourceCouchDB:
		return fmt.Sprintf("%s > %s > %s.%s", f.Host, f.Database, f.DocumentID, f.Field)
	case SourceRedis:
		return f.Host + " > " + f.Key
	case SourceSlack:
		return f.ChannelName + " > " + f.MessageLink
	case SourceFS:
		return f.FilePath
	default:
		return ""
	}
}

// MessageField is one labelled line of an outbound notification.
// Volatile fields change between otherwise identical alerts (permalinks)
// and never take part in duplicate detection.
type MessageField struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Volatile bool   `json:"volatile,omitempty"`
}

// Message is a structured notification built from a finding.
type Message struct {
	Title   string         `json:"title"`
	Fields  []MessageField `json:"fields"`
	Finding *Finding       `json:"-"`
}

// Text renders the full message, volatile fields included.
func (m Message) Text() string {
	return m.render(true)
}

// Stable renders the message without volatile fields.
func (m Message) Stable() string {
	return m.render(false)
}

func (m Message) render(volatile bool) string {
	var sb strings.Builder
	sb.WriteString(m.Title)
	sb.WriteString("\n")
	for _, f := range m.Fields {
		if f.Volatile && !volatile {
			continue
		}
		sb.WriteString(f.Label)
		sb.WriteString(": ")
		sb.WriteString(f.Value)
		sb.WriteString("\n")
	}
	return sb.String()
}

// ScanSummary describes one finished run.
type ScanSummary struct {
	ID            string        `json:"id"`
	Sources       []string      `json:"sources"`
	TotalFindings int           `json:"total_findings"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
}

// MaxExposedValues caps the values listed in a message or table row.
const MaxExposedValues = 25

// ExposedValues lists up to MaxExposedValues matches and counts the rest.
func ExposedValues(matches []string) string {
	if len(matches) <= MaxExposedValues {
		return strings.Join(matches, ", ")
	}
	return strings.Join(matches[:MaxExposedValues], ", ") +
		fmt.Sprintf(" + %d more", len(matches)-MaxExposedValues)
}
