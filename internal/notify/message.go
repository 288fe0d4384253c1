package notify

import (
	"strconv"

	"github.com/digimosa/hawk-scan/internal/models"
)

const Title = "*** PII Or Secret Found ***"

var sourceNames = map[string]string{
	models.SourceFS:         "File System",
	models.SourceText:       "Text",
	models.SourceS3:         "S3 Bucket",
	models.SourceGCS:        "GCS",
	models.SourceFirebase:   "Firebase",
	models.SourcePostgreSQL: "PostgreSQL",
	models.SourceMySQL:      "MySQL",
	models.SourceMongoDB:    "MongoDB",
	models.SourceCouchDB:    "CouchDB",
	models.SourceRedis:      "Redis",
	models.SourceSlack:      "Slack",
	models.SourceGDrive:     "Google Drive",
	models.SourceWorkspace:  "Google Drive Workspace",
}

// FormatMessage renders a finding with the location fields of its source.
// The Slack message link is volatile.
func FormatMessage(f models.Finding) models.Message {
	name, ok := sourceNames[f.DataSource]
	if !ok {
		name = f.DataSource
	}

	fields := []models.MessageField{{Label: "Data Source", Value: name + " - " + f.Profile}}
	add := func(label, value string) {
		fields = append(fields, models.MessageField{Label: label, Value: value})
	}

	switch f.DataSource {
	case models.SourceS3, models.SourceGCS, models.SourceFirebase:
		add("Bucket", f.Bucket)
		add("File Path", f.FilePath)
	case models.SourceGDrive:
		add("Drive", f.Bucket)
		add("File Path", f.FilePath)
	case models.SourceWorkspace:
		add("User", f.Bucket)
		add("File Path", f.FilePath)
	case models.SourcePostgreSQL, models.SourceMySQL:
		add("Host", f.Host)
		add("Database", f.Database)
		add("Table", f.Table)
		add("Column", f.Column)
	case models.SourceMongoDB:
		add("Host", f.Host)
		add("Database", f.Database)
		add("Collection", f.Collection)
		add("Field", f.Field)
	case models.SourceCouchDB:
		add("Host", f.Host)
		add("Database", f.Database)
		add("Document ID", f.DocumentID)
		add("Field", f.Field)
	case models.SourceRedis:
		add("Host", f.Host)
		add("Key", f.Key)
	case models.SourceSlack:
		add("Channel Name", f.ChannelName)
		fields = append(fields, models.MessageField{Label: "Message Link", Value: f.MessageLink, Volatile: true})
	case models.SourceFS:
		add("File Path", f.FilePath)
	}

	add("Pattern Name", f.PatternName)
	add("Total Exposed", strconv.Itoa(len(f.Matches)))
	add("Exposed Values", models.ExposedValues(f.Matches))
	if f.Severity != "" {
		add("Severity", f.Severity)
	}

	finding := f
	return models.Message{Title: Title, Fields: fields, Finding: &finding}
}
