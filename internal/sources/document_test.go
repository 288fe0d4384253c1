package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	kivik "github.com/go-kivik/kivik/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

func TestDocumentFindings_TopLevelFields(t *testing.T) {
	doc := map[string]any{
		"name":    "Ann",
		"email":   "ann@corp.com",
		"contact": map[string]any{"backup": "bob@corp.com"},
		"empty":   nil,
	}
	out := documentFindings(newTestScanner(t), models.SourceMongoDB, "docs", doc, func(f *models.Finding, field string) {
		f.Collection = "users"
		f.Field = field
	})

	require.Len(t, out, 2)
	assert.Equal(t, "contact", out[0].Field)
	assert.Equal(t, []string{"bob@corp.com"}, out[0].Matches)
	assert.Equal(t, "email", out[1].Field)
	assert.Equal(t, models.SourceMongoDB, out[1].DataSource)
	assert.Equal(t, "users", out[1].Collection)
}

func TestFieldText(t *testing.T) {
	assert.Equal(t, "", fieldText(nil))
	assert.Equal(t, "raw", fieldText([]byte("raw")))
	assert.Equal(t, `["a@b.com",1]`, fieldText([]any{"a@b.com", 1}))
	assert.Equal(t, "7", fieldText(7))
}

func TestMongoURI(t *testing.T) {
	_, err := mongoURI(config.MongoDBProfile{URI: "mongodb://h"})
	assert.ErrorContains(t, err, "database is required")

	uri, err := mongoURI(config.MongoDBProfile{URI: "mongodb://h:1", Database: "d"})
	require.NoError(t, err)
	assert.Equal(t, "mongodb://h:1", uri)

	uri, err = mongoURI(config.MongoDBProfile{Host: "db", Port: 27017, Username: "u", Password: "p w", Database: "d"})
	require.NoError(t, err)
	assert.Equal(t, "mongodb://u:p%20w@db:27017", uri)
	assert.Equal(t, "db", mongoHost(config.MongoDBProfile{Host: "db"}, uri))
	assert.Equal(t, "h:1", mongoHost(config.MongoDBProfile{}, "mongodb://h:1"))

	_, err = mongoURI(config.MongoDBProfile{Host: "db", Database: "d"})
	assert.Error(t, err)
}

func TestScanCouchDatabase(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/shop", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"db_name":"shop"}`))
	})
	mux.HandleFunc("/shop/_all_docs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("include_docs"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"total_rows": 3,
			"offset":     0,
			"rows": []map[string]any{
				{"id": "_design/app", "key": "_design/app", "value": map[string]any{"rev": "1-a"}, "doc": map[string]any{"_id": "_design/app", "note": "x@y.com"}},
				{"id": "o1", "key": "o1", "value": map[string]any{"rev": "1-b"}, "doc": map[string]any{"_id": "o1", "buyer": "ann@corp.com"}},
				{"id": "o2", "key": "o2", "value": map[string]any{"rev": "1-c"}, "doc": map[string]any{"_id": "o2", "buyer": "anonymous"}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := kivik.New("couch", srv.URL+"/")
	require.NoError(t, err)
	defer client.Close()

	pool := &inlinePool{}
	require.NoError(t, scanCouchDatabase(context.Background(), newEnv(t, pool), client, "couch", "couch:5984", "shop"))

	assert.Equal(t, 2, pool.ran)
	require.Len(t, pool.findings, 1)
	f := pool.findings[0]
	assert.Equal(t, models.SourceCouchDB, f.DataSource)
	assert.Equal(t, "couch:5984 > shop > o1.buyer", f.Location())
}

func TestScanCouchDatabase_Missing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client, err := kivik.New("couch", srv.URL+"/")
	require.NoError(t, err)
	defer client.Close()

	err = scanCouchDatabase(context.Background(), newEnv(t, &inlinePool{}), client, "couch", "h", "shop")
	assert.ErrorContains(t, err, "database shop not found")
}
