package storage

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digimosa/hawk-scan/internal/models"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "hawk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAlertHashes(t *testing.T) {
	s := openTest(t)

	ok, err := s.HasAlertHash("abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveAlertHash("abc"))
	require.NoError(t, s.SaveAlertHash("abc"))

	ok, err = s.HasAlertHash("abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAlertHashesPersistAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hawk.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveAlertHash("deadbeef"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	ok, err := s.HasAlertHash("deadbeef")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdentityCache(t *testing.T) {
	s := openTest(t)

	id, err := s.LookupIdentity("a@b.com")
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, s.SaveIdentity("a@b.com", "acc-1"))
	id, err = s.LookupIdentity("a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id)
}

func TestScanHistory(t *testing.T) {
	s := openTest(t)
	runID := uuid.NewString()

	scan, err := s.CreateScan(runID, []string{"fs", "text"})
	require.NoError(t, err)
	assert.Equal(t, "Running", scan.Status)

	findings := []models.Finding{
		{MatchRecord: models.MatchRecord{PatternName: "email", Matches: []string{"a@b.com"}, DataSource: models.SourceFS}, Profile: "local", FilePath: "/x.txt", Severity: "Low"},
		{MatchRecord: models.MatchRecord{PatternName: "iban", Matches: []string{"x", "y"}, DataSource: models.SourceText}, Profile: "inline"},
	}
	require.NoError(t, s.SaveFindings(scan.ID, findings))
	require.NoError(t, s.CompleteScan(scan, "Completed", int64(len(findings))))

	got, err := s.GetScanByRunID(runID)
	require.NoError(t, err)
	assert.Equal(t, "Completed", got.Status)
	assert.Equal(t, "fs,text", got.Sources)
	assert.EqualValues(t, 2, got.TotalFindings)
	require.Len(t, got.Findings, 2)
	assert.Equal(t, "/x.txt", got.Findings[0].Location)

	all, err := s.GetAllScans()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
