package storage

import (
	"errors"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/digimosa/hawk-scan/internal/models"
)

// AlertModel is a notification that has already been delivered.
type AlertModel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MessageHash string    `gorm:"uniqueIndex;size:64" json:"msg_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// IdentityModel caches an external account lookup (e.g. Jira account ID by email).
type IdentityModel struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Email      string    `gorm:"uniqueIndex" json:"email"`
	ResolvedID string    `json:"resolved_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type ScanModel struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	RunID         string         `gorm:"uniqueIndex" json:"run_id"`
	Sources       string         `json:"sources"`
	Status        string         `json:"status"` // "Running", "Completed", "Failed"
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
	Duration      time.Duration  `json:"duration"`
	TotalFindings int64          `json:"total_findings"`
	Findings      []FindingModel `gorm:"foreignKey:ScanID" json:"findings"`
}

type FindingModel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ScanID      uint      `json:"scan_id"`
	DataSource  string    `json:"data_source"`
	Profile     string    `json:"profile"`
	Location    string    `json:"location"`
	PatternName string    `json:"pattern_name"`
	Matches     int       `json:"matches"`
	SampleText  string    `json:"sample_text"` // redacted when redaction is on
	Severity    string    `json:"severity"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the local state shared by a run: delivered alert hashes, the
// identity cache and scan history.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&AlertModel{}, &IdentityModel{}, &ScanModel{}, &FindingModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) HasAlertHash(hash string) (bool, error) {
	var count int64
	err := s.db.Model(&AlertModel{}).Where("message_hash = ?", hash).Count(&count).Error
	return count > 0, err
}

// SaveAlertHash records hash once; saving a known hash is a no-op.
func (s *Store) SaveAlertHash(hash string) error {
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&AlertModel{MessageHash: hash, CreatedAt: time.Now()}).Error
}

// LookupIdentity returns the cached ID for email, "" when unknown.
func (s *Store) LookupIdentity(email string) (string, error) {
	var m IdentityModel
	err := s.db.Where("email = ?", email).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return m.ResolvedID, err
}

func (s *Store) SaveIdentity(email, resolvedID string) error {
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&IdentityModel{Email: email, ResolvedID: resolvedID, CreatedAt: time.Now()}).Error
}

func (s *Store) CreateScan(runID string, sources []string) (*ScanModel, error) {
	scan := &ScanModel{
		RunID:     runID,
		Sources:   strings.Join(sources, ","),
		Status:    "Running",
		StartTime: time.Now(),
	}
	res := s.db.Create(scan)
	return scan, res.Error
}

func (s *Store) CompleteScan(scan *ScanModel, status string, totalFindings int64) error {
	scan.EndTime = time.Now()
	scan.Duration = scan.EndTime.Sub(scan.StartTime)
	scan.Status = status
	scan.TotalFindings = totalFindings
	return s.db.Model(scan).Select("EndTime", "Duration", "Status", "TotalFindings").Updates(scan).Error
}

func (s *Store) SaveFindings(scanID uint, findings []models.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	rows := make([]FindingModel, 0, len(findings))
	now := time.Now()
	for _, f := range findings {
		rows = append(rows, FindingModel{
			ScanID:      scanID,
			DataSource:  f.DataSource,
			Profile:     f.Profile,
			Location:    f.Location(),
			PatternName: f.PatternName,
			Matches:     len(f.Matches),
			SampleText:  f.SampleText,
			Severity:    f.Severity,
			CreatedAt:   now,
		})
	}
	return s.db.CreateInBatches(rows, 100).Error
}

func (s *Store) GetAllScans() ([]ScanModel, error) {
	var scans []ScanModel
	err := s.db.Order("start_time desc").Find(&scans).Error
	return scans, err
}

func (s *Store) GetScanByRunID(runID string) (*ScanModel, error) {
	var scan ScanModel
	err := s.db.Preload("Findings").First(&scan, "run_id = ?", runID).Error
	return &scan, err
}
