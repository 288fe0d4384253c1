package sources

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/digimosa/hawk-scan/internal/models"
)

// openDB connects through dialector and closes the pool from env.Close.
func openDB(ctx context.Context, env *Env, dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	env.Defer(func() { sqlDB.Close() })
	return db, nil
}

// tableSet is one database whose tables are scanned over the same window.
type tableSet struct {
	source  string
	profile string
	host    string
	dbName  string
	start   int
	end     int
	allowed []string
}

// submitTables submits one task per selected table of all.
func submitTables(ctx context.Context, env *Env, db *gorm.DB, set tableSet, all []string) {
	log := env.Log.WithField("source", set.source).WithField("profile", set.profile)
	for _, table := range selectTables(all, set.allowed, func(missing string) {
		log.WithField("table", missing).Error("Table not found in the database, skipping")
	}) {
		t := tableScan{
			db:      db,
			source:  set.source,
			table:   table,
			start:   set.start,
			end:     set.end,
			profile: set.profile,
			host:    set.host,
			dbName:  set.dbName,
		}
		if !env.Pool.Submit(ctx, func(ctx context.Context) []models.Finding {
			out, err := t.run(ctx, env.Scanner)
			if err != nil {
				log.WithError(err).WithField("table", t.table).Error("Table scan failed")
			}
			return out
		}) {
			return
		}
	}
}

// selectTables keeps the allowed tables that exist, or every table when
// no allow list is given.
func selectTables(all, allowed []string, missing func(string)) []string {
	if len(allowed) == 0 {
		return all
	}
	exists := make(map[string]bool, len(all))
	for _, t := range all {
		exists[t] = true
	}
	var out []string
	for _, t := range allowed {
		if !exists[t] {
			missing(t)
			continue
		}
		out = append(out, t)
	}
	return out
}

// tableScan matches every non-empty cell of rows [start, end) of one table.
type tableScan struct {
	db      *gorm.DB
	source  string
	table   string
	start   int
	end     int
	profile string
	host    string
	dbName  string
}

func (t tableScan) run(ctx context.Context, sc Scanner) ([]models.Finding, error) {
	rows, err := t.db.WithContext(ctx).
		Table(t.table).
		Limit(t.end - t.start).
		Offset(t.start).
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []models.Finding
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return out, err
		}
		for i, v := range values {
			text := cellText(v)
			if text == "" {
				continue
			}
			column := cols[i]
			out = append(out, findings(sc.ScanText(text, t.source), t.profile, func(f *models.Finding) {
				f.Host = t.host
				f.Database = t.dbName
				f.Table = t.table
				f.Column = column
			})...)
		}
	}
	return out, rows.Err()
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
