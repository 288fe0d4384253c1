package sources

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

func runPostgres(ctx context.Context, env *Env, profiles map[string]config.PostgresProfile) {
	for _, name := range profileNames(profiles) {
		p := profiles[name]
		if err := scanPostgres(ctx, env, name, p); err != nil {
			env.fail(models.SourcePostgreSQL, name, err)
		}
	}
}

func scanPostgres(ctx context.Context, env *Env, profile string, p config.PostgresProfile) error {
	if p.Host == "" || p.User == "" || p.Database == "" {
		return fmt.Errorf("host, user and database are required")
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "prefer"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, sslmode)

	db, err := openDB(ctx, env, postgres.Open(dsn))
	if err != nil {
		return err
	}

	var all []string
	err = db.WithContext(ctx).
		Raw("SELECT table_name FROM information_schema.tables WHERE table_schema = 'public'").
		Scan(&all).Error
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	submitTables(ctx, env, db, tableSet{
		source:  models.SourcePostgreSQL,
		profile: profile,
		host:    fmt.Sprintf("%s:%d", p.Host, p.Port),
		dbName:  p.Database,
		start:   p.LimitStart,
		end:     p.LimitEnd,
		allowed: p.Tables,
	}, all)
	return nil
}
