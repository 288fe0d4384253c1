package sources

import (
	"context"
	"fmt"
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

func runMySQL(ctx context.Context, env *Env, profiles map[string]config.MySQLProfile) {
	for _, name := range profileNames(profiles) {
		p := profiles[name]
		if err := scanMySQL(ctx, env, name, p); err != nil {
			env.fail(models.SourceMySQL, name, err)
		}
	}
}

func scanMySQL(ctx context.Context, env *Env, profile string, p config.MySQLProfile) error {
	if p.Host == "" || p.User == "" || p.Database == "" {
		return fmt.Errorf("host, user and database are required")
	}

	db, err := openDB(ctx, env, mysql.Open(mysqlDSN(p)))
	if err != nil {
		return err
	}

	var all []string
	if err := db.WithContext(ctx).Raw("SHOW TABLES").Scan(&all).Error; err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	submitTables(ctx, env, db, tableSet{
		source:  models.SourceMySQL,
		profile: profile,
		host:    p.Host,
		dbName:  p.Database,
		start:   p.LimitStart,
		end:     p.LimitEnd,
		allowed: p.Tables,
	}, all)
	return nil
}

func mysqlDSN(p config.MySQLProfile) string {
	c := gomysql.NewConfig()
	c.User = p.User
	c.Passwd = p.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	c.DBName = p.Database
	c.ParseTime = true
	return c.FormatDSN()
}
