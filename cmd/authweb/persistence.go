package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"
	"time"

	auth "github.com/goliatone/go-auth-frontend"
	"github.com/goliatone/go-auth-frontend/provider/local"
	"github.com/goliatone/go-auth-frontend/sessionstore"
	"github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var registerModels sync.Once

// persistenceConfig feeds a sqlite DSN to go-persistence-bun.
type persistenceConfig struct {
	dsn   string
	debug bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return sqliteshim.ShimName }
func (c persistenceConfig) GetServer() string             { return c.dsn }
func (c persistenceConfig) GetDSN() string                { return c.dsn }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "authweb" }

// openPersistence opens dsn once and migrates it. The local provider and the
// sqlite session backend share a client when they point at the same file.
func openPersistence(ctx context.Context, app *App, dsn string) (*bun.DB, error) {
	if db, ok := app.dbs[dsn]; ok {
		return db, nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	sqldb.SetMaxOpenConns(1)
	app.onClose(sqldb.Close)

	registerModels.Do(func() {
		persistence.RegisterModel((*local.User)(nil))
		persistence.RegisterModel((*sessionstore.SessionModel)(nil))
	})

	client, err := persistence.New(persistenceConfig{dsn: dsn, debug: app.config.App.Debug}, sqldb, sqlitedialect.New())
	if err != nil {
		return nil, fmt.Errorf("persistence %s: %w", dsn, err)
	}

	migrationsFS, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("sqlite"),
	)
	if err := client.ValidateDialects(ctx); err != nil {
		return nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", dsn, err)
	}

	if report := client.Report(); report != nil && !report.IsZero() {
		app.GetLogger("persistence").Info("migrations: %s", report.String())
	}

	if app.dbs == nil {
		app.dbs = map[string]*bun.DB{}
	}
	app.dbs[dsn] = client.DB()
	return client.DB(), nil
}
