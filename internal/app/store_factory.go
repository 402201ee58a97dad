package app

import (
	"fmt"

	"github.com/epitome/examportal/internal/store"
	"github.com/epitome/examportal/internal/store/postgres"
	"github.com/epitome/examportal/internal/store/sqlite"
)

func NewStore(cfg store.DBConfig) (store.ExamStore, error) {
	if cfg.Type == "" {
		cfg.Type = store.TypeForDSN(cfg.DSN)
	}

	switch cfg.Type {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(cfg.DSN, cfg.MigrationsDir)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(cfg.DSN, cfg.MigrationsDir)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", cfg.DSN)
	}
}
