package server

import (
	"context"
	"database/sql"

	"github.com/faciam-dev/formportal/internal/events"
	"github.com/faciam-dev/formportal/internal/logger"
)

// InitEvents loads the events configuration at path and installs the global
// dispatcher. Failed deliveries go to db, opened with driver, when it is not
// nil.
func InitEvents(ctx context.Context, path string, db *sql.DB, driver, tablePrefix string) error {
	cfg, err := events.LoadConfig(path)
	if err != nil {
		return err
	}
	var dlq events.DLQ
	if db != nil {
		q := &events.SQLDLQ{DB: db, Driver: driver, TablePrefix: tablePrefix}
		if err := q.Migrate(ctx); err != nil {
			logger.L.Error("migrate events table", "err", err)
		} else {
			dlq = q
		}
	}
	events.Default = events.Build(cfg, dlq)
	return nil
}
