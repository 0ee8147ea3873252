// Package history provides an append-only, GORM-backed audit log of
// task lifecycle transitions, implemented as a scheduler.Recorder.
package history

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rs/zerolog/log"
)

// Store wraps a GORM database holding the task execution history.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) a SQLite database at dsn and
// auto-migrates the history schema. A single daemon process is assumed
// throughout; there is no distributed-coordination driver to select
// between, unlike a multi-node monitoring deployment.
func Open(dsn string) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dsn+"?_journal_mode=WAL&_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("history: open %q: %w", dsn, err)
	}

	if err := db.AutoMigrate(&TaskExecution{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Record implements scheduler.Recorder. Write failures are logged, not
// returned: a history write must never be able to perturb scheduling.
func (s *Store) Record(taskID, schedulerName, state, maskname, pathname, srcPathname, detail string) {
	row := TaskExecution{
		TaskID:        taskID,
		SchedulerName: schedulerName,
		State:         state,
		MaskName:      maskname,
		Pathname:      pathname,
		SrcPathname:   srcPathname,
		Detail:        detail,
	}
	if err := s.db.Create(&row).Error; err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("history: failed to record task transition")
	}
}

// Recent returns the most recent n task executions, newest first. Used
// by the introspection API's /history endpoint.
func (s *Store) Recent(n int) ([]TaskExecution, error) {
	var rows []TaskExecution
	if err := s.db.Order("created_at desc, id desc").Limit(n).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	return rows, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return sqlDB.Close()
}
