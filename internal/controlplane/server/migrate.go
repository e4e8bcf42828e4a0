package server

import (
	"context"
	"fmt"
	"time"
)

func (s *Server) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS submissions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  intent TEXT NOT NULL,
  params_json TEXT NOT NULL,
  tx_hash TEXT,
  market_address TEXT,
  status TEXT NOT NULL, -- "pending" | "confirmed" | "failed"
  error TEXT,
  started_at TEXT NOT NULL,
  finished_at TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_started_at ON submissions(started_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
