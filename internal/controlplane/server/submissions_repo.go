package server

import (
	"context"
	"database/sql"
	"time"
)

type Submission struct {
	ID            int64      `json:"id"`
	Intent        string     `json:"intent"`
	ParamsJSON    string     `json:"params_json"`
	TxHash        *string    `json:"tx_hash,omitempty"`
	MarketAddress *string    `json:"market_address,omitempty"`
	Status        string     `json:"status"`
	Error         *string    `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func (s *Server) insertSubmissionStart(ctx context.Context, intent, paramsJSON string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO submissions (intent, params_json, status, started_at)
VALUES (?,?,?,?)
`, intent, paramsJSON, "pending", time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Server) finishSubmission(ctx context.Context, id int64, txHash, marketAddress, errMsg *string) error {
	status := "confirmed"
	if errMsg != nil {
		status = "failed"
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE submissions
SET tx_hash=?, market_address=?, status=?, error=?, finished_at=?
WHERE id=?
`, txHash, marketAddress, status, errMsg, time.Now().Format(time.RFC3339Nano), id)
	return err
}

func (s *Server) listSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, intent, params_json, tx_hash, market_address, status, error, started_at, finished_at
FROM submissions
ORDER BY started_at DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var (
			sub        Submission
			txHash     sql.NullString
			marketAddr sql.NullString
			errStr     sql.NullString
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&sub.ID, &sub.Intent, &sub.ParamsJSON, &txHash, &marketAddr, &sub.Status, &errStr, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		if txHash.Valid {
			v := txHash.String
			sub.TxHash = &v
		}
		if marketAddr.Valid {
			v := marketAddr.String
			sub.MarketAddress = &v
		}
		if errStr.Valid {
			v := errStr.String
			sub.Error = &v
		}
		sub.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if finishedAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
				sub.FinishedAt = &t
			}
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
