package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ClaimAck claims the right to acknowledge transactionID. It returns true
// for exactly one caller per id, ever; later callers get false.
func (s *Store) ClaimAck(ctx context.Context, transactionID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO acks (transaction_id, seq)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM acks))
		ON CONFLICT(transaction_id) DO NOTHING
	`, transactionID)
	if err != nil {
		return false, fmt.Errorf("claim ack %s: %w", transactionID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim ack %s: rows affected: %w", transactionID, err)
	}
	return n == 1, nil
}

// IsAcked reports whether transactionID has been claimed.
func (s *Store) IsAcked(ctx context.Context, transactionID string) (bool, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		"SELECT seq FROM acks WHERE transaction_id = ?", transactionID,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is acked %s: %w", transactionID, err)
	}
	return true, nil
}
