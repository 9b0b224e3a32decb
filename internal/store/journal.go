package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/entitle/internal/model"
)

// AppendJournal records tx. Identical content for the same transaction id is
// silently ignored; a changed delivery (a refund, say) is appended.
func (s *Store) AppendJournal(ctx context.Context, tx model.Transaction) error {
	body, err := model.MarshalCanonical(tx.Canonical())
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	digest := model.HashWithDomain(model.DomainTransaction, body)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal (transaction_id, product_id, digest, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(transaction_id, digest) DO NOTHING
	`,
		tx.ID,
		tx.ProductID,
		digest,
		string(body),
	)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// ReadJournal returns every journaled delivery in append order.
func (s *Store) ReadJournal(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM journal
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("read journal: scan: %w", err)
		}
		tx, err := unmarshalTransaction(body)
		if err != nil {
			return nil, fmt.Errorf("read journal: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return out, nil
}

// JournalLen returns the number of journal rows.
func (s *Store) JournalLen(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM journal").Scan(&n); err != nil {
		return 0, fmt.Errorf("journal length: %w", err)
	}
	return n, nil
}

// journalRecord mirrors model.Transaction.Canonical.
type journalRecord struct {
	ID                  string       `json:"id"`
	OriginalID          string       `json:"original_id"`
	ProductID           string       `json:"product_id"`
	SubscriptionGroupID string       `json:"subscription_group_id"`
	ProductType         string       `json:"product_type"`
	PurchaseDate        int64        `json:"purchase_date"`
	ExpirationDate      *int64       `json:"expiration_date"`
	RevocationDate      *int64       `json:"revocation_date"`
	IsUpgraded          bool         `json:"is_upgraded"`
	Offer               *model.Offer `json:"offer"`
	Environment         string       `json:"environment"`
	OwnershipType       string       `json:"ownership_type"`
}

func unmarshalTransaction(body string) (model.Transaction, error) {
	var rec journalRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return model.Transaction{}, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return model.Transaction{
		ID:                  rec.ID,
		OriginalID:          rec.OriginalID,
		ProductID:           rec.ProductID,
		SubscriptionGroupID: rec.SubscriptionGroupID,
		ProductType:         model.ProductType(rec.ProductType),
		PurchaseDate:        time.UnixMilli(rec.PurchaseDate).UTC(),
		ExpirationDate:      millisPtr(rec.ExpirationDate),
		RevocationDate:      millisPtr(rec.RevocationDate),
		IsUpgraded:          rec.IsUpgraded,
		Offer:               rec.Offer,
		Environment:         model.Environment(rec.Environment),
		OwnershipType:       model.OwnershipType(rec.OwnershipType),
	}, nil
}

func millisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
