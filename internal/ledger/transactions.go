package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rongwang/xmlbank/internal/models"
)

// RecordTransfer appends a transaction between two registered users and commits it. It does not
// move any money; Transfer does that and records the entry in the same commit.
func (s *Store) RecordTransfer(ctx context.Context, from, to string, amount decimal.Decimal, date string) (*models.Transaction, error) {
	from = NormalizeEmail(from)
	to = NormalizeEmail(to)

	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !ValidMoney(amount) {
		return nil, ErrAmountOutOfRange
	}
	if from == to {
		return nil, ErrSelfTransfer
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, wrapError(CodeInvalidDate, ErrInvalidDate.Message, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	if snap.UserByEmail(to) == nil {
		return nil, ErrRecipientNotFound
	}
	if snap.UserByEmail(from) == nil {
		return nil, ErrSenderNotFound
	}

	tx := models.Transaction{From: from, To: to, Amount: amount, Date: date}
	snap.Transactions = append(snap.Transactions, tx)

	if err := s.commit(ctx, snap); err != nil {
		return nil, err
	}
	return &tx, nil
}

// TransactionsFor returns every transaction the user sent or received, oldest first
func (s *Store) TransactionsFor(ctx context.Context, email string) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	return snap.TransactionsFor(NormalizeEmail(email)), nil
}

// RecentFor returns the user's last n transactions, newest first
func (s *Store) RecentFor(ctx context.Context, email string, n int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	return snap.RecentFor(NormalizeEmail(email), n), nil
}
