package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rongwang/xmlbank/internal/models"
)

// Transfer moves amount from sender to receiver and records the transaction.
//
// Preconditions are checked in order: receiver address, amount, self transfer, receiver
// registered, sender registered, sender funds. All of them are evaluated before the snapshot is
// touched, and the debit, the credit and the new entry go out in a single commit.
func (s *Store) Transfer(ctx context.Context, senderEmail, receiverEmail string, amount decimal.Decimal) (*models.TransferResult, error) {
	senderEmail = NormalizeEmail(senderEmail)
	receiverEmail = NormalizeEmail(receiverEmail)

	if !ValidEmail(receiverEmail) {
		return nil, ErrInvalidRecipientEmail
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !ValidMoney(amount) {
		return nil, ErrAmountOutOfRange
	}
	if senderEmail == receiverEmail {
		return nil, ErrSelfTransfer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	receiver := snap.UserByEmail(receiverEmail)
	if receiver == nil {
		return nil, ErrRecipientNotFound
	}
	sender := snap.UserByEmail(senderEmail)
	if sender == nil {
		return nil, ErrSenderNotFound
	}
	if sender.Balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	total := snap.TotalBalance()
	sender.Balance = sender.Balance.Sub(amount)
	receiver.Balance = receiver.Balance.Add(amount)
	tx := models.Transaction{
		From:   senderEmail,
		To:     receiverEmail,
		Amount: amount,
		Date:   s.today(),
	}
	snap.Transactions = append(snap.Transactions, tx)

	// money is only moved, never created
	if after := snap.TotalBalance(); !after.Equal(total) {
		return nil, fmt.Errorf("transfer would change total balance from %s to %s", total, after)
	}

	if err := s.commit(ctx, snap); err != nil {
		return nil, err
	}

	result := &models.TransferResult{
		Reference:     uuid.NewString(),
		SenderEmail:   senderEmail,
		SenderBalance: sender.Balance,
		ReceiverEmail: receiverEmail,
		Amount:        amount,
		Date:          tx.Date,
	}
	s.log.Info("transfer %s: %s -> %s amount %s", result.Reference, senderEmail, receiverEmail, amount)
	return result, nil
}
