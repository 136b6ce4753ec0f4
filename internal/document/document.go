// Package document holds the bank document: the typed form of the XML text kept in local storage,
// and the codec that converts between the two.
package document

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rongwang/xmlbank/internal/models"
)

// Demo user written into a fresh store.
const (
	SeedUserID       int64 = 1000
	SeedUserName           = "Kitteneshwar ji"
	SeedUserEmail          = "kitteneshwar@example.com"
	SeedUserPassword       = "1234"
	SeedUserBalance        = "50000"
)

// Document is the whole bank state: users in registration order and transactions in the order
// they happened.
type Document struct {
	Users        []models.User
	Transactions []models.Transaction
}

// Seed returns the document a store starts with.
func Seed() *Document {
	return &Document{
		Users: []models.User{{
			ID:       SeedUserID,
			Name:     SeedUserName,
			Email:    SeedUserEmail,
			Password: SeedUserPassword,
			Balance:  decimal.RequireFromString(SeedUserBalance),
		}},
		Transactions: []models.Transaction{},
	}
}

// UserByEmail returns the user registered under email, compared case-insensitively.
// The pointer aliases the document so balance updates land in place.
func (d *Document) UserByEmail(email string) *models.User {
	email = strings.TrimSpace(email)
	for i := range d.Users {
		if strings.EqualFold(d.Users[i].Email, email) {
			return &d.Users[i]
		}
	}
	return nil
}

// UserByID returns the user with the given id.
func (d *Document) UserByID(id int64) *models.User {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return &d.Users[i]
		}
	}
	return nil
}

// MaxUserID returns the largest id in use, or 0 for an empty document.
func (d *Document) MaxUserID() int64 {
	var max int64
	for _, u := range d.Users {
		if u.ID > max {
			max = u.ID
		}
	}
	return max
}

// TotalBalance sums every user's balance.
func (d *Document) TotalBalance() decimal.Decimal {
	total := decimal.Zero
	for _, u := range d.Users {
		total = total.Add(u.Balance)
	}
	return total
}

// TransactionsFor returns the transactions email took part in, oldest first.
func (d *Document) TransactionsFor(email string) []models.Transaction {
	out := []models.Transaction{}
	for _, tx := range d.Transactions {
		if tx.Involves(email) {
			out = append(out, tx)
		}
	}
	return out
}

// RecentFor returns at most n of the transactions email took part in, newest first.
func (d *Document) RecentFor(email string, n int) []models.Transaction {
	out := []models.Transaction{}
	if n <= 0 {
		return out
	}
	for i := len(d.Transactions) - 1; i >= 0 && len(out) < n; i-- {
		tx := d.Transactions[i]
		if tx.Involves(email) {
			out = append(out, tx)
		}
	}
	return out
}
