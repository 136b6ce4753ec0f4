package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// User represents a registered bank customer as stored in the bank document
type User struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"-"` // Plain text, never returned to callers
	Balance  decimal.Decimal `json:"balance"`
}

// Profile returns the password-free view of the user
func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, Balance: u.Balance}
}

// Profile is the view of a user handed out by the ledger
type Profile struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
}

// Transaction represents one transfer between two users
type Transaction struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"` // YYYY-MM-DD, UTC
}

// Involves reports whether email is the sender or the receiver, ignoring case
func (t Transaction) Involves(email string) bool {
	return strings.EqualFold(t.From, email) || strings.EqualFold(t.To, email)
}

// Session is the cached projection of the logged-in user kept next to the bank document
type Session struct {
	ID      int64           `json:"id,string"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
}

// SessionFor builds a session from a profile
func SessionFor(p Profile) Session {
	return Session{ID: p.ID, Name: p.Name, Email: p.Email, Balance: p.Balance}
}

// TransferResult confirms a completed transfer
type TransferResult struct {
	Reference     string          `json:"reference"`
	SenderEmail   string          `json:"senderEmail"`
	SenderBalance decimal.Decimal `json:"senderBalance"`
	ReceiverEmail string          `json:"receiverEmail"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
}
