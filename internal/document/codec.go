package document

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/rongwang/xmlbank/internal/models"
)

// Wire shape of the stored text. Every field is an element holding text.
type xmlBank struct {
	XMLName      xml.Name        `xml:"bank"`
	Users        xmlUsers        `xml:"users"`
	Transactions xmlTransactions `xml:"transactions"`
}

type xmlUsers struct {
	User []xmlUser `xml:"user"`
}

type xmlUser struct {
	ID       string `xml:"id"`
	Name     string `xml:"name"`
	Email    string `xml:"email"`
	Password string `xml:"password"`
	Balance  string `xml:"balance"`
}

type xmlTransactions struct {
	Transaction []xmlTransaction `xml:"transaction"`
}

type xmlTransaction struct {
	From   string `xml:"from"`
	To     string `xml:"to"`
	Amount string `xml:"amount"`
	Date   string `xml:"date"`
}

// Parse decodes stored text into a Document. Any structural or value error is returned; callers
// decide whether that is fatal.
func Parse(raw string) (*Document, error) {
	var b xmlBank
	if err := xml.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("decode bank xml: %w", err)
	}

	doc := &Document{
		Users:        make([]models.User, 0, len(b.Users.User)),
		Transactions: make([]models.Transaction, 0, len(b.Transactions.Transaction)),
	}

	for i, u := range b.Users.User {
		id, err := strconv.ParseInt(strings.TrimSpace(u.ID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("user %d: invalid id %q: %w", i, u.ID, err)
		}
		balance, err := decimal.NewFromString(strings.TrimSpace(u.Balance))
		if err != nil {
			return nil, fmt.Errorf("user %d: invalid balance %q: %w", i, u.Balance, err)
		}
		doc.Users = append(doc.Users, models.User{
			ID:       id,
			Name:     u.Name,
			Email:    u.Email,
			Password: u.Password,
			Balance:  balance,
		})
	}

	for i, t := range b.Transactions.Transaction {
		amount, err := decimal.NewFromString(strings.TrimSpace(t.Amount))
		if err != nil {
			return nil, fmt.Errorf("transaction %d: invalid amount %q: %w", i, t.Amount, err)
		}
		doc.Transactions = append(doc.Transactions, models.Transaction{
			From:   t.From,
			To:     t.To,
			Amount: amount,
			Date:   strings.TrimSpace(t.Date),
		})
	}

	return doc, nil
}

// Serialize encodes the whole document back to text.
func Serialize(doc *Document) (string, error) {
	b := xmlBank{
		Users: xmlUsers{User: make([]xmlUser, 0, len(doc.Users))},
		Transactions: xmlTransactions{
			Transaction: make([]xmlTransaction, 0, len(doc.Transactions)),
		},
	}
	for i, u := range doc.Users {
		for _, f := range [...]struct{ name, text string }{
			{"name", u.Name}, {"email", u.Email}, {"password", u.Password},
		} {
			if err := checkText(f.text); err != nil {
				return "", fmt.Errorf("user %d: %s: %w", i, f.name, err)
			}
		}
		b.Users.User = append(b.Users.User, xmlUser{
			ID:       strconv.FormatInt(u.ID, 10),
			Name:     u.Name,
			Email:    u.Email,
			Password: u.Password,
			Balance:  u.Balance.String(),
		})
	}
	for i, t := range doc.Transactions {
		for _, text := range []string{t.From, t.To, t.Date} {
			if err := checkText(text); err != nil {
				return "", fmt.Errorf("transaction %d: %w", i, err)
			}
		}
		b.Transactions.Transaction = append(b.Transactions.Transaction, xmlTransaction{
			From:   t.From,
			To:     t.To,
			Amount: t.Amount.String(),
			Date:   t.Date,
		})
	}

	out, err := xml.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode bank xml: %w", err)
	}
	return string(out), nil
}

// checkText fails on text the encoder would silently replace: invalid UTF-8 or runes outside the
// XML Char production.
func checkText(s string) error {
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				return fmt.Errorf("invalid UTF-8 at byte %d", i)
			}
		}
		if !isXMLChar(r) {
			return fmt.Errorf("character %U at byte %d cannot be stored in XML", r, i)
		}
	}
	return nil
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
