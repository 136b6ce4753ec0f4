package ledger

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/rongwang/xmlbank/internal/models"
)

const (
	MinNameLength     = 3
	MinPasswordLength = 4
)

// MinOpeningBalance is the smallest balance a new user may register with.
var MinOpeningBalance = decimal.NewFromInt(100)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email looks like local@domain.tld and is printable text
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email) && Printable(email)
}

// Printable reports whether s is valid UTF-8 made only of printable runes. Control characters
// cannot round-trip through the XML document.
func Printable(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// NormalizeEmail trims and lowercases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates the new user's details, rejects a taken email and persists the user before
// returning it. Checks run in a fixed order and the first failure wins.
func (s *Store) Register(ctx context.Context, name, email, password string, balance decimal.Decimal) (*models.Profile, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)

	if utf8.RuneCountInString(name) < MinNameLength || !Printable(name) {
		return nil, ErrInvalidName
	}
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	if !Printable(password) {
		return nil, ErrInvalidPassword
	}
	if !ValidMoney(balance) {
		return nil, ErrInvalidBalance
	}
	if balance.LessThan(MinOpeningBalance) {
		return nil, ErrBalanceTooLow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	if snap.UserByEmail(email) != nil {
		return nil, ErrDuplicateEmail
	}

	user := models.User{
		ID:       s.nextID(snap.Document),
		Name:     name,
		Email:    email,
		Password: password,
		Balance:  balance,
	}
	snap.Users = append(snap.Users, user)

	if err := s.commit(ctx, snap); err != nil {
		return nil, err
	}

	s.log.Info("registered user %d <%s>", user.ID, user.Email)
	p := user.Profile()
	return &p, nil
}

// Authenticate returns the user whose email and password both match. It never says which of the
// two was wrong.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.Profile, error) {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range snap.Users {
		if strings.ToLower(u.Email) == email && u.Password == password {
			p := u.Profile()
			return &p, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// FindByEmail looks a user up by email, ignoring case
func (s *Store) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	u := snap.UserByEmail(NormalizeEmail(email))
	if u == nil {
		return nil, ErrNotFound
	}
	p := u.Profile()
	return &p, nil
}

// FindByID looks a user up by numeric id
func (s *Store) FindByID(ctx context.Context, id int64) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	u := snap.UserByID(id)
	if u == nil {
		return nil, ErrNotFound
	}
	p := u.Profile()
	return &p, nil
}

// Users lists every user in registration order
func (s *Store) Users(ctx context.Context) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Profile, 0, len(snap.Users))
	for _, u := range snap.Users {
		out = append(out, u.Profile())
	}
	return out, nil
}
