package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rongwang/xmlbank/internal/ledger"
	"github.com/rongwang/xmlbank/internal/models"
	"github.com/rongwang/xmlbank/internal/repository"
	"github.com/rongwang/xmlbank/internal/utils"
)

// DefaultSessionKey is the storage key of the logged-in user's session
const DefaultSessionKey = "currentUser"

// ErrNotLoggedIn is returned by operations that need a session when none is stored
var ErrNotLoggedIn = errors.New("not logged in")

// Service defines all the operations behind the front end
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Logout(ctx context.Context) error
	CurrentSession(ctx context.Context) (*models.Session, error)

	// Banking
	Dashboard(ctx context.Context) (*models.DashboardResponse, error)
	Transfer(ctx context.Context, req models.TransferRequest) (*models.TransferResponse, error)
	Summary(ctx context.Context) (*models.SummaryResponse, error)
	Users(ctx context.Context) (*models.UsersResponse, error)
}

// DefaultService implements the Service interface on a ledger store. The session lives in the
// same repository as the bank document, under its own key.
type DefaultService struct {
	store       *ledger.Store
	repo        repository.Repository
	sessionKey  string
	recentLimit int
	log         *utils.Logger
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(store *ledger.Store, repo repository.Repository, sessionKey string, recentLimit int, log *utils.Logger) Service {
	if sessionKey == "" {
		sessionKey = DefaultSessionKey
	}
	if log == nil {
		log = utils.Discard()
	}
	return &DefaultService{
		store:       store,
		repo:        repo,
		sessionKey:  sessionKey,
		recentLimit: recentLimit,
		log:         log,
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// An opening balance that is not a number can never reach the minimum
	balance, err := decimal.NewFromString(req.Balance)
	if err != nil {
		balance = decimal.NewFromInt(-1)
	}

	profile, err := s.store.Register(ctx, req.Name, req.Email, req.Password, balance)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Status:  "success",
		Message: "Registration successful. Please log in.",
		User:    profile,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	profile, err := s.store.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	if err := s.saveSession(ctx, models.SessionFor(*profile)); err != nil {
		return nil, err
	}
	s.log.Info("user %d <%s> logged in", profile.ID, profile.Email)

	return &models.AuthResponse{
		Status:  "success",
		Message: "Welcome, " + profile.Name,
		User:    profile,
	}, nil
}

func (s *DefaultService) Logout(ctx context.Context) error {
	if err := s.repo.Delete(ctx, s.sessionKey); err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

func (s *DefaultService) CurrentSession(ctx context.Context) (*models.Session, error) {
	raw, found, err := s.repo.Get(ctx, s.sessionKey)
	if err != nil {
		return nil, fmt.Errorf("error reading session: %w", err)
	}
	if !found {
		return nil, ErrNotLoggedIn
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		// A damaged session is dropped, the user just logs in again
		s.log.Warn("discarding unreadable session: %v", err)
		if err := s.Logout(ctx); err != nil {
			return nil, err
		}
		return nil, ErrNotLoggedIn
	}
	return &session, nil
}

// Banking methods
func (s *DefaultService) Dashboard(ctx context.Context) (*models.DashboardResponse, error) {
	session, err := s.refreshSession(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.store.RecentFor(ctx, session.Email, s.recentLimit)
	if err != nil {
		return nil, err
	}

	return &models.DashboardResponse{
		Status: "success",
		User:   *session,
		Recent: recent,
	}, nil
}

func (s *DefaultService) Transfer(ctx context.Context, req models.TransferRequest) (*models.TransferResponse, error) {
	session, err := s.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}

	// Unparsable amounts fail the positive-amount check in the ledger
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		amount = decimal.Zero
	}

	result, err := s.store.Transfer(ctx, session.Email, req.ReceiverEmail, amount)
	if err != nil {
		return nil, err
	}

	session.Balance = result.SenderBalance
	if err := s.saveSession(ctx, *session); err != nil {
		return nil, err
	}

	return &models.TransferResponse{
		Status:         "success",
		TransferResult: *result,
	}, nil
}

func (s *DefaultService) Summary(ctx context.Context) (*models.SummaryResponse, error) {
	session, err := s.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}

	txs, err := s.store.TransactionsFor(ctx, session.Email)
	if err != nil {
		return nil, err
	}

	return &models.SummaryResponse{
		Status:       "success",
		Email:        session.Email,
		Transactions: txs,
	}, nil
}

func (s *DefaultService) Users(ctx context.Context) (*models.UsersResponse, error) {
	users, err := s.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	return &models.UsersResponse{Status: "success", Users: users}, nil
}

// Helper methods

// refreshSession reloads the session owner from the bank document so the cached balance never
// drifts. A session whose user is gone is dropped.
func (s *DefaultService) refreshSession(ctx context.Context) (*models.Session, error) {
	session, err := s.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.store.FindByEmail(ctx, session.Email)
	if errors.Is(err, ledger.ErrNotFound) {
		s.log.Warn("session user <%s> no longer exists", session.Email)
		if err := s.Logout(ctx); err != nil {
			return nil, err
		}
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, err
	}

	fresh := models.SessionFor(*profile)
	if !sameSession(fresh, *session) {
		if err := s.saveSession(ctx, fresh); err != nil {
			return nil, err
		}
	}
	return &fresh, nil
}

func sameSession(a, b models.Session) bool {
	return a.ID == b.ID && a.Name == b.Name && a.Email == b.Email && a.Balance.Equal(b.Balance)
}

func (s *DefaultService) saveSession(ctx context.Context, session models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("error encoding session: %w", err)
	}
	if err := s.repo.Put(ctx, s.sessionKey, string(raw)); err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}
