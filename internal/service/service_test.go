package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rongwang/xmlbank/internal/document"
	"github.com/rongwang/xmlbank/internal/ledger"
	"github.com/rongwang/xmlbank/internal/models"
	"github.com/rongwang/xmlbank/internal/repository"
	"github.com/rongwang/xmlbank/internal/service"
)

func setup(t *testing.T) (service.Service, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	store := ledger.NewStore(repo, ledger.WithClock(func() time.Time {
		return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	}))
	return service.NewDefaultService(store, repo, "", 5, nil), repo
}

func signUp(t *testing.T, svc service.Service, name, email, password, balance string) {
	t.Helper()
	_, err := svc.SignUp(context.Background(), models.SignUpRequest{
		Name: name, Email: email, Password: password, Balance: balance,
	})
	require.NoError(t, err)
}

func login(t *testing.T, svc service.Service, email, password string) {
	t.Helper()
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: email, Password: password})
	require.NoError(t, err)
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	resp, err := svc.SignUp(ctx, models.SignUpRequest{
		Name: "Alice", Email: "alice@x.com", Password: "pass1", Balance: "500",
	})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "alice@x.com", resp.User.Email)

	// registering does not log in
	_, found, _ := repo.Get(ctx, service.DefaultSessionKey)
	assert.False(t, found)

	_, err = svc.SignUp(ctx, models.SignUpRequest{
		Name: "Bob", Email: "bob@x.com", Password: "pass2", Balance: "lots",
	})
	assert.ErrorIs(t, err, ledger.ErrBalanceTooLow)

	// a bad name still wins over a bad balance
	_, err = svc.SignUp(ctx, models.SignUpRequest{
		Name: "Bo", Email: "bob@x.com", Password: "pass2", Balance: "lots",
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidName)

	// exponent forms are refused before they are expanded into the document
	_, err = svc.SignUp(ctx, models.SignUpRequest{
		Name: "Bob", Email: "bob@x.com", Password: "pass2", Balance: "1e200000",
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidBalance)

	_, err = svc.SignUp(ctx, models.SignUpRequest{
		Name: "Bob", Email: "bob\x01@x.com", Password: "pass2", Balance: "100",
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidEmail)

	raw, _, err := repo.Get(ctx, ledger.DefaultDataKey)
	require.NoError(t, err)
	assert.Less(t, len(raw), 2048)
	assert.NotContains(t, raw, "bob")
}

func TestLoginWritesSession(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	signUp(t, svc, "Alice", "alice@x.com", "pass1", "500")

	_, err := svc.Login(ctx, models.LoginRequest{Email: "alice@x.com", Password: "nope"})
	assert.ErrorIs(t, err, ledger.ErrInvalidCredentials)
	_, err = svc.CurrentSession(ctx)
	assert.ErrorIs(t, err, service.ErrNotLoggedIn)

	resp, err := svc.Login(ctx, models.LoginRequest{Email: "Alice@X.com", Password: "pass1"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", resp.User.Name)

	raw, found, err := repo.Get(ctx, service.DefaultSessionKey)
	require.NoError(t, err)
	require.True(t, found)

	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "alice@x.com", stored["email"])
	assert.Equal(t, "500", stored["balance"])
	assert.IsType(t, "", stored["id"])
	assert.NotContains(t, raw, "pass1")

	session, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, session.ID)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	login(t, svc, document.SeedUserEmail, document.SeedUserPassword)

	require.NoError(t, svc.Logout(ctx))
	_, err := svc.CurrentSession(ctx)
	assert.ErrorIs(t, err, service.ErrNotLoggedIn)

	// logging out twice is fine
	assert.NoError(t, svc.Logout(ctx))
}

func TestUnreadableSessionIsDropped(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	require.NoError(t, repo.Put(ctx, service.DefaultSessionKey, "{not json"))

	_, err := svc.CurrentSession(ctx)
	assert.ErrorIs(t, err, service.ErrNotLoggedIn)
	_, found, _ := repo.Get(ctx, service.DefaultSessionKey)
	assert.False(t, found)
}

func TestTransferUpdatesSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	signUp(t, svc, "Alice", "alice@x.com", "pass1", "500")
	signUp(t, svc, "Bob", "bob@x.com", "pass2", "200")

	_, err := svc.Transfer(ctx, models.TransferRequest{ReceiverEmail: "bob@x.com", Amount: "10"})
	assert.ErrorIs(t, err, service.ErrNotLoggedIn)

	login(t, svc, "alice@x.com", "pass1")

	resp, err := svc.Transfer(ctx, models.TransferRequest{ReceiverEmail: "bob@x.com", Amount: "100"})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.True(t, resp.SenderBalance.Equal(decimal.NewFromInt(400)))

	session, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.True(t, session.Balance.Equal(decimal.NewFromInt(400)))

	_, err = svc.Transfer(ctx, models.TransferRequest{ReceiverEmail: "bob@x.com", Amount: "abc"})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = svc.Transfer(ctx, models.TransferRequest{ReceiverEmail: "bob", Amount: "abc"})
	assert.ErrorIs(t, err, ledger.ErrInvalidRecipientEmail)
	_, err = svc.Transfer(ctx, models.TransferRequest{ReceiverEmail: "bob@x.com", Amount: "1000"})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestDashboardRefreshesSession(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	signUp(t, svc, "Alice", "alice@x.com", "pass1", "500")
	signUp(t, svc, "Bob", "bob@x.com", "pass2", "200")

	login(t, svc, "alice@x.com", "pass1")
	for i := 0; i < 7; i++ {
		_, err := svc.Transfer(ctx, models.TransferRequest{ReceiverEmail: "bob@x.com", Amount: "1"})
		require.NoError(t, err)
	}

	// a session cached before the transfers
	users, err := svc.Users(ctx)
	require.NoError(t, err)
	stale, err := json.Marshal(models.Session{
		ID: users.Users[2].ID, Name: "Bob", Email: "bob@x.com", Balance: decimal.NewFromInt(200),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, service.DefaultSessionKey, string(stale)))

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", dash.User.Email)
	assert.True(t, dash.User.Balance.Equal(decimal.NewFromInt(207)))
	assert.Len(t, dash.Recent, 5)

	session, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.True(t, session.Balance.Equal(decimal.NewFromInt(207)))

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Len(t, summary.Transactions, 7)
}

func TestDashboardWithoutSession(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.Dashboard(context.Background())
	assert.ErrorIs(t, err, service.ErrNotLoggedIn)
	_, err = svc.Summary(context.Background())
	assert.ErrorIs(t, err, service.ErrNotLoggedIn)
}

func TestDashboardDropsSessionOfUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	require.NoError(t, repo.Put(ctx, service.DefaultSessionKey,
		`{"id":"42","name":"Ghost","email":"ghost@x.com","balance":"1"}`))

	_, err := svc.Dashboard(ctx)
	assert.ErrorIs(t, err, service.ErrNotLoggedIn)
	_, found, _ := repo.Get(ctx, service.DefaultSessionKey)
	assert.False(t, found)
}

func TestUsers(t *testing.T) {
	svc, _ := setup(t)
	signUp(t, svc, "Alice", "alice@x.com", "pass1", "500")

	resp, err := svc.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, document.SeedUserEmail, resp.Users[0].Email)
	assert.Equal(t, "alice@x.com", resp.Users[1].Email)
}
