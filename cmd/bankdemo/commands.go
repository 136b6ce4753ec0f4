package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"text/tabwriter"

	"github.com/rongwang/xmlbank/internal/models"
)

// command maps one command line onto an API route
type command struct {
	name   string
	usage  string
	method string
	path   string

	// flags registers the command's flags and returns the request body they fill, or nil
	flags func(fs *flag.FlagSet) any
	// render prints a successful response body as text
	render func(out io.Writer, body []byte) error
}

var commands = []command{
	{
		name: "register", usage: "-name NAME -email EMAIL -password PASSWORD -balance AMOUNT",
		method: http.MethodPost, path: "/api/auth/register",
		flags: func(fs *flag.FlagSet) any {
			req := &models.SignUpRequest{}
			fs.StringVar(&req.Name, "name", "", "full name")
			fs.StringVar(&req.Email, "email", "", "email address")
			fs.StringVar(&req.Password, "password", "", "password")
			fs.StringVar(&req.Balance, "balance", "", "opening balance")
			return req
		},
		render: renderAuth,
	},
	{
		name: "login", usage: "-email EMAIL -password PASSWORD",
		method: http.MethodPost, path: "/api/auth/login",
		flags: func(fs *flag.FlagSet) any {
			req := &models.LoginRequest{}
			fs.StringVar(&req.Email, "email", "", "email address")
			fs.StringVar(&req.Password, "password", "", "password")
			return req
		},
		render: renderAuth,
	},
	{name: "logout", method: http.MethodPost, path: "/api/auth/logout", render: renderAuth},
	{name: "whoami", method: http.MethodGet, path: "/api/session", render: renderSession},
	{name: "dashboard", method: http.MethodGet, path: "/api/dashboard", render: renderDashboard},
	{
		name: "transfer", usage: "-to EMAIL -amount AMOUNT",
		method: http.MethodPost, path: "/api/transfers",
		flags: func(fs *flag.FlagSet) any {
			req := &models.TransferRequest{}
			fs.StringVar(&req.ReceiverEmail, "to", "", "recipient email")
			fs.StringVar(&req.Amount, "amount", "", "amount to send")
			return req
		},
		render: renderTransfer,
	},
	{name: "summary", method: http.MethodGet, path: "/api/transactions", render: renderSummary},
	{name: "users", method: http.MethodGet, path: "/api/users", render: renderUsers},
}

func findCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

// execute parses the command's flags, serves the request in-process and writes the response.
// It returns the HTTP status the handler answered with.
func execute(ctx context.Context, router http.Handler, cmd command, args []string, out io.Writer, asJSON bool) (int, error) {
	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var body any
	if cmd.flags != nil {
		body = cmd.flags(fs)
	}
	if err := fs.Parse(args); err != nil {
		return http.StatusBadRequest, fmt.Errorf("%s: %w", cmd.name, err)
	}

	var reqBody io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cmd.method, cmd.path, reqBody)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if asJSON {
		_, err := fmt.Fprintln(out, w.Body.String())
		return w.Code, err
	}
	if w.Code >= http.StatusBadRequest {
		return w.Code, renderError(out, w.Body.Bytes())
	}
	return w.Code, cmd.render(out, w.Body.Bytes())
}

func renderError(out io.Writer, body []byte) error {
	var resp models.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "error: %s (%s)\n", resp.Message, resp.Code)
	return err
}

func renderAuth(out io.Writer, body []byte) error {
	var resp models.AuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	fmt.Fprintln(out, resp.Message)
	if u := resp.User; u != nil {
		fmt.Fprintf(out, "%s <%s> id %d balance %s\n", u.Name, u.Email, u.ID, u.Balance.StringFixed(2))
	}
	return nil
}

func renderSession(out io.Writer, body []byte) error {
	var s models.Session
	if err := json.Unmarshal(body, &s); err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged in as %s <%s>\n", s.Name, s.Email)
	fmt.Fprintf(out, "Balance: %s\n", s.Balance.StringFixed(2))
	return nil
}

func renderDashboard(out io.Writer, body []byte) error {
	var resp models.DashboardResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	fmt.Fprintf(out, "Welcome, %s\n", resp.User.Name)
	fmt.Fprintf(out, "Balance: %s\n", resp.User.Balance.StringFixed(2))
	if len(resp.Recent) == 0 {
		fmt.Fprintln(out, "No transactions yet")
		return nil
	}
	fmt.Fprintln(out, "Recent transactions:")
	return renderTransactions(out, resp.User.Email, resp.Recent)
}

func renderTransfer(out io.Writer, body []byte) error {
	var resp models.TransferResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	fmt.Fprintf(out, "Sent %s to %s on %s\n", resp.Amount.StringFixed(2), resp.ReceiverEmail, resp.Date)
	fmt.Fprintf(out, "New balance: %s\n", resp.SenderBalance.StringFixed(2))
	fmt.Fprintf(out, "Reference: %s\n", resp.Reference)
	return nil
}

func renderSummary(out io.Writer, body []byte) error {
	var resp models.SummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	if len(resp.Transactions) == 0 {
		fmt.Fprintln(out, "No transactions yet")
		return nil
	}
	return renderTransactions(out, resp.Email, resp.Transactions)
}

func renderUsers(out io.Writer, body []byte) error {
	var resp models.UsersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tBALANCE")
	for _, u := range resp.Users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Balance.StringFixed(2))
	}
	return w.Flush()
}

// renderTransactions lists transactions as seen from email's side
func renderTransactions(out io.Writer, email string, txs []models.Transaction) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tDIRECTION\tCOUNTERPARTY\tAMOUNT")
	for _, tx := range txs {
		direction, other, amount := "received", tx.From, tx.Amount.StringFixed(2)
		if strings.EqualFold(tx.From, email) {
			direction, other, amount = "sent", tx.To, "-"+amount
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tx.Date, direction, other, amount)
	}
	return w.Flush()
}
