package models

// Request models. Amounts arrive as typed form text and are parsed by the service.
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Balance  string `json:"balance"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TransferRequest struct {
	ReceiverEmail string `json:"receiverEmail"`
	Amount        string `json:"amount"`
}

// Response models
type AuthResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	User    *Profile `json:"user,omitempty"`
}

type DashboardResponse struct {
	Status string        `json:"status"`
	User   Session       `json:"user"`
	Recent []Transaction `json:"recent"`
}

type TransferResponse struct {
	Status string `json:"status"`
	TransferResult
}

type SummaryResponse struct {
	Status       string        `json:"status"`
	Email        string        `json:"email"`
	Transactions []Transaction `json:"transactions"`
}

type UsersResponse struct {
	Status string    `json:"status"`
	Users  []Profile `json:"users"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
