package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rongwang/xmlbank/internal/ledger"
	"github.com/rongwang/xmlbank/internal/models"
	"github.com/rongwang/xmlbank/internal/service"
	"github.com/rongwang/xmlbank/internal/utils"
)

// Handler handles API requests
type Handler struct {
	svc service.Service
	log *utils.Logger
}

// NewHandler creates a new Handler. A nil logger discards output.
func NewHandler(svc service.Service, log *utils.Logger) *Handler {
	if log == nil {
		log = utils.Discard()
	}
	return &Handler{svc: svc, log: log}
}

// SetupRoutes configures the API routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_FOUND",
			Message: "Unknown route " + c.Request.Method + " " + c.Request.URL.Path,
		})
	})

	api := router.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.SignUp)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
	}

	api.GET("/users", h.ListUsers)

	// Routes for the logged-in user
	protected := api.Group("")
	protected.Use(SessionMiddleware(h.svc))
	{
		protected.GET("/session", h.WhoAmI)
		protected.GET("/dashboard", h.Dashboard)
		protected.POST("/transfers", h.Transfer)
		protected.GET("/transactions", h.Summary)
	}
}

// Auth handlers
func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AuthResponse{Status: "success", Message: "Logged out"})
}

// Banking handlers
func (h *Handler) WhoAmI(c *gin.Context) {
	session := c.MustGet("session").(*models.Session)
	c.JSON(http.StatusOK, session)
}

func (h *Handler) Dashboard(c *gin.Context) {
	resp, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Transfer(c *gin.Context) {
	var req models.TransferRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.Transfer(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Summary(c *gin.Context) {
	resp, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListUsers(c *gin.Context) {
	resp, err := h.svc.Users(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// bind decodes the JSON body, answering 400 when it cannot
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return false
	}
	return true
}

// handleError turns a service error into an error response
func (h *Handler) handleError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotLoggedIn) {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status:  "error",
			Code:    "UNAUTHORIZED",
			Message: "Please log in first",
		})
		return
	}

	code := ledger.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.log.Error("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	if code == "" {
		code = "INTERNAL_ERROR"
	}

	c.JSON(status, models.ErrorResponse{
		Status:  "error",
		Code:    string(code),
		Message: err.Error(),
	})
}

func statusFor(code ledger.Code) int {
	switch code {
	case "", ledger.CodeCorruptDocument:
		return http.StatusInternalServerError
	case ledger.CodeDuplicateEmail, ledger.CodeStaleDocument:
		return http.StatusConflict
	case ledger.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case ledger.CodeNotFound, ledger.CodeRecipientNotFound, ledger.CodeSenderNotFound:
		return http.StatusNotFound
	case ledger.CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
