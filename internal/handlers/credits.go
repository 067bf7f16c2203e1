package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imagechat-backend/internal/credits"
	"imagechat-backend/internal/models"
)

type CreditHandler struct {
	gate       *credits.Gate
	adminToken string
}

func NewCreditHandler(gate *credits.Gate, adminToken string) *CreditHandler {
	return &CreditHandler{gate: gate, adminToken: adminToken}
}

// GetBalance godoc
// @Summary Get credit balance
// @Description Returns the user's credit balance, creating the account with the welcome grant on first call
// @Tags credits
// @Produce json
// @Success 200 {object} models.BalanceResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/credits/balance [get]
func (h *CreditHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	credit, err := h.gate.Balance(userID)
	if err != nil {
		log.Printf("Failed to get balance for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get balance"})
		return
	}

	c.JSON(http.StatusOK, models.BalanceResponse{
		UserID:         credit.UserID.String(),
		CurrentBalance: credit.CurrentBalance,
		TotalEarned:    credit.TotalEarned,
		TotalSpent:     credit.TotalSpent,
	})
}

// ListTransactions godoc
// @Summary List credit transactions
// @Description Lists the user's credit audit trail, newest first
// @Tags credits
// @Produce json
// @Success 200 {object} models.TransactionListResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/credits/transactions [get]
func (h *CreditHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	transactions, err := h.gate.Transactions(userID)
	if err != nil {
		log.Printf("Failed to list transactions for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list transactions"})
		return
	}

	resp := models.TransactionListResponse{Transactions: make([]models.TransactionResponse, 0, len(transactions))}
	for _, txn := range transactions {
		item := models.TransactionResponse{
			ID:              txn.ID.String(),
			Amount:          txn.Amount,
			TransactionType: txn.TransactionType,
			CreatedAt:       txn.CreatedAt,
		}
		if txn.Description.Valid {
			item.Description = txn.Description.String
		}
		if txn.ReferenceID.Valid {
			item.ReferenceID = txn.ReferenceID.String
		}
		resp.Transactions = append(resp.Transactions, item)
	}

	c.JSON(http.StatusOK, resp)
}

// TopUp godoc
// @Summary Credit an account
// @Description Adds credits to a user's account. Requires the admin token.
// @Tags credits
// @Accept json
// @Produce json
// @Param X-Admin-Token header string true "Admin token"
// @Param request body models.TopUpRequest true "Top-up"
// @Success 200 {object} models.BalanceResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/v1/credits/topup [post]
func (h *CreditHandler) TopUp(c *gin.Context) {
	token := c.GetHeader("X-Admin-Token")
	if h.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "admin token required"})
		return
	}

	var req models.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user_id"})
		return
	}

	credit, err := h.gate.TopUp(userID, req.Amount, req.Description)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.BalanceResponse{
		UserID:         credit.UserID.String(),
		CurrentBalance: credit.CurrentBalance,
		TotalEarned:    credit.TotalEarned,
		TotalSpent:     credit.TotalSpent,
	})
}
