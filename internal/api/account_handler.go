package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/service"
)

// AccountHandler serves the simulated wallets.
type AccountHandler struct {
	svc    *service.OrderService
	logger *zap.Logger
}

func NewAccountHandler(svc *service.OrderService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logger}
}

// TransferRequest is the body of a deposit or withdrawal.
type TransferRequest struct {
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

func (h *AccountHandler) GetBalances(c *gin.Context) {
	accountID, ok := pathID(c, "account_id")
	if !ok {
		return
	}
	balances, err := h.svc.Balances(c.Request.Context(), accountID)
	if err != nil {
		abortWithDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id": accountID,
		"balances":   balances,
	})
}

func (h *AccountHandler) Deposit(c *gin.Context) {
	accountID, req, ok := h.bindTransfer(c)
	if !ok {
		return
	}
	balance, err := h.svc.Deposit(c.Request.Context(), accountID, req.Currency, req.Amount)
	if err != nil {
		abortWithDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, balance)
}

func (h *AccountHandler) Withdraw(c *gin.Context) {
	accountID, req, ok := h.bindTransfer(c)
	if !ok {
		return
	}
	balance, err := h.svc.Withdraw(c.Request.Context(), accountID, req.Currency, req.Amount)
	if err != nil {
		abortWithDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, balance)
}

func (h *AccountHandler) bindTransfer(c *gin.Context) (int64, TransferRequest, bool) {
	var req TransferRequest
	accountID, ok := pathID(c, "account_id")
	if !ok {
		return 0, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return 0, req, false
	}
	return accountID, req, true
}
