package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// CurrencyHandler serves the listed currencies. The registry is loaded at
// startup and read-only afterwards.
type CurrencyHandler struct {
	markets *models.Markets
}

func NewCurrencyHandler(markets *models.Markets) *CurrencyHandler {
	return &CurrencyHandler{markets: markets}
}

// ListCurrencies handles GET /api/currencies
func (h *CurrencyHandler) ListCurrencies(c *gin.Context) {
	currencies := h.markets.Currencies()
	c.JSON(http.StatusOK, gin.H{
		"currencies": currencies,
		"count":      len(currencies),
	})
}

// GetCurrency handles GET /api/currencies/:code
func (h *CurrencyHandler) GetCurrency(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	currency, ok := h.markets.Currency(code)
	if !ok {
		AbortWithError(c, http.StatusNotFound, ErrCodeNotFound, "currency not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"currency":   currency,
		"min_amount": currency.MinAmount(),
	})
}
