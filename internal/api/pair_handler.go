package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/pricing"
)

type PairHandler struct {
	markets *models.Markets
	prices  pricing.Source
}

func NewPairHandler(markets *models.Markets, prices pricing.Source) *PairHandler {
	return &PairHandler{markets: markets, prices: prices}
}

// PairView is a listed market with its precision and last price.
type PairView struct {
	Symbol         string              `json:"symbol"`
	Base           string              `json:"base"`
	Quote          string              `json:"quote"`
	BasePrecision  int32               `json:"base_precision"`
	QuotePrecision int32               `json:"quote_precision"`
	LastPrice      decimal.NullDecimal `json:"last_price"`
}

func (h *PairHandler) ListPairs(c *gin.Context) {
	pairs := h.markets.Pairs()
	views := make([]PairView, 0, len(pairs))
	for _, p := range pairs {
		v := PairView{Symbol: p.Symbol(), Base: p.Base, Quote: p.Quote}
		if cur, ok := h.markets.Currency(p.Base); ok {
			v.BasePrecision = cur.Precision
		}
		if cur, ok := h.markets.Currency(p.Quote); ok {
			v.QuotePrecision = cur.Precision
		}
		if q, ok := h.prices.Quote(p.Symbol()); ok {
			v.LastPrice = q.LastPrice
		}
		views = append(views, v)
	}

	c.JSON(http.StatusOK, gin.H{
		"pairs": views,
		"count": len(views),
	})
}
