package dto

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/earnings-ledger/internal/models"
)

// CreditRequest represents a points credit reported by an earning source
type CreditRequest struct {
	Points uint64          `json:"points"`
	Rate   decimal.Decimal `json:"rate"`
}

// PolicyRequest represents new threshold settings for an account
type PolicyRequest struct {
	Threshold      uint64                `json:"threshold"`
	WithdrawalKind models.WithdrawalKind `json:"withdrawal_kind" binding:"required"`
}

// StoreSecretRequest represents a gift-card secret added to the vault manually
type StoreSecretRequest struct {
	Category string          `json:"category" binding:"required"`
	Brand    string          `json:"brand"`
	Code     string          `json:"code" binding:"required"`
	PIN      string          `json:"pin"`
	Value    decimal.Decimal `json:"value"`
}

// ToSecret converts the request into the sealed payload
func (r StoreSecretRequest) ToSecret() models.GiftCardSecret {
	brand := r.Brand
	if brand == "" {
		brand = r.Category
	}
	return models.GiftCardSecret{
		Version: models.GiftCardSecretVersion,
		Brand:   brand,
		Code:    r.Code,
		PIN:     r.PIN,
		Value:   r.Value,
	}
}
