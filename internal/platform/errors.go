package platform

import "acdmx.com/pkg/xerr"

var (
	ErrSaleActive         = xerr.New(xerr.PhaseViolation, "sale round is already active")
	ErrSaleNotActive      = xerr.New(xerr.PhaseViolation, "sale round is not active")
	ErrTradeNotActive     = xerr.New(xerr.PhaseViolation, "trade round is not active")
	ErrTradeNotEnded      = xerr.New(xerr.Timing, "trade round is not ended yet")
	ErrSaleNotEnded       = xerr.New(xerr.Timing, "sales period is not ended yet")
	ErrInsufficientSupply = xerr.New(xerr.CapacityViolation, "insufficient remaining supply")
	ErrPaymentTooSmall    = xerr.New(xerr.Validation, "payment too small to buy one unit")
	ErrFractionRange      = xerr.New(xerr.Validation, "reward fraction must be below 1000")
	ErrUnknownFraction    = xerr.New(xerr.Validation, "unknown reward fraction")
	ErrZeroAmount         = xerr.New(xerr.Validation, "amount must be positive")
	ErrZeroPrice          = xerr.New(xerr.Validation, "price must be positive")
	ErrZeroAddress        = xerr.New(xerr.Validation, "zero address")
	ErrSelfReferral       = xerr.New(xerr.Validation, "user cannot refer itself")
	ErrReferralCycle      = xerr.New(xerr.Validation, "referer is referred by user")
	ErrNotOwner           = xerr.New(xerr.Unauthorized, "caller is not the owner")
	ErrNotEditor          = xerr.New(xerr.Unauthorized, "caller is not the owner or editor")
	ErrNotSeller          = xerr.New(xerr.Unauthorized, "only seller can remove order")
	ErrOrderNotFound      = xerr.New(xerr.RecordNotFound, "order not found")
	ErrOverflow           = xerr.New(xerr.Arithmetic, "amount overflow")
)
