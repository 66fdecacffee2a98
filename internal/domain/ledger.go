package domain

import "github.com/shopspring/decimal"

// Ledger primitives. Balance and stock may only be mutated through these,
// and only while the caller holds the row lock inside a transaction.

// Debit subtracts amount from the user's balance. The balance never
// goes negative.
func (u *User) Debit(amount decimal.Decimal) error {
	if u.Balance.LessThan(amount) {
		return &InsufficientBalanceError{Required: amount, Available: u.Balance}
	}
	u.Balance = u.Balance.Sub(amount)
	return nil
}

// Credit adds a non-negative amount to the user's balance.
func (u *User) Credit(amount decimal.Decimal) {
	u.Balance = u.Balance.Add(amount)
}

// ReserveStock decrements the product's stock by qty. The stock never
// goes negative.
func (p *Product) ReserveStock(qty int) error {
	if p.Stock < qty {
		return &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   qty,
			Available:   p.Stock,
		}
	}
	p.Stock -= qty
	return nil
}

// ReleaseStock returns qty units to the product's stock, reversing an
// earlier ReserveStock.
func (p *Product) ReleaseStock(qty int) {
	p.Stock += qty
}
