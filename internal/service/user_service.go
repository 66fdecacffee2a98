package service

import (
	"context"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type UserService struct {
	store repository.Store
}

func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

// Deposit credits a positive amount to the user's balance. It shares
// the ledger's locking discipline: the balance is only touched under
// the user's row lock inside a transaction.
func (s *UserService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.User, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrNonPositiveDeposit
	}

	var user *domain.User
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.UserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		user.Credit(amount)
		if err := tx.SaveUserBalance(ctx, user); err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, balanceDepositedEvent(user, amount))
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"amount":      amount,
		"new_balance": user.Balance,
	}).Info("balance deposited")
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}
