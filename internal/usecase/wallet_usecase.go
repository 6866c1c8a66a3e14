package usecase

import (
	"context"
	"fmt"

	"shopcore/internal/domain/ledger"
	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const recentTransactionCount = 5

type WalletUsecase struct {
	tx         repo.TransactionManager
	topUpLimit decimal.Decimal
	clock      Clock
	logger     *zap.Logger
}

func NewWalletUsecase(tx repo.TransactionManager, topUpLimit decimal.Decimal, clock Clock, logger *zap.Logger) *WalletUsecase {
	return &WalletUsecase{tx: tx, topUpLimit: topUpLimit, clock: clock, logger: logger}
}

type WalletOutput struct {
	Balance            decimal.Decimal     `json:"balance"`
	RecentTransactions []model.Transaction `json:"recent_transactions"`
}

type TopUpOutput struct {
	Balance     decimal.Decimal   `json:"balance"`
	Transaction model.Transaction `json:"transaction"`
}

type TransactionListOutput struct {
	Transactions []model.Transaction `json:"transactions"`
	Pagination
}

func (u *WalletUsecase) GetWallet(ctx context.Context, userID int64) (WalletOutput, error) {
	if userID <= 0 {
		return WalletOutput{}, unauthorized()
	}

	var out WalletOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := r.Users().FindByID(ctx, userID)
		if err != nil {
			return userLookupError(err)
		}

		txs, _, err := r.Ledger().ListByUserID(ctx, repo.TransactionListQuery{
			UserID: userID,
			Page:   1,
			Limit:  recentTransactionCount,
		})
		if err != nil {
			return err
		}
		if txs == nil {
			txs = []model.Transaction{}
		}

		out = WalletOutput{Balance: user.WalletBalance, RecentTransactions: txs}
		return nil
	})
	if err != nil {
		return WalletOutput{}, storeError(err)
	}
	return out, nil
}

// TopUp は残高に入金して台帳に1行足す
func (u *WalletUsecase) TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (TopUpOutput, error) {
	if userID <= 0 {
		return TopUpOutput{}, unauthorized()
	}
	if !amount.IsPositive() {
		return TopUpOutput{}, badRequest(CodeValidation, "amount must be greater than 0")
	}
	if amount.GreaterThan(u.topUpLimit) {
		return TopUpOutput{}, badRequest(CodeValidation, "amount must not exceed "+u.topUpLimit.StringFixed(2))
	}
	if !amount.Equal(amount.Round(2)) {
		return TopUpOutput{}, badRequest(CodeValidation, "amount must have at most 2 decimal places")
	}

	var out TopUpOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := r.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return userLookupError(err)
		}
		//台帳の時刻はロック取得後に取る（コミット順と揃える）
		now := u.clock.Now()

		after, err := ledger.Credit(user.WalletBalance, amount)
		if err != nil {
			return badRequest(CodeValidation, err.Error())
		}

		ok, err := r.Users().UpdateWalletBalance(ctx, userID, user.WalletBalance, after)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("wallet balance changed during top-up: %w", repo.ErrRetryable)
		}

		entry, err := r.Ledger().Create(ctx, ledger.NewEntry(ledger.EntryInput{
			UserID:        userID,
			Type:          model.TransactionTypeWalletCredit,
			Amount:        amount,
			BalanceBefore: user.WalletBalance,
			BalanceAfter:  after,
			Description:   "Wallet top-up",
		}, now))
		if err != nil {
			return err
		}

		out = TopUpOutput{Balance: after, Transaction: entry}
		return nil
	})
	if err != nil {
		return TopUpOutput{}, storeError(err)
	}

	u.logger.Info("wallet topped up",
		zap.Int64("user_id", userID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", out.Balance.StringFixed(2)),
	)
	return out, nil
}

func (u *WalletUsecase) ListTransactions(ctx context.Context, userID int64, txType string, page, perPage int) (TransactionListOutput, error) {
	if userID <= 0 {
		return TransactionListOutput{}, unauthorized()
	}
	switch model.TransactionType(txType) {
	case "", model.TransactionTypePurchase, model.TransactionTypeRefund,
		model.TransactionTypeWalletCredit, model.TransactionTypeWalletDebit:
	default:
		return TransactionListOutput{}, badRequest(CodeValidation, "invalid type")
	}
	page, perPage = normalizePage(page, perPage)

	var out TransactionListOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		txs, total, err := r.Ledger().ListByUserID(ctx, repo.TransactionListQuery{
			UserID: userID,
			Type:   txType,
			Page:   page,
			Limit:  perPage,
		})
		if err != nil {
			return err
		}
		if txs == nil {
			txs = []model.Transaction{}
		}
		out = TransactionListOutput{Transactions: txs, Pagination: newPagination(page, perPage, total)}
		return nil
	})
	if err != nil {
		return TransactionListOutput{}, storeError(err)
	}
	return out, nil
}
