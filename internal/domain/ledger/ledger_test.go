package ledger

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"shopcore/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDebit(t *testing.T) {
	after, err := Debit(d("1000"), d("150.50"))
	require.NoError(t, err)
	assert.True(t, d("849.50").Equal(after))

	after, err = Debit(d("100"), d("150"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, d("100").Equal(after))

	after, err = Debit(d("100"), d("100"))
	require.NoError(t, err)
	assert.True(t, after.IsZero())

	_, err = Debit(d("100"), d("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCredit(t *testing.T) {
	after, err := Credit(d("0"), d("25.25"))
	require.NoError(t, err)
	assert.True(t, d("25.25").Equal(after))

	_, err = Credit(d("0"), d("-5"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestIDs_Format(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)

	assert.Regexp(t, regexp.MustCompile(`^ORD-20260301123045-[0-9A-F]{8}$`), NewOrderNumber(now))
	assert.Regexp(t, regexp.MustCompile(`^TXN-20260301123045-[0-9A-F]{12}$`), NewTransactionID(now))
}

func TestIDs_NoCollisionUnderConcurrency(t *testing.T) {
	now := time.Now()
	const workers, perWorker = 16, 500

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, NewTransactionID(now))
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestReplay(t *testing.T) {
	now := time.Now()
	orderID := int64(7)
	txs := []model.Transaction{
		NewEntry(EntryInput{UserID: 1, Type: model.TransactionTypeWalletCredit, Amount: d("1000"), BalanceBefore: d("0"), BalanceAfter: d("1000")}, now),
		NewEntry(EntryInput{UserID: 1, OrderID: &orderID, Type: model.TransactionTypePurchase, Amount: d("404"), BalanceBefore: d("1000"), BalanceAfter: d("596")}, now),
		NewEntry(EntryInput{UserID: 1, OrderID: &orderID, Type: model.TransactionTypeRefund, Amount: d("404"), BalanceBefore: d("596"), BalanceAfter: d("1000")}, now),
	}

	got, err := Replay(decimal.Zero, txs)
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(got))
}

func TestReplay_DetectsGap(t *testing.T) {
	now := time.Now()
	txs := []model.Transaction{
		NewEntry(EntryInput{UserID: 1, Type: model.TransactionTypeWalletCredit, Amount: d("10"), BalanceBefore: d("0"), BalanceAfter: d("10")}, now),
		NewEntry(EntryInput{UserID: 1, Type: model.TransactionTypePurchase, Amount: d("5"), BalanceBefore: d("9"), BalanceAfter: d("4")}, now),
	}

	_, err := Replay(decimal.Zero, txs)
	assert.ErrorIs(t, err, ErrBrokenChain)
}
