package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// seedAccount is one entry in the default chart of accounts.
type seedAccount struct {
	Code string
	Name string
	Type AccountType
}

// defaultChart is the system chart of accounts seeded for every new
// organization. Seeded accounts are protected from deletion.
var defaultChart = []seedAccount{
	{Code: "1000", Name: "Cash", Type: TypeAsset},
	{Code: "1100", Name: "Accounts Receivable", Type: TypeAsset},
	{Code: "2000", Name: "Accounts Payable", Type: TypeLiability},
	{Code: "3000", Name: "Owner's Equity", Type: TypeEquity},
	{Code: "4000", Name: "Sales Revenue", Type: TypeRevenue},
	{Code: "5000", Name: "General Expense", Type: TypeExpense},
	{Code: "5100", Name: "Bank Fees", Type: TypeExpense},
}

// SeedDefaultAccounts creates the system chart of accounts for the
// organization. Accounts whose code already exists are skipped, so the
// operation is idempotent. Returns the accounts created by this call.
func (s *Service) SeedDefaultAccounts(ctx context.Context, orgID string) ([]*Account, error) {
	var created []*Account
	for _, seed := range defaultChart {
		existing, err := s.store.GetAccountByCode(ctx, orgID, seed.Code)
		if err != nil {
			var notFound *AccountNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
		if existing != nil {
			continue
		}

		account := &Account{
			ID:             uuid.NewString(),
			OrganizationID: orgID,
			Code:           seed.Code,
			Name:           seed.Name,
			Type:           seed.Type,
			IsSystem:       true,
			CurrentBalance: decimal.Zero,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.store.CreateAccount(ctx, account); err != nil {
			if errors.Is(err, ErrDuplicateAccount) {
				continue
			}
			return nil, err
		}
		created = append(created, account)
	}
	return created, nil
}
