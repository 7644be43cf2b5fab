package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account for reporting and for the
// normal-balance convention.
type AccountType string

const (
	TypeAsset     AccountType = "ASSET"
	TypeLiability AccountType = "LIABILITY"
	TypeEquity    AccountType = "EQUITY"
	TypeRevenue   AccountType = "REVENUE"
	TypeExpense   AccountType = "EXPENSE"
)

// AccountTypes lists all valid account types in presentation order.
func AccountTypes() []AccountType {
	return []AccountType{TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense}
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense:
		return true
	}
	return false
}

// NormalDebit reports whether the account type increases on debit.
// Asset and expense accounts are debit-normal; liability, equity and
// revenue accounts are credit-normal. This is a presentation concern:
// the stored balance delta is always the uniform debit - credit.
func (t AccountType) NormalDebit() bool {
	return t == TypeAsset || t == TypeExpense
}

// codeBase is the first code in each account type's numbering range.
var codeBase = map[AccountType]int{
	TypeAsset:     1000,
	TypeLiability: 2000,
	TypeEquity:    3000,
	TypeRevenue:   4000,
	TypeExpense:   5000,
}

// nextAccountCode returns the code to assign after lastCode within the
// type's range. An empty lastCode yields the base of the range.
func nextAccountCode(lastCode string, t AccountType) string {
	if lastCode == "" {
		return strconv.Itoa(codeBase[t])
	}
	n, err := strconv.Atoi(lastCode)
	if err != nil {
		return strconv.Itoa(codeBase[t])
	}
	return fmt.Sprintf("%04d", n+1)
}

// Account is an organization-scoped ledger account. CurrentBalance is a
// denormalized cache maintained transactionally with each posting: it
// always equals the signed sum (debit - credit) of all posted lines
// against the account.
type Account struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organization_id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Type            AccountType     `json:"type"`
	ParentAccountID string          `json:"parent_account_id,omitempty"`
	IsSystem        bool            `json:"is_system"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	CreatedAt       time.Time       `json:"created_at"`
}

// DisplayBalance returns the balance signed according to the account's
// normal-balance convention, for presentation.
func (a *Account) DisplayBalance() decimal.Decimal {
	if a.Type.NormalDebit() {
		return a.CurrentBalance
	}
	return a.CurrentBalance.Neg()
}
