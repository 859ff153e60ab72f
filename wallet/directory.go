/*
directory.go - Account status collaborator

PURPOSE:
  The ledger does not own account status workflows (blocking, deactivation,
  admin roles live in the accounts subsystem). It only needs three narrow
  questions answered before it moves money. Directory is that boundary.

SEE ALSO:
  - service.go: checks eligibility on Create and authorization on AdminDeny
  - recurring.go: checks both parties before each scheduled execution
*/
package wallet

import "context"

// Directory answers account-status questions delegated to the accounts
// subsystem. Blocked and deactivated accounts are excluded from transfers.
type Directory interface {
	// IsEligibleToReceive reports whether the account may receive money.
	IsEligibleToReceive(ctx context.Context, id AccountID) (bool, error)

	// IsAuthorizedToTransact reports whether the account may send money.
	IsAuthorizedToTransact(ctx context.Context, id AccountID) (bool, error)

	// IsAdmin reports whether the actor may perform administrative
	// overrides such as AdminDeny.
	IsAdmin(ctx context.Context, id AccountID) (bool, error)
}

// StoreDirectory answers from account rows in the store: active accounts
// may send and receive, everyone else may not. Admins are a fixed set
// supplied at construction.
type StoreDirectory struct {
	Store  BalanceStore
	Admins map[AccountID]bool
}

func NewStoreDirectory(store BalanceStore, admins ...AccountID) *StoreDirectory {
	set := make(map[AccountID]bool, len(admins))
	for _, id := range admins {
		set[id] = true
	}
	return &StoreDirectory{Store: store, Admins: set}
}

func (d *StoreDirectory) IsEligibleToReceive(ctx context.Context, id AccountID) (bool, error) {
	return d.isActive(ctx, id)
}

func (d *StoreDirectory) IsAuthorizedToTransact(ctx context.Context, id AccountID) (bool, error) {
	return d.isActive(ctx, id)
}

func (d *StoreDirectory) IsAdmin(_ context.Context, id AccountID) (bool, error) {
	return d.Admins[id], nil
}

func (d *StoreDirectory) isActive(ctx context.Context, id AccountID) (bool, error) {
	account, err := d.Store.GetAccount(ctx, id)
	if err != nil {
		return false, err
	}
	return account.Status == AccountActive, nil
}
