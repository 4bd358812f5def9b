// Package ports declares the storage collaborators services depend on.
// Every method is scoped to one user unless its name says otherwise.
package ports

import (
	"context"

	"foretrack/internal/core"
)

type (
	// TransactionStore persists expenses and income. Lists are ordered by
	// date descending, then creation time descending. Zero bounds are open.
	TransactionStore interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) error
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, userID string, kind core.Kind, id string) error
		GetTransaction(ctx context.Context, userID string, kind core.Kind, id string) (core.Transaction, error)
		ListTransactions(ctx context.Context, userID string, from, to core.Date) ([]core.Transaction, error)
	}

	// BudgetStore rejects a second active budget for the same category and
	// period with core.ErrConflict.
	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.Budget) error
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, userID, id string) error
		GetBudget(ctx context.Context, userID, id string) (core.Budget, error)
		ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]core.Budget, error)
	}

	// CategoryStore holds custom categories only; built-ins live in core.
	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) error
		UpdateCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, userID, id string) error
		GetCategory(ctx context.Context, userID, id string) (core.Category, error)
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	}

	SettingsStore interface {
		// GetSettings returns core.ErrNotFound until the user saves once.
		GetSettings(ctx context.Context, userID string) (core.Settings, error)
		PutSettings(ctx context.Context, s core.Settings) error
		// ListSummaryRecipients spans all users.
		ListSummaryRecipients(ctx context.Context) ([]core.Settings, error)
	}

	// RevisionStore tracks a per-user counter bumped on every ledger write.
	RevisionStore interface {
		BumpRevision(ctx context.Context, userID string) (int64, error)
		Revision(ctx context.Context, userID string) (int64, error)
	}

	SnapshotStore interface {
		LoadSnapshot(ctx context.Context, userID, scope string) (core.InsightSnapshot, error)
		// SaveSnapshot stores s unless a snapshot with a higher revision is
		// already stored, and reports whether it was written.
		SaveSnapshot(ctx context.Context, s core.InsightSnapshot) (bool, error)
	}

	RecurringStore interface {
		CreateRecurring(ctx context.Context, r core.RecurringTransaction) error
		UpdateRecurring(ctx context.Context, r core.RecurringTransaction) error
		DeleteRecurring(ctx context.Context, userID, id string) error
		GetRecurring(ctx context.Context, userID, id string) (core.RecurringTransaction, error)
		ListRecurring(ctx context.Context, userID string) ([]core.RecurringTransaction, error)
		// ListActiveRecurring spans all users.
		ListActiveRecurring(ctx context.Context) ([]core.RecurringTransaction, error)
	}

	// Store is everything a backend provides.
	Store interface {
		TransactionStore
		BudgetStore
		CategoryStore
		SettingsStore
		RevisionStore
		SnapshotStore
		RecurringStore
		Ping(ctx context.Context) error
		Close() error
	}
)
