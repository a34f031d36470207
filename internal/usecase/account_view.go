package usecase

import (
	"context"
	"fmt"
	"sync"

	"TradeDash/internal/domain/models"
	domrepo "TradeDash/internal/domain/repository"
	"TradeDash/internal/hierarchy"
	xlogger "TradeDash/pkg/logger"
)

// AccountView holds the latest account-linkage snapshot and its
// aggregated hierarchy. The transform is pure; this use case only adds
// fetching and snapshot ownership.
type AccountView struct {
	feed domrepo.AccountFeed
	log  *xlogger.Logger

	mu   sync.RWMutex
	rows []models.AccountLinkage
	tree []models.User
}

// NewAccountView creates the account hierarchy use case.
func NewAccountView(feed domrepo.AccountFeed, log *xlogger.Logger) *AccountView {
	return &AccountView{feed: feed, log: log}
}

// Refresh fetches the flat linkage list and rebuilds the tree. The
// previous tree stays visible if the fetch fails.
func (u *AccountView) Refresh(ctx context.Context, botID string) error {
	rows, err := u.feed.Fetch(ctx, botID)
	if err != nil {
		return fmt.Errorf("account refresh: %w", err)
	}

	tree := hierarchy.Build(rows, u.log)

	u.mu.Lock()
	u.rows = rows
	u.tree = tree
	u.mu.Unlock()

	u.log.Info("account hierarchy rebuilt",
		xlogger.Int("rows", len(rows)),
		xlogger.Int("users", len(tree)))
	return nil
}

// Hierarchy returns the latest aggregated tree.
func (u *AccountView) Hierarchy() []models.User {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.tree == nil {
		return []models.User{}
	}
	return u.tree
}

// Totals counts nodes over the latest tree.
func (u *AccountView) Totals() models.HierarchyTotals {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return hierarchy.Totals(u.tree)
}

// DisplayName implements OwnerDirectory using the latest linkage rows.
func (u *AccountView) DisplayName(userID string) (string, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, row := range u.rows {
		if row.OwnerUserID == userID && row.OwnerDisplayName != "" {
			return row.OwnerDisplayName, true
		}
	}
	return "", false
}
