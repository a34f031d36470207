package hierarchy

import (
	"sort"
	"strings"

	"TradeDash/internal/domain/models"
	xlogger "TradeDash/pkg/logger"
)

// Defaults applied to blank linkage fields so rendered output is
// always well-formed.
const (
	unknownBalance = "$0.00"
	unknownType    = "Unknown Type"
	unknownName    = "Unknown"
	unknownStatus  = "unknown"
)

// Build groups a flat account-linkage list into the three-level
// user -> sub-account -> trading-account tree. Rows missing a grouping
// key are skipped with a warning. Users are sorted by display name;
// sub-accounts and trading accounts keep first-seen order.
func Build(rows []models.AccountLinkage, log *xlogger.Logger) []models.User {
	byUser := make(map[string]*models.User)
	order := make([]string, 0, len(rows))

	for i, row := range rows {
		if row.OwnerUserID == "" || row.SubAccountID == "" {
			if log != nil {
				log.Warn("skipping linkage row without grouping keys",
					xlogger.Int("row", i),
					xlogger.String("owner_user_id", row.OwnerUserID),
					xlogger.String("sub_account_id", row.SubAccountID))
			}
			continue
		}

		user, ok := byUser[row.OwnerUserID]
		if !ok {
			user = &models.User{
				ID:          row.OwnerUserID,
				Name:        defaultString(row.OwnerDisplayName, unknownName),
				Email:       row.OwnerEmail,
				SubAccounts: []models.SubAccount{},
			}
			byUser[row.OwnerUserID] = user
			order = append(order, row.OwnerUserID)
		}

		sub := findSubAccount(user, row.SubAccountID)
		if sub == nil {
			user.SubAccounts = append(user.SubAccounts, models.SubAccount{
				ID:              row.SubAccountID,
				Name:            defaultString(row.SubAccountName, unknownName),
				APIName:         row.APIName,
				Status:          defaultString(row.ConnectionStatus, unknownStatus),
				TradingAccounts: []models.TradingAccount{},
			})
			sub = &user.SubAccounts[len(user.SubAccounts)-1]
		}

		sub.TradingAccounts = append(sub.TradingAccounts, models.TradingAccount{
			ID:      row.TradingAccountID,
			Number:  row.TradingAccountNumber,
			Type:    defaultString(row.TradingAccountType, unknownType),
			Balance: defaultString(row.TradingAccountBalance, unknownBalance),
			IsLive:  row.IsLive,
			Status:  defaultString(row.ConnectionStatus, unknownStatus),
		})
	}

	users := make([]models.User, 0, len(order))
	for _, id := range order {
		users = append(users, *byUser[id])
	}
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].Name) < strings.ToLower(users[j].Name)
	})
	return users
}

// Totals counts nodes over a built tree.
func Totals(users []models.User) models.HierarchyTotals {
	t := models.HierarchyTotals{TotalUsers: len(users)}
	for _, u := range users {
		t.TotalSubAccounts += len(u.SubAccounts)
		for _, s := range u.SubAccounts {
			t.TotalTradingAccounts += len(s.TradingAccounts)
		}
	}
	return t
}

func findSubAccount(u *models.User, id string) *models.SubAccount {
	for i := range u.SubAccounts {
		if u.SubAccounts[i].ID == id {
			return &u.SubAccounts[i]
		}
	}
	return nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
