package hierarchy

import (
	"testing"

	"TradeDash/internal/domain/models"
)

func row(user, userName, sub, subName, acct string) models.AccountLinkage {
	return models.AccountLinkage{
		OwnerUserID:           user,
		OwnerDisplayName:      userName,
		SubAccountID:          sub,
		SubAccountName:        subName,
		TradingAccountID:      acct,
		TradingAccountNumber:  "N-" + acct,
		TradingAccountType:    "demo",
		TradingAccountBalance: "$100.00",
		ConnectionStatus:      "connected",
	}
}

func TestBuildGroupsThreeLevels(t *testing.T) {
	rows := []models.AccountLinkage{
		row("u1", "Alice", "c1", "Copy 1", "t1"),
		row("u1", "Alice", "c1", "Copy 1", "t2"),
		row("u1", "Alice", "c2", "Copy 2", "t3"),
	}

	users := Build(rows, nil)
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	u := users[0]
	if len(u.SubAccounts) != 2 {
		t.Fatalf("expected 2 sub-accounts, got %d", len(u.SubAccounts))
	}
	if got := len(u.SubAccounts[0].TradingAccounts); got != 2 {
		t.Fatalf("expected 2 trading accounts under c1, got %d", got)
	}
	if got := len(u.SubAccounts[1].TradingAccounts); got != 1 {
		t.Fatalf("expected 1 trading account under c2, got %d", got)
	}
}

func TestBuildSkipsRowsWithoutGroupingKeys(t *testing.T) {
	rows := []models.AccountLinkage{
		row("u1", "Alice", "c1", "Copy 1", "t1"),
		row("", "Ghost", "c9", "Orphan", "t9"),
		row("u2", "Bob", "", "", "t8"),
	}

	users := Build(rows, nil)
	if len(users) != 1 || users[0].ID != "u1" {
		t.Fatalf("expected only u1, got %v", users)
	}
}

func TestBuildAppliesDefaults(t *testing.T) {
	rows := []models.AccountLinkage{{
		OwnerUserID:  "u1",
		SubAccountID: "c1",
	}}

	users := Build(rows, nil)
	if users[0].Name != "Unknown" {
		t.Fatalf("expected default user name, got %q", users[0].Name)
	}
	acct := users[0].SubAccounts[0].TradingAccounts[0]
	if acct.Balance != "$0.00" {
		t.Fatalf("expected default balance, got %q", acct.Balance)
	}
	if acct.Type != "Unknown Type" {
		t.Fatalf("expected default type, got %q", acct.Type)
	}
	if acct.Status != "unknown" {
		t.Fatalf("expected default status, got %q", acct.Status)
	}
}

func TestBuildSortsUsersCaseInsensitively(t *testing.T) {
	rows := []models.AccountLinkage{
		row("u1", "bob", "c1", "s", "t1"),
		row("u2", "Alice", "c2", "s", "t2"),
		row("u3", "CARL", "c3", "s", "t3"),
	}

	users := Build(rows, nil)
	want := []string{"Alice", "bob", "CARL"}
	for i, u := range users {
		if u.Name != want[i] {
			t.Fatalf("expected order %v, got %s at %d", want, u.Name, i)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	rows := []models.AccountLinkage{
		row("u2", "Bob", "c2", "s2", "t2"),
		row("u1", "Alice", "c1", "s1", "t1"),
	}
	a := Build(rows, nil)
	b := Build(rows, nil)
	if len(a) != len(b) {
		t.Fatalf("length diverged")
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("order diverged at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestTotals(t *testing.T) {
	rows := []models.AccountLinkage{
		row("u1", "Alice", "c1", "s", "t1"),
		row("u1", "Alice", "c1", "s", "t2"),
		row("u1", "Alice", "c2", "s", "t3"),
		row("u2", "Bob", "c3", "s", "t4"),
	}

	got := Totals(Build(rows, nil))
	want := models.HierarchyTotals{TotalUsers: 2, TotalSubAccounts: 3, TotalTradingAccounts: 4}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}
