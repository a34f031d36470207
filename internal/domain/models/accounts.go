package models

// AccountLinkage is one flat row describing a trading account connected
// to a sub-account owned by a user. Rows arrive denormalized from the
// account service; the hierarchy aggregator groups them.
type AccountLinkage struct {
	OwnerUserID           string `json:"ownerUserId"`
	OwnerDisplayName      string `json:"ownerDisplayName"`
	OwnerEmail            string `json:"ownerEmail"`
	SubAccountID          string `json:"subAccountId"`
	SubAccountName        string `json:"subAccountName"`
	APIName               string `json:"apiName"`
	APIID                 string `json:"apiId"`
	TradingAccountID      string `json:"tradingAccountId"`
	TradingAccountNumber  string `json:"tradingAccountNumber"`
	TradingAccountType    string `json:"tradingAccountType"`
	TradingAccountBalance string `json:"tradingAccountBalance"`
	IsLive                bool   `json:"isLive"`
	ConnectionStatus      string `json:"connectionStatus"`
}

// TradingAccount is a leaf of the account hierarchy.
type TradingAccount struct {
	ID      string `json:"id"`
	Number  string `json:"number"`
	Type    string `json:"type"`
	Balance string `json:"balance"`
	IsLive  bool   `json:"isLive"`
	Status  string `json:"status"`
}

// SubAccount groups the trading accounts linked through one API key.
type SubAccount struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	APIName         string           `json:"apiName"`
	Status          string           `json:"status"`
	TradingAccounts []TradingAccount `json:"tradingAccounts"`
}

// User is the top level of the account hierarchy.
type User struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	SubAccounts []SubAccount `json:"subAccounts"`
}

// HierarchyTotals are simple counts over a built tree.
type HierarchyTotals struct {
	TotalUsers           int `json:"totalUsers"`
	TotalSubAccounts     int `json:"totalSubAccounts"`
	TotalTradingAccounts int `json:"totalTradingAccounts"`
}
