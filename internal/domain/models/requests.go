package models

// Requests for the dashboard HTTP endpoints. Defined in domain for consistency and reuse.

type RefreshRequest struct {
	BotID      string `query:"bot_id" json:"bot_id" validate:"required"`
	OwnerScope string `query:"owner_scope" json:"owner_scope"`
	AdminView  bool   `query:"admin_view" json:"admin_view"`
}

type SignalsRequest struct {
	Search string `query:"search" json:"search"`
	Source string `query:"source" json:"source" default:"all" validate:"oneof=all raw executions"`
	Status string `query:"status" json:"status" default:"all" validate:"oneof=all success failed pending"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Owner  string `query:"owner" json:"owner"`
}

type HistoryRequest struct {
	BotID string `query:"bot_id" json:"bot_id" validate:"required"`
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=2000"`
}
