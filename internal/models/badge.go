package models

// BadgeCounts feeds the navigation chrome. Each count degrades
// independently: a failed source keeps its last-known value rather than
// blocking the other badges.
type BadgeCounts struct {
	UnreadMessages   int `json:"unread_messages"`
	NewClients       int `json:"new_clients"`
	PendingReferrals int `json:"pending_referrals"`
}
