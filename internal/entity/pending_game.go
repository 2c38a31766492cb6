package entity

// PendingGame is a created-but-unmatched game offer awaiting a second player.
// Owned solely by the lobby.
type PendingGame struct {
	ID          string `json:"id"`
	CreatorID   string `json:"creatorId"`
	CreatorName string `json:"creatorName"`
	Bet         int64  `json:"bet"`
}
