package models

// Role identifies a player's authority within a room.
type Role string

const (
	RoleLeader Role = "leader"
	RoleMember Role = "member"
)

// Player represents one participant in a room. ConnectionID is the identity
// of the underlying socket; exactly one room may claim a ConnectionID at a
// time. Wins mirrors the durable store and is advisory only.
type Player struct {
	ConnectionID string `json:"id"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	Wins         int    `json:"wins"`
	Score        int    `json:"score"`
}

// IsLeader reports whether the player holds room leadership.
func (p *Player) IsLeader() bool {
	return p.Role == RoleLeader
}
