package model

import "time"

// Group is a named collection users can belong to.
type Group struct {
	ID        uint64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JSON returns the API representation of the group.
func (g *Group) JSON() map[string]any {
	return map[string]any{
		"id":         g.ID,
		"name":       g.Name,
		"created_at": g.CreatedAt,
		"updated_at": g.UpdatedAt,
	}
}

// UserGroupAssociation is the membership join row between a user and a
// group.  The (user_id, group_id) pair is the primary key; the row is
// owned exclusively by that pair and is removed when either side is
// deleted.
type UserGroupAssociation struct {
	UserID    uint64
	GroupID   uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}
