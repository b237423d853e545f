package services

// AdminPolicy decides who may run administrative commands.
type AdminPolicy interface {
	IsAdmin(userID int64) bool
}

// StaticAdmins is a fixed set of admin user ids.
type StaticAdmins map[int64]struct{}

// NewStaticAdmins builds a StaticAdmins from ids.
func NewStaticAdmins(ids ...int64) StaticAdmins {
	s := make(StaticAdmins, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// IsAdmin implements AdminPolicy.
func (s StaticAdmins) IsAdmin(userID int64) bool {
	_, ok := s[userID]
	return ok
}
