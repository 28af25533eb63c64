package room

import "watchparty/internal/models"

// CanModerate reports whether requester may perform a moderation action
// (ban, kick, mute) on target.
//
// The rule set is asymmetric: the owner can act on anyone but themselves,
// moderators can act on plain participants only, and nobody can act on
// themselves.
func CanModerate(requester, target *models.Participant) bool {
	if requester == nil || target == nil {
		return false
	}

	// Only moderators can perform moderation operations.
	if !requester.Moderator {
		return false
	}

	// Users cannot moderate themselves.
	if requester.ID == target.ID {
		return false
	}

	// The room owner can moderate anyone else.
	if requester.Owner {
		return true
	}

	// Moderators cannot moderate other moderators.
	if target.Moderator {
		return false
	}

	return true
}
