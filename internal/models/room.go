// Package models defines the room-state data structures shared across the application.
package models

// Participant is a live, connection-bound member of a room.
type Participant struct {
	ID        string `json:"_id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	Owner     bool   `json:"owner"`
	Moderator bool   `json:"moderator"`
	// SID is the websocket connection identifier this participant is bound to.
	SID string `json:"sid"`
}

// Reduce strips the connection binding and role flags from a participant.
// Ban and mute records must survive reconnection under a new connection ID,
// so they carry identity only.
func (p Participant) Reduce() ReducedParticipant {
	return ReducedParticipant{
		ID:       p.ID,
		Username: p.Username,
		Avatar:   p.Avatar,
	}
}

// ReducedParticipant is a participant identity without its connection binding.
type ReducedParticipant struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// AnimeInfo is the content descriptor bound to a room at creation.
type AnimeInfo struct {
	Slug    string `json:"slug"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
}

// SessionBinding maps a live connection back to its room and user, used for
// cleanup when the connection drops.
type SessionBinding struct {
	Room   string `json:"room"`
	UserID string `json:"userId"`
}

// FindBySID returns the participant bound to the given connection ID, or nil.
func FindBySID(participants []Participant, sid string) *Participant {
	for i := range participants {
		if participants[i].SID == sid {
			return &participants[i]
		}
	}
	return nil
}

// FindByID returns the participant with the given user ID, or nil.
func FindByID(participants []Participant, userID string) *Participant {
	for i := range participants {
		if participants[i].ID == userID {
			return &participants[i]
		}
	}
	return nil
}

// ContainsID reports whether the reduced-record list contains the given user ID.
func ContainsID(records []ReducedParticipant, userID string) bool {
	for _, r := range records {
		if r.ID == userID {
			return true
		}
	}
	return false
}

// FindReduced returns the reduced record with the given user ID, or nil.
func FindReduced(records []ReducedParticipant, userID string) *ReducedParticipant {
	for i := range records {
		if records[i].ID == userID {
			return &records[i]
		}
	}
	return nil
}
