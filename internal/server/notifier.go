package server

// SystemAuthor is the synthetic author attached to room announcements so
// clients can render them like chat messages.
type SystemAuthor struct {
	ID       string `json:"_id"`
	System   bool   `json:"system"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// SystemNotifier broadcasts room announcements under the bot identity.
type SystemNotifier struct {
	broadcast Broadcaster
	author    SystemAuthor
}

func NewSystemNotifier(b Broadcaster, botName, botAvatar string) *SystemNotifier {
	return &SystemNotifier{
		broadcast: b,
		author: SystemAuthor{
			ID:       "1337",
			System:   true,
			Username: botName,
			Avatar:   botAvatar,
		},
	}
}

// Send announces content to every member of the room.
func (n *SystemNotifier) Send(room, content string) {
	n.broadcast.ToRoom(room, EventSystemMessage, map[string]any{
		"content": content,
		"author":  n.author,
	})
}
