package entity

import (
	"sort"
	"strings"
	"time"
)

// DefaultDisplayName is shown when a participant never set a display name.
const DefaultDisplayName = "Unknown User"

// ChatRoom is the persistent two-party conversation container. Field names
// follow the document shape in the store: participants is an unordered pair of
// user ids, participantNames is a snapshot taken at room creation, and
// unreadCount holds one counter per participant.
type ChatRoom struct {
	ID               string            `json:"id" firestore:"id"`
	Participants     []string          `json:"participants" firestore:"participants"`
	ParticipantNames map[string]string `json:"participant_names" firestore:"participantNames"`
	CreatedAt        time.Time         `json:"created_at" firestore:"createdAt,serverTimestamp"`
	LastMessage      string            `json:"last_message" firestore:"lastMessage"`
	LastMessageTime  time.Time         `json:"last_message_time" firestore:"lastMessageTime,serverTimestamp"`
	UnreadCount      map[string]int    `json:"unread_count" firestore:"unreadCount"`
	ProductID        string            `json:"product_id,omitempty" firestore:"productId,omitempty"`
	ProductName      string            `json:"product_name,omitempty" firestore:"productName,omitempty"`
}

// HasParticipant reports whether userID is one of the room's participants.
func (r *ChatRoom) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not viewerID, or "" when
// the room has no such participant.
func (r *ChatRoom) OtherParticipant(viewerID string) string {
	for _, p := range r.Participants {
		if p != viewerID {
			return p
		}
	}
	return ""
}

// OtherParticipantName returns the display name snapshot of the counterpart,
// falling back to DefaultDisplayName.
func (r *ChatRoom) OtherParticipantName(viewerID string) string {
	other := r.OtherParticipant(viewerID)
	if other == "" {
		return DefaultDisplayName
	}
	if name, ok := r.ParticipantNames[other]; ok && name != "" {
		return name
	}
	return DefaultDisplayName
}

// UnreadFor returns the viewer's unread counter, treating a missing entry as
// zero.
func (r *ChatRoom) UnreadFor(viewerID string) int {
	if r.UnreadCount == nil {
		return 0
	}
	return r.UnreadCount[viewerID]
}

// PairKey is the deduplication key for a participant pair: the sorted ids
// joined with an underscore. Two rooms for the same pair always share a key,
// whichever order the pair was stored in.
func (r *ChatRoom) PairKey() string {
	ids := make([]string, len(r.Participants))
	copy(ids, r.Participants)
	sort.Strings(ids)
	return strings.Join(ids, "_")
}
