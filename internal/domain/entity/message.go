package entity

import "time"

// Message lives in a room's message collection; its room is given by
// containment, not by a stored field. The read flag only ever transitions
// false to true, and only for messages the reader did not send.
type Message struct {
	ID         string    `json:"id" firestore:"id"`
	Text       string    `json:"text" firestore:"text"`
	Sender     string    `json:"sender" firestore:"sender"`
	SenderName string    `json:"sender_name" firestore:"senderName"`
	Timestamp  time.Time `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	Read       bool      `json:"read" firestore:"read"`
}
