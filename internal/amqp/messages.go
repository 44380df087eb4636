package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// DirtyRowMessage announces a locally changed row to the sync service. It
// carries identity only; the service reads the row itself.
type DirtyRowMessage struct {
	Table       string    `json:"table"`
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AnnouncedAt time.Time `json:"announced_at"`
}

func NewDirtyRowMessage(table, id, userID string) *DirtyRowMessage {
	return &DirtyRowMessage{
		Table:       table,
		ID:          id,
		UserID:      userID,
		AnnouncedAt: time.Now().UTC(),
	}
}

func (m *DirtyRowMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DirtyRowMessageFromJSON(data []byte) (*DirtyRowMessage, error) {
	var msg DirtyRowMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SyncAck is sent back by the sync service once rows have been stored
// remotely.
type SyncAck struct {
	Table    string    `json:"table"`
	UserID   string    `json:"user_id"`
	IDs      []string  `json:"ids"`
	SyncedAt time.Time `json:"synced_at"`
}

func (a *SyncAck) Validate() error {
	switch {
	case a.Table == "":
		return errors.New("ack without table")
	case a.UserID == "":
		return errors.New("ack without user_id")
	case len(a.IDs) == 0:
		return errors.New("ack without ids")
	}
	return nil
}

func (a *SyncAck) ToJSON() ([]byte, error) {
	return json.Marshal(a)
}

func SyncAckFromJSON(data []byte) (*SyncAck, error) {
	var ack SyncAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return nil, err
	}
	if err := ack.Validate(); err != nil {
		return nil, err
	}
	return &ack, nil
}
