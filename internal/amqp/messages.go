package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// DatasetChangedMessage announces that the dataset reached Revision. It
// carries no entity data; consumers reload the dataset from storage.
type DatasetChangedMessage struct {
	Revision  int64     `json:"revision"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDatasetChangedMessage(revision int64, action string) *DatasetChangedMessage {
	return &DatasetChangedMessage{
		Revision:  revision,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *DatasetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DatasetChangedMessageFromJSON(data []byte) (*DatasetChangedMessage, error) {
	var msg DatasetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Revision < 0 {
		return nil, fmt.Errorf("negative revision %d", msg.Revision)
	}
	return &msg, nil
}
