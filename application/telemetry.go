package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	StatusOnline       = "online"
	StatusOffline      = "offline"
	StatusManualStatus = "manual_status"
)

// Decimal is a float encoded with at least one fractional digit, so 60
// goes on the wire as 60.0.
type Decimal float64

func (d Decimal) MarshalJSON() ([]byte, error) {
	f := float64(d)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("unsupported value: %v", f)
	}

	b := strconv.AppendFloat(nil, f, 'f', -1, 64)
	if bytes.IndexByte(b, '.') < 0 {
		b = append(b, '.', '0')
	}
	return b, nil
}

func decimalPtr(v float64) *Decimal {
	d := Decimal(v)
	return &d
}

// PayloadFields selects the optional keys of the data payload.
type PayloadFields struct {
	NodeID    bool
	Position  bool
	Timestamp bool
}

func AllPayloadFields() PayloadFields {
	return PayloadFields{NodeID: true, Position: true, Timestamp: true}
}

type TelemetryMessage struct {
	NodeID      string   `json:"node_id,omitempty"`
	Temperature Decimal  `json:"temperature"`
	Humidity    Decimal  `json:"humidity"`
	PositionX   *Decimal `json:"pos_x,omitempty"`
	PositionY   *Decimal `json:"pos_y,omitempty"`
	Timestamp   *int64   `json:"timestamp,omitempty"`
}

func NewTelemetryMessage(r Reading, id NodeIdentity, fields PayloadFields, now time.Time) TelemetryMessage {
	m := TelemetryMessage{
		Temperature: Decimal(r.Temperature),
		Humidity:    Decimal(r.Humidity),
	}
	if fields.NodeID {
		m.NodeID = id.ID
	}
	if fields.Position {
		m.PositionX = decimalPtr(id.PositionX)
		m.PositionY = decimalPtr(id.PositionY)
	}
	if fields.Timestamp {
		ts := now.Unix()
		m.Timestamp = &ts
	}
	return m
}

func EncodeTelemetry(m TelemetryMessage) ([]byte, error) {
	return json.Marshal(m)
}

func ParseTelemetry(payload []byte) (TelemetryMessage, error) {
	var m TelemetryMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return TelemetryMessage{}, fmt.Errorf("parse telemetry: %w", err)
	}
	return m, nil
}

type StatusMessage struct {
	NodeID    string `json:"node_id"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Uptime    int64  `json:"uptime"`
}

func NewStatusMessage(nodeID, status string, now time.Time, uptime time.Duration) StatusMessage {
	return StatusMessage{
		NodeID:    nodeID,
		Status:    status,
		Timestamp: now.Unix(),
		Uptime:    int64(uptime / time.Second),
	}
}

func EncodeStatus(m StatusMessage) ([]byte, error) {
	return json.Marshal(m)
}

func ParseStatus(payload []byte) (StatusMessage, error) {
	var m StatusMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return StatusMessage{}, fmt.Errorf("parse status: %w", err)
	}
	if m.Status == "" {
		return StatusMessage{}, fmt.Errorf("parse status: missing status")
	}
	return m, nil
}

// OfflineStatusPayload is the last-will payload left with the broker.
func OfflineStatusPayload(nodeID string) []byte {
	b, _ := json.Marshal(map[string]string{"node_id": nodeID, "status": StatusOffline})
	return b
}

// Topics are the per-node channels under a base topic.
type Topics struct {
	Data    string
	Status  string
	Control string
}

func NewTopics(base, nodeID string) Topics {
	data := strings.TrimSuffix(base, "/")
	if nodeID != "" {
		data += "/" + nodeID
	}
	return Topics{
		Data:    data,
		Status:  data + "/status",
		Control: data + "/control",
	}
}
