package common

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// MessageType discriminates a STANDARD workflow message from a LOG
// message destined for the logging consumer.
type MessageType string

const (
	MessageTypeStandard MessageType = "STANDARD"
	MessageTypeLog      MessageType = "LOG"
)

// PathType classifies an indexed path (spec.md §3).
type PathType string

const (
	PathTypeFile          PathType = "FILE"
	PathTypeDirectory     PathType = "DIRECTORY"
	PathTypeLink          PathType = "LINK"
	PathTypeNotRecognised PathType = "NOT_RECOGNISED"
	PathTypeUnindexed     PathType = "UNINDEXED"
)

// PathDetail is one entry of a data.filelist — the unit that travels
// through index/transfer/archive and accumulates a retry count and,
// eventually, a failure reason.
type PathDetail struct {
	OriginalPath  string        `json:"original_path"`
	PathType      PathType      `json:"path_type"`
	LinkPath      string        `json:"link_path,omitempty"`
	Size          int64         `json:"size"`
	Mode          uint32        `json:"mode"`
	UID           int           `json:"uid"`
	GID           int           `json:"gid"`
	AccessTime    time.Time     `json:"access_time"`
	ObjectName    string        `json:"object_name,omitempty"`
	RetryCount    int           `json:"retry_count"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	Checksum      uint32        `json:"checksum,omitempty"`
}

// Details is the envelope's always-present section, carried and extended
// by every consumer that touches the message.
type Details struct {
	TransactionID string    `json:"transaction_id"`
	SubID         string    `json:"sub_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	User          string    `json:"user"`
	Group         string    `json:"group"`
	Target        string    `json:"target,omitempty"`
	APIAction     string    `json:"api_action"`
	JobLabel      string    `json:"job_label,omitempty"`
	State         string    `json:"state,omitempty"`
	Access        string    `json:"access,omitempty"`
	Secret        string    `json:"secret,omitempty"`
	Tenancy       string    `json:"tenancy,omitempty"`
	Compress      bool      `json:"compress,omitempty"`
	Route         []string  `json:"route"`
}

// AppendRoute records that consumerName has handled the message. Every
// consumer MUST call this before re-publishing (spec.md §4.1, testable
// property 2 in §8).
func (d *Details) AppendRoute(consumerName string) {
	d.Route = append(d.Route, consumerName)
}

// FileListData is the canonical shape of the data section for filelist-
// carrying messages.
type FileListData struct {
	FileList        []PathDetail `json:"filelist"`
	FileListRetries []int        `json:"filelist_retries,omitempty"`
}

// Message is the full three-section envelope (spec.md §4.1). Data holds
// the raw, possibly-still-compressed JSON for the data section; use
// DecodeData/EncodeData to move between it and a typed payload.
type Message struct {
	Details Details         `json:"details"`
	Data    json.RawMessage `json:"data"`
	Type    MessageType     `json:"type"`
}

// NewTransactionID mints a fresh transaction id (spec.md §3 — opaque
// external id, UUID as text).
func NewTransactionID() string {
	return uuid.New().String()
}

// EncodeData serialises payload into msg.Data, compressing it first when
// msg.Details.Compress is set.
func EncodeData(msg *Message, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message data: %w", err)
	}
	if !msg.Details.Compress {
		msg.Data = raw
		return nil
	}
	compressed, err := compressZlibBase64(raw)
	if err != nil {
		return fmt.Errorf("compress message data: %w", err)
	}
	encoded, err := json.Marshal(compressed)
	if err != nil {
		return fmt.Errorf("marshal compressed payload: %w", err)
	}
	msg.Data = encoded
	return nil
}

// DecodeData decompresses msg.Data (if msg.Details.Compress is set) and
// unmarshals it into out. Consumers must call this transparently
// regardless of whether the sender compressed (spec.md §4.1).
func DecodeData(msg *Message, out any) error {
	raw := []byte(msg.Data)
	if msg.Details.Compress {
		var encoded string
		if err := json.Unmarshal(msg.Data, &encoded); err != nil {
			return fmt.Errorf("unmarshal compressed envelope: %w", err)
		}
		decompressed, err := decompressZlibBase64(encoded)
		if err != nil {
			return fmt.Errorf("decompress message data: %w", err)
		}
		raw = decompressed
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal message data: %w", err)
	}
	return nil
}

func compressZlibBase64(raw []byte) (string, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decompressZlibBase64(encoded string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib read: %w", err)
	}
	return out, nil
}
