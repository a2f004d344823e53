package repositories

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is a human readable view of one raw badger entry.
type Record struct {
	Key       string
	Kind      string
	Timestamp string
	Entity    string
	Detail    string
}

const stampLayout = "2006-01-02 15:04:05.000"

// Describe decodes a raw key/value pair according to its key prefix.
// Unknown prefixes and undecodable values come back as RAW records.
func Describe(key string, value []byte) Record {
	record := Record{
		Key:       key,
		Kind:      "RAW",
		Timestamp: "-",
		Entity:    "-",
		Detail:    "size: " + strconv.Itoa(len(value)) + " bytes",
	}
	kind, _, _ := strings.Cut(key, ":")
	switch kind {
	case "msg":
		message, err := decodeMessage(value)
		if err != nil {
			return failed(record, err)
		}
		record.Kind = "MESSAGE"
		record.Timestamp = message.At.UTC().Format(stampLayout)
		record.Entity = message.ID.String()
		record.Detail = fmt.Sprintf("[%s] %s: %s", message.Conversation, message.Sender, message.Body)
	case "msgid":
		record.Kind = "MESSAGE_INDEX"
		record.Detail = "-> " + string(value)
	case "presence":
		var d diskPresence
		if err := unmarshal(value, &d); err != nil {
			return failed(record, err)
		}
		record.Kind = "PRESENCE"
		record.Timestamp = stamp(d.UpdatedAt)
		record.Entity = d.UserID
		record.Detail = fmt.Sprintf("handle=%s typing=%t target=%s", d.Handle, d.IsTyping, d.TypingTarget)
	case "conv":
		var d diskConversation
		if err := unmarshal(value, &d); err != nil {
			return failed(record, err)
		}
		record.Kind = "CONVERSATION"
		record.Timestamp = stamp(d.LastActive)
		record.Entity = d.ID
		record.Detail = "handle=" + d.Handle
	case "user":
		var d diskUser
		if err := unmarshal(value, &d); err != nil {
			return failed(record, err)
		}
		record.Kind = "USER"
		record.Timestamp = time.Unix(d.CreatedAt, 0).UTC().Format(stampLayout)
		record.Entity = d.ID
		record.Detail = d.Email
	}
	return record
}

func failed(record Record, err error) Record {
	record.Kind = "CORRUPT"
	record.Detail = err.Error()
	return record
}

func stamp(nanos int64) string {
	if nanos == 0 {
		return "-"
	}
	return time.Unix(0, nanos).UTC().Format(stampLayout)
}
