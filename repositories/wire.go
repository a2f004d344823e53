package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of storage.Message, see proto/storage/message.proto.
const (
	fieldID           protowire.Number = 1
	fieldConversation protowire.Number = 2
	fieldSender       protowire.Number = 3
	fieldBody         protowire.Number = 4
	fieldAt           protowire.Number = 5
)

func encodeMessage(message DiskMessage) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendString(b, message.ID.String())
	b = protowire.AppendTag(b, fieldConversation, protowire.BytesType)
	b = protowire.AppendString(b, message.Conversation)
	b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
	b = protowire.AppendString(b, message.Sender)
	b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
	b = protowire.AppendString(b, message.Body)
	b = protowire.AppendTag(b, fieldAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(message.At.UnixNano()))
	return b
}

// decodeMessage skips unknown fields so older readers accept newer records.
func decodeMessage(b []byte) (DiskMessage, error) {
	var message DiskMessage
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return DiskMessage{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && num <= fieldBody:
			value, n := protowire.ConsumeString(b)
			if n < 0 {
				return DiskMessage{}, protowire.ParseError(n)
			}
			b = b[n:]
			if err := message.setString(num, value); err != nil {
				return DiskMessage{}, err
			}
		case typ == protowire.VarintType && num == fieldAt:
			value, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return DiskMessage{}, protowire.ParseError(n)
			}
			b = b[n:]
			message.At = time.Unix(0, int64(value)).UTC()
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return DiskMessage{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return message, nil
}

func (m *DiskMessage) setString(num protowire.Number, value string) error {
	switch num {
	case fieldID:
		id, err := uuid.Parse(value)
		if err != nil {
			return fmt.Errorf("invalid message id %q: %w", value, err)
		}
		m.ID = id
	case fieldConversation:
		m.Conversation = value
	case fieldSender:
		m.Sender = value
	case fieldBody:
		m.Body = value
	}
	return nil
}
