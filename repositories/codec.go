package repositories

import (
	"fmt"
	"huddle/domain"
	"huddle/errors"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the stored message record. They are part of the on-disk
// format: never renumber, only append.
const (
	fieldID protowire.Number = iota + 1
	fieldKind
	fieldTeamID
	fieldSenderID
	fieldReceiverID
	fieldContent
	fieldType
	fieldMediaURL
	fieldIsRead
	fieldCreatedAt
)

const (
	fieldProfileID protowire.Number = iota + 1
	fieldProfileDisplayName
	fieldProfileAvatarURL
)

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendString(b, fieldID, m.ID)
	b = appendVarint(b, fieldKind, uint64(m.Kind))
	b = appendString(b, fieldTeamID, m.TeamID)
	b = appendString(b, fieldSenderID, m.SenderID)
	b = appendString(b, fieldReceiverID, m.ReceiverID)
	b = appendString(b, fieldContent, m.Content)
	b = appendString(b, fieldType, string(m.Type))
	b = appendString(b, fieldMediaURL, m.MediaURL)
	b = appendVarint(b, fieldIsRead, protowire.EncodeBool(m.IsRead))
	b = appendVarint(b, fieldCreatedAt, uint64(m.CreatedAt.UnixNano()))
	return b
}

func decodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	err := decodeFields(b, func(num protowire.Number, s string, v uint64) {
		switch num {
		case fieldID:
			m.ID = s
		case fieldKind:
			m.Kind = domain.ScopeKind(v)
		case fieldTeamID:
			m.TeamID = s
		case fieldSenderID:
			m.SenderID = s
		case fieldReceiverID:
			m.ReceiverID = s
		case fieldContent:
			m.Content = s
		case fieldType:
			m.Type = domain.MessageType(s)
		case fieldMediaURL:
			m.MediaURL = s
		case fieldIsRead:
			m.IsRead = protowire.DecodeBool(v)
		case fieldCreatedAt:
			m.CreatedAt = time.Unix(0, int64(v)).UTC()
		}
	})
	if err != nil {
		return domain.Message{}, err
	}
	if m.ID == "" {
		return domain.Message{}, fmt.Errorf("%w: message without id", errors.ErrCorruptedRecord)
	}
	return m, nil
}

func encodeProfile(p domain.Profile) []byte {
	var b []byte
	b = appendString(b, fieldProfileID, p.ID)
	b = appendString(b, fieldProfileDisplayName, p.DisplayName)
	b = appendString(b, fieldProfileAvatarURL, p.AvatarURL)
	return b
}

func decodeProfile(b []byte) (domain.Profile, error) {
	var p domain.Profile
	err := decodeFields(b, func(num protowire.Number, s string, _ uint64) {
		switch num {
		case fieldProfileID:
			p.ID = s
		case fieldProfileDisplayName:
			p.DisplayName = s
		case fieldProfileAvatarURL:
			p.AvatarURL = s
		}
	})
	return p, err
}

// decodeFields walks a record, handing string and varint fields to fn.
// Unknown field types are skipped so older binaries read newer records.
func decodeFields(b []byte, fn func(num protowire.Number, s string, v uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", errors.ErrCorruptedRecord, protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("%w: %w", errors.ErrCorruptedRecord, protowire.ParseError(n))
			}
			fn(num, s, 0)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: %w", errors.ErrCorruptedRecord, protowire.ParseError(n))
			}
			fn(num, "", v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %w", errors.ErrCorruptedRecord, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
