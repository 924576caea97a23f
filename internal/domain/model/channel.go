package model

import (
	"fmt"
	"strconv"
	"strings"

	"telegram-smm-autoboost/internal/domain"
)

const privateChannelPrefix = "id:"

// ChannelRef identifies a monitored channel: a public handle ("@name") or a
// private numeric id ("id:-100123"). Handles are stored lower-cased so the
// string form can be compared directly.
type ChannelRef struct {
	Handle string
	ID     int64
}

// PublicChannel builds a ref from a Telegram username (with or without "@").
func PublicChannel(username string) ChannelRef {
	return ChannelRef{Handle: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))}
}

// PrivateChannel builds a ref from a numeric chat id.
func PrivateChannel(id int64) ChannelRef { return ChannelRef{ID: id} }

// ParseChannelRef accepts "@name" or "id:<integer>".
func ParseChannelRef(s string) (ChannelRef, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "@"):
		name := s[1:]
		if name == "" || strings.ContainsAny(name, " \t\n@/") {
			return ChannelRef{}, domain.ErrInvalidChannel
		}
		return PublicChannel(name), nil
	case strings.HasPrefix(strings.ToLower(s), privateChannelPrefix):
		id, err := strconv.ParseInt(strings.TrimSpace(s[len(privateChannelPrefix):]), 10, 64)
		if err != nil || id == 0 {
			return ChannelRef{}, domain.ErrInvalidChannel
		}
		return PrivateChannel(id), nil
	default:
		return ChannelRef{}, domain.ErrInvalidChannel
	}
}

func (r ChannelRef) IsZero() bool    { return r.Handle == "" && r.ID == 0 }
func (r ChannelRef) IsPrivate() bool { return r.Handle == "" && r.ID != 0 }

// String is the canonical stored form.
func (r ChannelRef) String() string {
	if r.Handle != "" {
		return "@" + r.Handle
	}
	if r.ID != 0 {
		return fmt.Sprintf("%s%d", privateChannelPrefix, r.ID)
	}
	return ""
}

// Matches compares handles case-insensitively and ids exactly.
func (r ChannelRef) Matches(o ChannelRef) bool {
	if r.Handle != "" || o.Handle != "" {
		return strings.EqualFold(r.Handle, o.Handle)
	}
	return r.ID != 0 && r.ID == o.ID
}
