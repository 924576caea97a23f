package model

import (
	"strconv"
	"strings"
	"time"

	"telegram-smm-autoboost/internal/domain"
)

// DefaultOrderQuantity is used by auto-dispatch when the user never set one.
const DefaultOrderQuantity = 1000

// CredentialField names one editable field of the SMM credential.
type CredentialField string

const (
	FieldURL      CredentialField = "url"
	FieldKey      CredentialField = "key"
	FieldService  CredentialField = "service"
	FieldQuantity CredentialField = "quantity"
)

func (f CredentialField) Valid() bool {
	switch f {
	case FieldURL, FieldKey, FieldService, FieldQuantity:
		return true
	}
	return false
}

// Credential is the subset of UserConfig needed to call a panel.
type Credential struct {
	APIURL    string
	APIKey    string
	ServiceID string
}

// UserConfig is the per-user record: panel credential plus monitored channels.
// Nil pointers mean "not set".
type UserConfig struct {
	UserID          int64
	APIURL          *string
	APIKey          *string
	ServiceID       *string
	DefaultQuantity *int
	Channels        []ChannelRef
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewUserConfig returns an empty config for userID.
func NewUserConfig(userID int64) *UserConfig {
	now := time.Now()
	return &UserConfig{UserID: userID, CreatedAt: now, UpdatedAt: now}
}

// HasCredential reports whether url, key and service id are all present.
// Default quantity is deliberately not part of the check.
func (c *UserConfig) HasCredential() bool {
	return c != nil && nonEmpty(c.APIURL) && nonEmpty(c.APIKey) && nonEmpty(c.ServiceID)
}

// HasAnyCredentialField is true when at least one credential field is set.
func (c *UserConfig) HasAnyCredentialField() bool {
	return c != nil && (c.APIURL != nil || c.APIKey != nil || c.ServiceID != nil || c.DefaultQuantity != nil)
}

// Credential returns the panel credential or ErrCredentialMissing.
func (c *UserConfig) Credential() (Credential, error) {
	if !c.HasCredential() {
		return Credential{}, domain.ErrCredentialMissing
	}
	return Credential{APIURL: *c.APIURL, APIKey: *c.APIKey, ServiceID: *c.ServiceID}, nil
}

// OrderQuantity is the quantity auto-dispatch orders with.
func (c *UserConfig) OrderQuantity() int {
	if c.DefaultQuantity != nil && *c.DefaultQuantity > 0 {
		return *c.DefaultQuantity
	}
	return DefaultOrderQuantity
}

// SetCredential replaces all four credential fields at once.
func (c *UserConfig) SetCredential(apiURL, apiKey, serviceID string, quantity int) {
	c.APIURL = &apiURL
	c.APIKey = &apiKey
	c.ServiceID = &serviceID
	c.DefaultQuantity = &quantity
	c.Touch()
}

// SetField writes exactly one credential field. value must already be validated.
func (c *UserConfig) SetField(field CredentialField, value string) error {
	switch field {
	case FieldURL:
		c.APIURL = &value
	case FieldKey:
		c.APIKey = &value
	case FieldService:
		c.ServiceID = &value
	case FieldQuantity:
		q, err := strconv.Atoi(value)
		if err != nil || q <= 0 {
			return domain.ErrInvalidQuantity
		}
		c.DefaultQuantity = &q
	default:
		return domain.ErrInvalidArgument
	}
	c.Touch()
	return nil
}

// ClearCredential drops every credential field and keeps the channels.
func (c *UserConfig) ClearCredential() {
	c.APIURL, c.APIKey, c.ServiceID, c.DefaultQuantity = nil, nil, nil, nil
	c.Touch()
}

// HasChannel reports whether ref is already monitored.
func (c *UserConfig) HasChannel(ref ChannelRef) bool {
	for _, ch := range c.Channels {
		if ch.Matches(ref) {
			return true
		}
	}
	return false
}

// AddChannel appends ref unless present. It returns false for a duplicate.
func (c *UserConfig) AddChannel(ref ChannelRef) bool {
	if c.HasChannel(ref) {
		return false
	}
	c.Channels = append(c.Channels, ref)
	c.Touch()
	return true
}

// RemoveChannel drops ref. It returns false when ref was not monitored.
func (c *UserConfig) RemoveChannel(ref ChannelRef) bool {
	out := c.Channels[:0:0]
	removed := false
	for _, ch := range c.Channels {
		if ch.Matches(ref) {
			removed = true
			continue
		}
		out = append(out, ch)
	}
	if removed {
		c.Channels = out
		c.Touch()
	}
	return removed
}

// Clone returns a deep copy so stores never share pointers with callers.
func (c *UserConfig) Clone() *UserConfig {
	if c == nil {
		return nil
	}
	cp := *c
	cp.APIURL = cloneStr(c.APIURL)
	cp.APIKey = cloneStr(c.APIKey)
	cp.ServiceID = cloneStr(c.ServiceID)
	if c.DefaultQuantity != nil {
		q := *c.DefaultQuantity
		cp.DefaultQuantity = &q
	}
	cp.Channels = append([]ChannelRef(nil), c.Channels...)
	return &cp
}

func (c *UserConfig) Touch() { c.UpdatedAt = time.Now() }

func nonEmpty(s *string) bool { return s != nil && strings.TrimSpace(*s) != "" }

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
