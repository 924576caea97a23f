package model

import (
	"github.com/shopspring/decimal"
)

// OrderAction is the panel "action" form field.
type OrderAction string

const (
	ActionBalance OrderAction = "balance"
	ActionAdd     OrderAction = "add"
)

// OrderSource tells whether an order was placed by the user or by auto-dispatch.
type OrderSource string

const (
	SourceManual OrderSource = "manual"
	SourceAuto   OrderSource = "auto"
)

// OrderRequest is one call to a panel.
type OrderRequest struct {
	Credential Credential
	Action     OrderAction
	Link       string
	Quantity   int
}

// Balance is the answer to a balance query.
type Balance struct {
	Amount   decimal.Decimal
	Currency string
}

// FormatAmount renders a panel amount with the scale the panel sent it in,
// so "10.50" stays "10.50".
func FormatAmount(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// OrderReceipt is a successfully placed order. Price is nil when the panel omits it.
type OrderReceipt struct {
	OrderID string
	Price   *decimal.Decimal
}

// ChannelPostEvent is a new post seen in a channel. Aliases hold other
// identifiers of the same channel (a public channel's numeric id).
type ChannelPostEvent struct {
	Channel   ChannelRef
	Aliases   []ChannelRef
	PostLink  string
	MessageID int
}

// Refs returns the primary ref followed by the aliases.
func (e ChannelPostEvent) Refs() []ChannelRef {
	out := make([]ChannelRef, 0, 1+len(e.Aliases))
	if !e.Channel.IsZero() {
		out = append(out, e.Channel)
	}
	for _, a := range e.Aliases {
		if !a.IsZero() {
			out = append(out, a)
		}
	}
	return out
}

// Subscriber is a fully configured user monitoring a channel.
type Subscriber struct {
	UserID int64
	Config *UserConfig
}
