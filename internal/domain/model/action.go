package model

import (
	"strings"

	"telegram-smm-autoboost/internal/domain"
)

// Button payload tokens.
const (
	payloadMainMenu         = "menu"
	payloadSmmSettings      = "smm_settings"
	payloadAddSmm           = "add_smm"
	payloadEditSmm          = "edit_smm"
	payloadRemoveAPI        = "remove_api"
	payloadChannelSettings  = "channel_settings"
	payloadAddChannel       = "add_channel"
	payloadRemoveChannelMnu = "remove_channel"
	payloadCheckBalance     = "check_balance"
	payloadOrderViews       = "order_views"
	payloadCancel           = "cancel"

	editPrefix   = "edit_"
	removePrefix = "remove_"
)

// Action is the closed set of button actions. Only types in this file implement it.
type Action interface {
	Payload() string
	isAction()
}

type (
	OpenMainMenu          struct{}
	OpenSmmSettings       struct{}
	AddCredentialStart    struct{}
	OpenEditMenu          struct{}
	EditField             struct{ Field CredentialField }
	RemoveAPI             struct{}
	OpenChannelSettings   struct{}
	AddChannelStart       struct{}
	OpenRemoveChannelMenu struct{}
	// RemoveChannel carries the raw token too so a malformed or stale
	// selection can still be reported back to the user.
	RemoveChannel struct {
		Ref ChannelRef
		Raw string
	}
	CheckBalance struct{}
	StartOrder   struct{}
	CancelFlow   struct{}
)

func (OpenMainMenu) Payload() string          { return payloadMainMenu }
func (OpenSmmSettings) Payload() string       { return payloadSmmSettings }
func (AddCredentialStart) Payload() string    { return payloadAddSmm }
func (OpenEditMenu) Payload() string          { return payloadEditSmm }
func (a EditField) Payload() string           { return editPrefix + string(a.Field) }
func (RemoveAPI) Payload() string             { return payloadRemoveAPI }
func (OpenChannelSettings) Payload() string   { return payloadChannelSettings }
func (AddChannelStart) Payload() string       { return payloadAddChannel }
func (OpenRemoveChannelMenu) Payload() string { return payloadRemoveChannelMnu }
func (a RemoveChannel) Payload() string {
	if !a.Ref.IsZero() {
		return removePrefix + a.Ref.String()
	}
	return removePrefix + a.Raw
}
func (CheckBalance) Payload() string { return payloadCheckBalance }
func (StartOrder) Payload() string   { return payloadOrderViews }
func (CancelFlow) Payload() string   { return payloadCancel }

func (OpenMainMenu) isAction()          {}
func (OpenSmmSettings) isAction()       {}
func (AddCredentialStart) isAction()    {}
func (OpenEditMenu) isAction()          {}
func (EditField) isAction()             {}
func (RemoveAPI) isAction()             {}
func (OpenChannelSettings) isAction()   {}
func (AddChannelStart) isAction()       {}
func (OpenRemoveChannelMenu) isAction() {}
func (RemoveChannel) isAction()         {}
func (CheckBalance) isAction()          {}
func (StartOrder) isAction()            {}
func (CancelFlow) isAction()            {}

var exactActions = map[string]Action{
	payloadMainMenu:         OpenMainMenu{},
	payloadSmmSettings:      OpenSmmSettings{},
	payloadAddSmm:           AddCredentialStart{},
	payloadEditSmm:          OpenEditMenu{},
	payloadRemoveAPI:        RemoveAPI{},
	payloadChannelSettings:  OpenChannelSettings{},
	payloadAddChannel:       AddChannelStart{},
	payloadRemoveChannelMnu: OpenRemoveChannelMenu{},
	payloadCheckBalance:     CheckBalance{},
	payloadOrderViews:       StartOrder{},
	payloadCancel:           CancelFlow{},
}

// older clients sent the long field names
var editAliases = map[string]CredentialField{
	"api_url":    FieldURL,
	"api_key":    FieldKey,
	"service_id": FieldService,
}

// ParseAction turns a button payload into an Action. Exact tokens win over
// the "edit_" and "remove_" prefixes.
func ParseAction(payload string) (Action, error) {
	payload = strings.TrimSpace(payload)
	if a, ok := exactActions[payload]; ok {
		return a, nil
	}
	if rest, ok := strings.CutPrefix(payload, editPrefix); ok {
		field := CredentialField(rest)
		if alias, ok := editAliases[rest]; ok {
			field = alias
		}
		if !field.Valid() {
			return nil, domain.ErrUnknownAction
		}
		return EditField{Field: field}, nil
	}
	if rest, ok := strings.CutPrefix(payload, removePrefix); ok && rest != "" {
		ref, err := ParseChannelRef(rest)
		if err != nil {
			return RemoveChannel{Raw: rest}, nil
		}
		return RemoveChannel{Ref: ref, Raw: rest}, nil
	}
	return nil, domain.ErrUnknownAction
}
