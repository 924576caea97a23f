package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"telegram-smm-autoboost/internal/domain"
	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/repository"
	derror "telegram-smm-autoboost/internal/error"
	"telegram-smm-autoboost/internal/infra/logging"
	"telegram-smm-autoboost/internal/infra/metrics"
)

// Compile-time check
var _ ConversationUseCase = (*conversationUC)(nil)

// Translator resolves a message key. *i18n.Translator satisfies it.
type Translator interface {
	T(key string, args ...interface{}) string
}

// ConversationUseCase is the per-user dialogue state machine. Every method
// returns the reply to show; a returned error means the reply could not be
// built and the caller should show a generic failure.
type ConversationUseCase interface {
	Start(ctx context.Context, userID int64) (model.Reply, error)
	Cancel(ctx context.Context, userID int64) (model.Reply, error)
	Status(ctx context.Context, userID int64) (model.Reply, error)
	HandleAction(ctx context.Context, userID int64, action model.Action) (model.Reply, error)
	HandleText(ctx context.Context, userID int64, text string) (model.Reply, error)
}

// ConversationOptions tune input validation. AdminIDs see bot-wide totals
// in /status.
type ConversationOptions struct {
	MinKeyLength     int
	NumericServiceID bool
	AdminIDs         []int64
}

const maskedKey = "********"

type conversationUC struct {
	settings SettingsUseCase
	orders   OrderUseCase
	stats    StatsUseCase
	states   repository.StateRepository
	t        Translator
	opts     ConversationOptions
	admins   map[int64]struct{}
	log      *zerolog.Logger
}

// NewConversationUseCase wires the dialogue. stats may be nil, in which
// case admins get the plain status screen.
func NewConversationUseCase(settings SettingsUseCase, orders OrderUseCase, stats StatsUseCase, states repository.StateRepository, t Translator, opts ConversationOptions, logger *zerolog.Logger) *conversationUC {
	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}
	return &conversationUC{settings: settings, orders: orders, stats: stats, states: states, t: t, opts: opts, admins: admins, log: orNop(logger)}
}

// Start discards any pending flow, creates the user's record and shows the main menu.
func (c *conversationUC) Start(ctx context.Context, userID int64) (model.Reply, error) {
	defer logging.TraceDuration(c.log, "ConversationUC.Start")()
	if err := c.states.ClearState(ctx, userID); err != nil {
		return model.Reply{}, err
	}
	if _, err := c.settings.Ensure(ctx, userID); err != nil {
		return model.Reply{}, err
	}
	metrics.IncUsersStarted()
	return c.mainMenu(c.t.T("welcome")), nil
}

func (c *conversationUC) Cancel(ctx context.Context, userID int64) (model.Reply, error) {
	st, err := c.states.GetState(ctx, userID)
	if err != nil {
		return model.Reply{}, err
	}
	if st == nil {
		return c.mainMenu(c.t.T("nothing_to_cancel")), nil
	}
	if err := c.states.ClearState(ctx, userID); err != nil {
		return model.Reply{}, err
	}
	return c.mainMenu(c.t.T("cancelled")), nil
}

func (c *conversationUC) Status(ctx context.Context, userID int64) (model.Reply, error) {
	cfg, err := c.settings.Get(ctx, userID)
	if err != nil {
		return model.Reply{}, err
	}
	st, err := c.states.GetState(ctx, userID)
	if err != nil {
		return model.Reply{}, err
	}
	configured := c.t.T("status_not_configured")
	if cfg.HasCredential() {
		configured = c.t.T("status_configured")
	}
	awaiting := c.t.T("status_idle")
	if a := st.Awaiting(); a != model.AwaitingNothing {
		awaiting = string(a)
	}
	text := c.t.T("status", userID, configured, len(cfg.Channels), awaiting)
	if c.isAdmin(userID) && c.stats != nil {
		st, err := c.stats.Totals(ctx)
		if err != nil {
			c.log.Warn().Err(err).Int64("user_id", userID).Msg("status totals unavailable")
		} else {
			text += "\n\n" + c.t.T("status_admin", st.Users, st.ConfiguredUsers, st.Channels)
		}
	}
	return model.Reply{Text: text}, nil
}

func (c *conversationUC) isAdmin(userID int64) bool {
	_, ok := c.admins[userID]
	return ok
}

// HandleAction runs a button selection. Selections that start a flow
// overwrite whatever flow was pending.
func (c *conversationUC) HandleAction(ctx context.Context, userID int64, action model.Action) (model.Reply, error) {
	defer logging.TraceDuration(c.log, "ConversationUC.HandleAction")()
	switch a := action.(type) {
	case model.OpenMainMenu:
		if err := c.states.ClearState(ctx, userID); err != nil {
			return model.Reply{}, err
		}
		return c.mainMenu(c.t.T("welcome")), nil
	case model.OpenSmmSettings:
		return c.smmSettings(ctx, userID)
	case model.AddCredentialStart:
		return c.begin(ctx, userID, model.NewConversationState(model.FlowAddCredential), "prompt_api_url")
	case model.OpenEditMenu:
		return c.editMenu(ctx, userID)
	case model.EditField:
		return c.begin(ctx, userID, model.NewEditState(a.Field), "prompt_edit_"+string(a.Field))
	case model.RemoveAPI:
		had, err := c.settings.RemoveCredential(ctx, userID)
		if err != nil {
			return model.Reply{}, err
		}
		if !had {
			return c.withBack(c.t.T("edit_no_api"), model.OpenSmmSettings{}), nil
		}
		return c.withBack(c.t.T("api_removed"), model.OpenSmmSettings{}), nil
	case model.OpenChannelSettings:
		return c.channelSettings(ctx, userID)
	case model.AddChannelStart:
		return c.begin(ctx, userID, model.NewConversationState(model.FlowAddChannel), "prompt_channel")
	case model.OpenRemoveChannelMenu:
		return c.removeChannelMenu(ctx, userID)
	case model.RemoveChannel:
		return c.removeChannel(ctx, userID, a)
	case model.CheckBalance:
		return c.checkBalance(ctx, userID)
	case model.StartOrder:
		return c.begin(ctx, userID, model.NewConversationState(model.FlowPlaceOrder), "prompt_order_link")
	case model.CancelFlow:
		return c.Cancel(ctx, userID)
	default:
		return model.Reply{Text: c.t.T("unknown_action")}, nil
	}
}

// HandleText feeds free text into the pending flow. Invalid input re-prompts
// and leaves both the flow and the stored config untouched.
func (c *conversationUC) HandleText(ctx context.Context, userID int64, text string) (model.Reply, error) {
	defer logging.TraceDuration(c.log, "ConversationUC.HandleText")()
	st, err := c.states.GetState(ctx, userID)
	if err != nil {
		return model.Reply{}, err
	}
	if st == nil {
		return model.Reply{Text: c.t.T("idle_hint")}, nil
	}

	switch st.Awaiting() {
	case model.AwaitingAPIURL:
		v, err := model.ValidateHTTPURL(text, "invalid_url")
		if err != nil {
			return c.reprompt(err)
		}
		return c.advance(ctx, userID, st, model.CollectedAPIURL, v, "prompt_api_key")
	case model.AwaitingAPIKey:
		v, err := model.ValidateAPIKey(text, c.opts.MinKeyLength)
		if err != nil {
			return c.reprompt(err)
		}
		return c.advance(ctx, userID, st, model.CollectedAPIKey, v, "prompt_service_id")
	case model.AwaitingServiceID:
		v, err := model.ValidateServiceID(text, c.opts.NumericServiceID)
		if err != nil {
			return c.reprompt(err)
		}
		return c.advance(ctx, userID, st, model.CollectedServiceID, v, "prompt_quantity")
	case model.AwaitingQuantity:
		q, err := model.ParseQuantity(text)
		if err != nil {
			return c.reprompt(err)
		}
		return c.finishCredential(ctx, userID, st, q)
	case model.AwaitingEditValue:
		return c.finishEdit(ctx, userID, st, text)
	case model.AwaitingChannel:
		ref, err := model.ParseChannelInput(text)
		if err != nil {
			return c.reprompt(err)
		}
		return c.finishChannel(ctx, userID, ref)
	case model.AwaitingOrderLink:
		v, err := model.ValidateHTTPURL(text, "invalid_order_link")
		if err != nil {
			return c.reprompt(err)
		}
		return c.advance(ctx, userID, st, model.CollectedOrderLink, v, "prompt_order_quantity")
	case model.AwaitingOrderQuantity:
		q, err := model.ParseQuantity(text)
		if err != nil {
			return c.reprompt(err)
		}
		return c.finishOrder(ctx, userID, st.Collected[model.CollectedOrderLink], q)
	default:
		// state from an older build; drop it
		logging.With(ctx, c.log).Warn().Str("flow", string(st.Flow)).Int("step", st.Step).Msg("discarding unknown conversation state")
		if err := c.states.ClearState(ctx, userID); err != nil {
			return model.Reply{}, err
		}
		return model.Reply{Text: c.t.T("idle_hint")}, nil
	}
}

func (c *conversationUC) begin(ctx context.Context, userID int64, st *model.ConversationState, promptKey string) (model.Reply, error) {
	if err := c.states.SetState(ctx, userID, st); err != nil {
		return model.Reply{}, err
	}
	return c.prompt(c.t.T(promptKey)), nil
}

func (c *conversationUC) advance(ctx context.Context, userID int64, st *model.ConversationState, key, value, nextPrompt string) (model.Reply, error) {
	st.Advance(key, value)
	if err := c.states.SetState(ctx, userID, st); err != nil {
		return model.Reply{}, err
	}
	return c.prompt(c.t.T(nextPrompt)), nil
}

func (c *conversationUC) finishCredential(ctx context.Context, userID int64, st *model.ConversationState, quantity int) (model.Reply, error) {
	cred := model.Credential{
		APIURL:    st.Collected[model.CollectedAPIURL],
		APIKey:    st.Collected[model.CollectedAPIKey],
		ServiceID: st.Collected[model.CollectedServiceID],
	}
	if err := c.settings.SaveCredential(ctx, userID, cred, quantity); err != nil {
		return model.Reply{}, err
	}
	if err := c.states.ClearState(ctx, userID); err != nil {
		return model.Reply{}, err
	}
	return c.mainMenu(c.t.T("credential_saved")), nil
}

func (c *conversationUC) finishEdit(ctx context.Context, userID int64, st *model.ConversationState, text string) (model.Reply, error) {
	var (
		value string
		err   error
	)
	switch st.Field {
	case model.FieldURL:
		value, err = model.ValidateHTTPURL(text, "invalid_url")
	case model.FieldKey:
		value, err = model.ValidateAPIKey(text, c.opts.MinKeyLength)
	case model.FieldService:
		value, err = model.ValidateServiceID(text, c.opts.NumericServiceID)
	case model.FieldQuantity:
		var q int
		if q, err = model.ParseQuantity(text); err == nil {
			value = strconv.Itoa(q)
		}
	default:
		if err := c.states.ClearState(ctx, userID); err != nil {
			return model.Reply{}, err
		}
		return model.Reply{Text: c.t.T("unknown_action")}, nil
	}
	if err != nil {
		return c.reprompt(err)
	}
	if err := c.settings.UpdateField(ctx, userID, st.Field, value); err != nil {
		return model.Reply{}, err
	}
	if err := c.states.ClearState(ctx, userID); err != nil {
		return model.Reply{}, err
	}
	name := c.t.T("field_name_" + string(st.Field))
	return c.withBack(c.t.T("field_updated", name), model.OpenSmmSettings{}), nil
}

func (c *conversationUC) finishChannel(ctx context.Context, userID int64, ref model.ChannelRef) (model.Reply, error) {
	added, err := c.settings.AddChannel(ctx, userID, ref)
	if err != nil {
		return model.Reply{}, err
	}
	if err := c.states.ClearState(ctx, userID); err != nil {
		return model.Reply{}, err
	}
	key := "channel_added"
	if !added {
		key = "channel_already_added"
	}
	return c.withBack(c.t.T(key, ref.String()), model.OpenChannelSettings{}), nil
}

// finishOrder clears the flow before calling the panel so a slow or failed
// call never leaves the user stuck in it.
func (c *conversationUC) finishOrder(ctx context.Context, userID int64, link string, quantity int) (model.Reply, error) {
	if err := c.states.ClearState(ctx, userID); err != nil {
		return model.Reply{}, err
	}
	receipt, err := c.orders.PlaceOrder(ctx, userID, link, quantity)
	switch {
	case errors.Is(err, domain.ErrCredentialMissing):
		return c.withBack(c.t.T("credential_missing"), model.OpenSmmSettings{}), nil
	case err != nil:
		if _, ok := derror.AsPanelError(err); ok {
			return c.mainMenu(c.t.T("order_failed", err.Error())), nil
		}
		return model.Reply{}, err
	}
	return c.mainMenu(c.t.T("order_placed", link, quantity, receipt.OrderID, c.price(receipt))), nil
}

func (c *conversationUC) checkBalance(ctx context.Context, userID int64) (model.Reply, error) {
	bal, err := c.orders.CheckBalance(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrCredentialMissing):
		return c.withBack(c.t.T("credential_missing"), model.OpenSmmSettings{}), nil
	case err != nil:
		if _, ok := derror.AsPanelError(err); ok {
			return c.withBack(c.t.T("balance_failed", err.Error()), model.OpenMainMenu{}), nil
		}
		return model.Reply{}, err
	}
	return c.withBack(c.t.T("balance_result", model.FormatAmount(bal.Amount), bal.Currency), model.OpenMainMenu{}), nil
}

func (c *conversationUC) smmSettings(ctx context.Context, userID int64) (model.Reply, error) {
	cfg, err := c.settings.Get(ctx, userID)
	if err != nil {
		return model.Reply{}, err
	}
	if !cfg.HasAnyCredentialField() {
		return model.Reply{
			Text: c.t.T("smm_settings_empty"),
			Buttons: [][]model.Button{
				model.ButtonRow(c.t.T("btn_add_smm"), model.AddCredentialStart{}),
				model.ButtonRow(c.t.T("btn_main_menu"), model.OpenMainMenu{}),
			},
		}, nil
	}
	url, key, svc, qty := c.describe(cfg)
	return model.Reply{
		Text: c.t.T("smm_settings_current", url, key, svc, qty),
		Buttons: [][]model.Button{
			{
				{Text: c.t.T("btn_add_smm"), Action: model.AddCredentialStart{}},
				{Text: c.t.T("btn_edit_smm"), Action: model.OpenEditMenu{}},
			},
			model.ButtonRow(c.t.T("btn_main_menu"), model.OpenMainMenu{}),
		},
	}, nil
}

func (c *conversationUC) editMenu(ctx context.Context, userID int64) (model.Reply, error) {
	cfg, err := c.settings.Get(ctx, userID)
	if err != nil {
		return model.Reply{}, err
	}
	if !cfg.HasAnyCredentialField() {
		return c.withBack(c.t.T("edit_no_api"), model.OpenSmmSettings{}), nil
	}
	url, key, svc, qty := c.describe(cfg)
	return model.Reply{
		Text: c.t.T("edit_menu", url, key, svc, qty),
		Buttons: [][]model.Button{
			{
				{Text: c.t.T("btn_edit_url"), Action: model.EditField{Field: model.FieldURL}},
				{Text: c.t.T("btn_edit_key"), Action: model.EditField{Field: model.FieldKey}},
			},
			{
				{Text: c.t.T("btn_edit_service"), Action: model.EditField{Field: model.FieldService}},
				{Text: c.t.T("btn_edit_quantity"), Action: model.EditField{Field: model.FieldQuantity}},
			},
			model.ButtonRow(c.t.T("btn_remove_api"), model.RemoveAPI{}),
			model.ButtonRow(c.t.T("btn_back"), model.OpenSmmSettings{}),
		},
	}, nil
}

func (c *conversationUC) channelSettings(ctx context.Context, userID int64) (model.Reply, error) {
	cfg, err := c.settings.Get(ctx, userID)
	if err != nil {
		return model.Reply{}, err
	}
	list := c.t.T("channel_list_empty")
	if len(cfg.Channels) > 0 {
		names := make([]string, 0, len(cfg.Channels))
		for _, ch := range cfg.Channels {
			names = append(names, ch.String())
		}
		list = strings.Join(names, ", ")
	}
	return model.Reply{
		Text: c.t.T("channel_settings", list),
		Buttons: [][]model.Button{
			{
				{Text: c.t.T("btn_add_channel"), Action: model.AddChannelStart{}},
				{Text: c.t.T("btn_remove_channel"), Action: model.OpenRemoveChannelMenu{}},
			},
			model.ButtonRow(c.t.T("btn_main_menu"), model.OpenMainMenu{}),
		},
	}, nil
}

func (c *conversationUC) removeChannelMenu(ctx context.Context, userID int64) (model.Reply, error) {
	cfg, err := c.settings.Get(ctx, userID)
	if err != nil {
		return model.Reply{}, err
	}
	if len(cfg.Channels) == 0 {
		return c.withBack(c.t.T("no_channels"), model.OpenChannelSettings{}), nil
	}
	rows := make([][]model.Button, 0, len(cfg.Channels)+1)
	for _, ch := range cfg.Channels {
		rows = append(rows, model.ButtonRow(ch.String(), model.RemoveChannel{Ref: ch, Raw: ch.String()}))
	}
	rows = append(rows, model.ButtonRow(c.t.T("btn_back"), model.OpenChannelSettings{}))
	return model.Reply{Text: c.t.T("remove_channel_menu"), Buttons: rows}, nil
}

func (c *conversationUC) removeChannel(ctx context.Context, userID int64, a model.RemoveChannel) (model.Reply, error) {
	if a.Ref.IsZero() {
		return c.withBack(c.t.T("channel_not_found", a.Raw), model.OpenChannelSettings{}), nil
	}
	removed, err := c.settings.RemoveChannel(ctx, userID, a.Ref)
	if err != nil {
		return model.Reply{}, err
	}
	if !removed {
		return c.withBack(c.t.T("channel_not_found", a.Ref.String()), model.OpenChannelSettings{}), nil
	}
	return c.withBack(c.t.T("channel_removed", a.Ref.String()), model.OpenChannelSettings{}), nil
}

// reprompt turns a validation failure into its message; other errors pass through.
func (c *conversationUC) reprompt(err error) (model.Reply, error) {
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		return model.Reply{}, err
	}
	return c.prompt(c.t.T(ve.Key, ve.Args...)), nil
}

func (c *conversationUC) describe(cfg *model.UserConfig) (url, key, svc, qty string) {
	notSet := c.t.T("not_set")
	url, key, svc, qty = notSet, notSet, notSet, notSet
	if cfg.APIURL != nil {
		url = *cfg.APIURL
	}
	if cfg.APIKey != nil {
		key = maskedKey
	}
	if cfg.ServiceID != nil {
		svc = *cfg.ServiceID
	}
	if cfg.DefaultQuantity != nil {
		qty = strconv.Itoa(*cfg.DefaultQuantity)
	}
	return url, key, svc, qty
}

func (c *conversationUC) price(r model.OrderReceipt) string {
	if r.Price == nil {
		return c.t.T("price_unknown")
	}
	return model.FormatAmount(*r.Price)
}

func (c *conversationUC) mainMenu(text string) model.Reply {
	return model.Reply{
		Text: text,
		Buttons: [][]model.Button{
			model.ButtonRow(c.t.T("btn_smm_settings"), model.OpenSmmSettings{}),
			model.ButtonRow(c.t.T("btn_channel_settings"), model.OpenChannelSettings{}),
			model.ButtonRow(c.t.T("btn_check_balance"), model.CheckBalance{}),
			model.ButtonRow(c.t.T("btn_order_views"), model.StartOrder{}),
		},
	}
}

func (c *conversationUC) prompt(text string) model.Reply {
	return model.Reply{Text: text, Buttons: [][]model.Button{model.ButtonRow(c.t.T("btn_cancel"), model.CancelFlow{})}}
}

func (c *conversationUC) withBack(text string, back model.Action) model.Reply {
	label := "btn_back"
	if _, ok := back.(model.OpenMainMenu); ok {
		label = "btn_main_menu"
	}
	return model.Reply{Text: text, Buttons: [][]model.Button{model.ButtonRow(c.t.T(label), back)}}
}
