package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"telegram-smm-autoboost/internal/domain"
	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/adapter"
	derror "telegram-smm-autoboost/internal/error"
	"telegram-smm-autoboost/internal/infra/logging"
	"telegram-smm-autoboost/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

// OrderUseCase runs the user-triggered panel calls. Both operations return
// domain.ErrCredentialMissing without touching the panel when the user has
// no complete credential.
type OrderUseCase interface {
	CheckBalance(ctx context.Context, userID int64) (model.Balance, error)
	PlaceOrder(ctx context.Context, userID int64, link string, quantity int) (model.OrderReceipt, error)
}

type orderUC struct {
	settings SettingsUseCase
	panel    adapter.SMMPanel
	log      *zerolog.Logger
}

func NewOrderUseCase(settings SettingsUseCase, panel adapter.SMMPanel, logger *zerolog.Logger) *orderUC {
	return &orderUC{settings: settings, panel: panel, log: orNop(logger)}
}

func (o *orderUC) CheckBalance(ctx context.Context, userID int64) (model.Balance, error) {
	defer logging.TraceDuration(o.log, "OrderUC.CheckBalance")()
	cred, err := o.credential(ctx, userID)
	if err != nil {
		return model.Balance{}, err
	}
	bal, err := o.panel.CheckBalance(ctx, cred)
	if err != nil {
		o.logFailure(ctx, "balance", err)
		return model.Balance{}, err
	}
	return bal, nil
}

func (o *orderUC) PlaceOrder(ctx context.Context, userID int64, link string, quantity int) (model.OrderReceipt, error) {
	defer logging.TraceDuration(o.log, "OrderUC.PlaceOrder")()
	if quantity <= 0 {
		return model.OrderReceipt{}, domain.ErrInvalidQuantity
	}
	cred, err := o.credential(ctx, userID)
	if err != nil {
		metrics.IncOrder(string(model.SourceManual), "no_credential")
		return model.OrderReceipt{}, err
	}
	receipt, err := o.panel.PlaceOrder(ctx, cred, link, quantity)
	if err != nil {
		metrics.IncOrder(string(model.SourceManual), "failed")
		o.logFailure(ctx, "add", err)
		return model.OrderReceipt{}, err
	}
	metrics.IncOrder(string(model.SourceManual), "placed")
	logging.With(ctx, o.log).Info().Str("order_id", receipt.OrderID).Int("quantity", quantity).Msg("manual order placed")
	return receipt, nil
}

func (o *orderUC) credential(ctx context.Context, userID int64) (model.Credential, error) {
	cfg, err := o.settings.Get(ctx, userID)
	if err != nil {
		return model.Credential{}, err
	}
	return cfg.Credential()
}

func (o *orderUC) logFailure(ctx context.Context, action string, err error) {
	ev := logging.With(ctx, o.log).Warn().Err(err).Str("action", action)
	var pe *derror.PanelError
	if errors.As(err, &pe) {
		ev = ev.Str("kind", string(pe.Kind)).Int("status", pe.StatusCode)
	}
	if derror.IsTimeout(err) {
		ev = ev.Bool("timeout", true)
	}
	ev.Msg("panel call failed")
}
