package adapter

import (
	"context"

	"telegram-smm-autoboost/internal/domain/model"
)

// SMMPanel is the outbound port to a third-party SMM panel API.
// Every failure is a *derror.PanelError.
type SMMPanel interface {
	CheckBalance(ctx context.Context, cred model.Credential) (model.Balance, error)
	PlaceOrder(ctx context.Context, cred model.Credential, link string, quantity int) (model.OrderReceipt, error)
}
