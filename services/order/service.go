package order

import (
	"context"

	"rez-rewards-core/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Lookup resolves an order for claim intake. Returns (nil, nil) when the
// order does not exist or does not belong to the user.
type Lookup interface {
	GetOrder(ctx context.Context, orderID, userID string) (*Order, error)
}

type Service struct {
	orders repository.Repository[Order]
}

type ServiceParams struct {
	fx.In

	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		orders: repository.ProvideStore[Order](p.DB),
	}
}

func (s *Service) GetOrder(ctx context.Context, orderID, userID string) (*Order, error) {
	return s.orders.FindOne(ctx, &Order{ID: orderID, UserID: userID})
}
