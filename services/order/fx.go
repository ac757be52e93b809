package order

import "go.uber.org/fx"

var Module = fx.Module("order.service",
	fx.Provide(
		NewService,
		func(s *Service) Lookup { return s },
	),
)
