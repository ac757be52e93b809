package wallet

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

var Module = fx.Module("wallet.service",
	fx.Provide(
		NewService,
		func(s *Service) Coordinator { return s },
	),
	fx.Invoke(registerRoutes, registerHealthServer),
)

type routeParams struct {
	fx.In

	Router  *gin.Engine
	Service *Service
}

func registerRoutes(p routeParams) {
	v1 := p.Router.Group("/v1")

	v1.GET("/wallet", p.Service.GetWallet)
	v1.POST("/claims/:id/credit", p.Service.CreditClaim)
}

func registerHealthServer(server *grpc.Server, service *Service) {
	grpc_health_v1.RegisterHealthServer(server, service)
}
