package review

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("review.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

type routeParams struct {
	fx.In

	Router  *gin.Engine
	Service *Service
}

func registerRoutes(p routeParams) {
	v1 := p.Router.Group("/v1")

	v1.POST("/claims/:id/approve", p.Service.ApproveClaim)
	v1.POST("/claims/:id/reject", p.Service.RejectClaim)
}
