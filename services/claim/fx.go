package claim

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("claim.service",
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

	v1.POST("/claims", p.Service.SubmitClaim)
	v1.GET("/claims", p.Service.ListClaims)
	v1.GET("/claims/stats", p.Service.ClaimStats)
	v1.GET("/claims/:id", p.Service.GetClaim)
	v1.DELETE("/claims/:id", p.Service.RetractClaim)
}
