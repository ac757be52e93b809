package httpapi

import (
	"rez-rewards-core/pkg/config"
	"rez-rewards-core/pkg/health"
	"rez-rewards-core/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(ProvideRouter),
)

type RouterParams struct {
	fx.In
	Config *config.Config
	Health health.HealthService
}

// ProvideRouter builds the shared gin engine. Service modules attach their
// routes via fx.Invoke against this engine.
func ProvideRouter(p RouterParams) *gin.Engine {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Actor(), middleware.Error())

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)

	return r
}
