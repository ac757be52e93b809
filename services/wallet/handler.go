package wallet

import (
	"net/http"

	"rez-rewards-core/pkg/authctx"
	"rez-rewards-core/pkg/errutil"

	"github.com/gin-gonic/gin"
)

func (s *Service) GetWallet(c *gin.Context) {
	actor, ok := authctx.FromContext(c.Request.Context())
	if !ok {
		_ = c.Error(errutil.Unauthorized("authentication required", nil))
		c.Abort()
		return
	}

	w, err := s.GetBalance(c.Request.Context(), actor.ID)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, w)
}

// CreditClaim is the system-operator path: merchant approvals credit
// implicitly, everyone else goes through here.
func (s *Service) CreditClaim(c *gin.Context) {
	actor, ok := authctx.FromContext(c.Request.Context())
	if !ok {
		_ = c.Error(errutil.Unauthorized("authentication required", nil))
		c.Abort()
		return
	}
	if !actor.System {
		_ = c.Error(errutil.Forbidden("crediting requires system scope", nil))
		c.Abort()
		return
	}

	result, err := s.Credit(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, result)
}
