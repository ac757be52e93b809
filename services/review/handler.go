package review

import (
	"net/http"

	"rez-rewards-core/pkg/authctx"
	"rez-rewards-core/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type approveRequest struct {
	Notes string `json:"notes"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Service) ApproveClaim(c *gin.Context) {
	actor, ok := authctx.FromContext(c.Request.Context())
	if !ok {
		_ = c.Error(errutil.Unauthorized("authentication required", nil))
		c.Abort()
		return
	}

	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		c.Abort()
		return
	}

	result, err := s.Approve(c.Request.Context(), c.Param("id"), actor, req.Notes)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Service) RejectClaim(c *gin.Context) {
	actor, ok := authctx.FromContext(c.Request.Context())
	if !ok {
		_ = c.Error(errutil.Unauthorized("authentication required", nil))
		c.Abort()
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		c.Abort()
		return
	}

	result, err := s.Reject(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, result)
}
