package claim

import (
	"errors"
	"net/http"

	"rez-rewards-core/pkg/authctx"
	"rez-rewards-core/pkg/db/pagination"
	"rez-rewards-core/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type submitRequest struct {
	Platform string  `json:"platform" binding:"required"`
	ProofURL string  `json:"proof_url" binding:"required"`
	OrderID  *string `json:"order_id"`
}

func (s *Service) SubmitClaim(c *gin.Context) {
	actor, ok := authctx.FromContext(c.Request.Context())
	if !ok {
		abortWithError(c, errutil.Unauthorized("authentication required", nil))
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := s.Submit(c.Request.Context(), SubmitInput{
		UserID:   actor.ID,
		Platform: req.Platform,
		ProofURL: req.ProofURL,
		OrderID:  req.OrderID,
		Metadata: RequestMetadata{
			IP:                c.ClientIP(),
			DeviceFingerprint: c.GetHeader("x-device-fingerprint"),
			UserAgent:         c.Request.UserAgent(),
		},
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Service) GetClaim(c *gin.Context) {
	actor, ok := authctx.FromContext(c.Request.Context())
	if !ok {
		abortWithError(c, errutil.Unauthorized("authentication required", nil))
		return
	}

	record, err := s.Get(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Service) ListClaims(c *gin.Context) {
	actor, ok := authctx.FromContext(c.Request.Context())
	if !ok {
		abortWithError(c, errutil.Unauthorized("authentication required", nil))
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		abortWithError(c, errutil.BadRequest("invalid pagination", err))
		return
	}

	records, pageInfo, err := s.List(c.Request.Context(), ListInput{
		UserID:     actor.ID,
		State:      c.Query("state"),
		Pagination: page,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"claims": records, "page_info": pageInfo})
}

func (s *Service) RetractClaim(c *gin.Context) {
	actor, ok := authctx.FromContext(c.Request.Context())
	if !ok {
		abortWithError(c, errutil.Unauthorized("authentication required", nil))
		return
	}

	if err := s.Retract(c.Request.Context(), c.Param("id"), actor.ID); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Service) ClaimStats(c *gin.Context) {
	actor, ok := authctx.FromContext(c.Request.Context())
	if !ok {
		abortWithError(c, errutil.Unauthorized("authentication required", nil))
		return
	}

	stats, err := s.PlatformStats(c.Request.Context(), actor.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// abortWithError renders fraud rejections with their reason code verbatim and
// defers everything else to the error middleware.
func abortWithError(c *gin.Context, err error) {
	var rejection *FraudRejection
	if errors.As(err, &rejection) {
		status := http.StatusUnprocessableEntity
		switch rejection.Reason {
		case ReasonInvalidFormat:
			status = http.StatusBadRequest
		case ReasonDuplicateProof, ReasonDuplicateOrderClaim:
			status = http.StatusConflict
		case ReasonCooldownActive, ReasonDailyCapReached:
			status = http.StatusTooManyRequests
		}
		c.AbortWithStatusJSON(status, gin.H{"error": rejection})
		return
	}

	_ = c.Error(err)
	c.Abort()
}
