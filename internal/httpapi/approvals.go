package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"logistria/internal/domain"
)

func (s *server) listApprovals(c *gin.Context) {
	if s.Approvals == nil {
		c.JSON(http.StatusOK, gin.H{"approvals": []domain.Approval{}})
		return
	}
	pending, err := s.Approvals.ListPendingApprovals()
	if err != nil {
		respondError(c, err)
		return
	}
	if pending == nil {
		pending = []domain.Approval{}
	}
	c.JSON(http.StatusOK, gin.H{"approvals": pending})
}

func (s *server) resolveApproval(approved bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Approvals == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "approvals disabled"})
			return
		}
		if err := s.Approvals.ResolveApproval(c.Param("id"), approved); err != nil {
			respondError(c, err)
			return
		}
		s.log.WithField("approval", c.Param("id")).WithField("approved", approved).
			WithField("uid", principalFrom(c).UID).Info("agent action resolved")
		c.Status(http.StatusNoContent)
	}
}
