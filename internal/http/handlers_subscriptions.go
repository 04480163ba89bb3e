package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger/internal/core"
	"ledger/internal/services"
)

type updateSubscriptionResponse struct {
	Subscription *core.Subscription `json:"subscription"`
	Change       string             `json:"change"`
	Regenerated  bool               `json:"regenerated"`
}

type deleteSubscriptionResponse struct {
	Removed int `json:"removed"`
}

func (s *Server) listSubscriptions(c *gin.Context) {
	subs, err := s.svc.Subscriptions.ListSubscriptions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(subs))
}

func (s *Server) createSubscription(c *gin.Context) {
	var req services.SubscriptionInput
	if !bindJSON(c, &req) {
		return
	}
	sub, err := s.svc.Subscriptions.CreateSubscription(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (s *Server) getSubscription(c *gin.Context) {
	sub, err := s.svc.Subscriptions.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// updateSubscription replaces the editable fields; the response says whether
// the change regenerated the subscription's entries.
func (s *Server) updateSubscription(c *gin.Context) {
	var req services.SubscriptionInput
	if !bindJSON(c, &req) {
		return
	}
	sub, change, err := s.svc.Subscriptions.UpdateSubscription(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updateSubscriptionResponse{
		Subscription: sub,
		Change:       change.String(),
		Regenerated:  change.Significant(),
	})
}

func (s *Server) deleteSubscription(c *gin.Context) {
	removed, err := s.svc.Subscriptions.DeleteSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteSubscriptionResponse{Removed: removed})
}

func (s *Server) listGeneratedTransactions(c *gin.Context) {
	txs, err := s.svc.Subscriptions.ListGeneratedTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(txs))
}
