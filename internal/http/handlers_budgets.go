package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger/internal/services"
)

// listBudgets returns every budget with its month-to-date progress. ?account=
// narrows the progress to one account.
func (s *Server) listBudgets(c *gin.Context) {
	items, err := s.svc.Budgets.ProgressAll(c.Request.Context(), c.Query("account"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(items))
}

func (s *Server) createBudget(c *gin.Context) {
	var req services.BudgetInput
	if !bindJSON(c, &req) {
		return
	}
	b, err := s.svc.Budgets.CreateBudget(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (s *Server) deleteBudget(c *gin.Context) {
	if err := s.svc.Budgets.DeleteBudget(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) budgetProgress(c *gin.Context) {
	p, err := s.svc.Budgets.Progress(c.Request.Context(), c.Param("id"), c.Query("account"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
