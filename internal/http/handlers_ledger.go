package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/storage"
)

type createAccountRequest struct {
	Name string `json:"name"`
}

func (s *Server) listAccounts(c *gin.Context) {
	accounts, err := s.svc.Ledger.ListAccounts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(accounts))
}

func (s *Server) createAccount(c *gin.Context) {
	var req createAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := s.svc.Ledger.CreateAccount(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *Server) deleteAccount(c *gin.Context) {
	if err := s.svc.Ledger.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listCategories(c *gin.Context) {
	cats, err := s.svc.Ledger.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(cats))
}

func (s *Server) createCategory(c *gin.Context) {
	var req services.CategoryInput
	if !bindJSON(c, &req) {
		return
	}
	cat, err := s.svc.Ledger.CreateCategory(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// listTransactions accepts ?account= and ?since=YYYY-MM-DD.
func (s *Server) listTransactions(c *gin.Context) {
	f := storage.TransactionFilter{AccountID: c.Query("account")}
	if v := c.Query("since"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(c, invalidQuery(err))
			return
		}
		f.Since = d
	}

	txs, err := s.svc.Ledger.ListTransactions(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(txs))
}

func (s *Server) recordTransaction(c *gin.Context) {
	var req services.TransactionInput
	if !bindJSON(c, &req) {
		return
	}
	t, err := s.svc.Ledger.RecordTransaction(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// updateTransaction edits an entry in place. Generated entries keep their
// subscription reference.
func (s *Server) updateTransaction(c *gin.Context) {
	var req services.TransactionInput
	if !bindJSON(c, &req) {
		return
	}
	t, err := s.svc.Ledger.UpdateTransaction(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTransaction(c *gin.Context) {
	if err := s.svc.Ledger.DeleteTransaction(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
