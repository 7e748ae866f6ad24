package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rmachado/crediario/internal/domain"
)

// ─── Credit Account API ─────────────────────────────────────────────────────
//
// POST   /api/credit/accounts                — open a credit account
// GET    /api/credit/accounts                — list accounts (?status=&customer_id=)
// GET    /api/credit/accounts/{id}           — fetch one account
// PATCH  /api/credit/accounts/{id}           — administrative balance correction
// DELETE /api/credit/accounts/{id}           — delete account + its payments
// POST   /api/credit/accounts/{id}/payments  — record a payment
// GET    /api/credit/accounts/{id}/payments  — list an account's payments
// POST   /api/credit/payments                — record (account in body)
// GET    /api/credit/payments/{id}           — fetch one payment
// DELETE /api/credit/payments/{id}           — reverse a payment
// GET    /api/credit/reports/outstanding     — outstanding balance report
// POST   /api/credit/reconcile               — on-demand reconciliation pass

type openAccountRequest struct {
	CustomerID  string       `json:"customer_id"`
	TotalAmount domain.Money `json:"total_amount"`
}

// handleOpenAccount extends credit to a customer.
// POST /api/credit/accounts
func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	acct, err := s.ledger.OpenAccount(r.Context(), req.CustomerID, req.TotalAmount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// handleListAccounts lists accounts, optionally filtered by status and
// customer.
// GET /api/credit/accounts?status=active&customer_id=...
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	filter := domain.AccountFilter{
		CustomerID: r.URL.Query().Get("customer_id"),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.AccountStatus(v)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status "+v)
			return
		}
		filter.Status = status
	}

	accounts, err := s.ledger.ListAccounts(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if accounts == nil {
		accounts = []*domain.CreditAccount{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// handleGetAccount fetches one account.
// GET /api/credit/accounts/{id}
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.ledger.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type correctAccountRequest struct {
	TotalAmount     *domain.Money `json:"total_amount"`
	PaidAmount      *domain.Money `json:"paid_amount"`
	RemainingAmount *domain.Money `json:"remaining_amount"`
	Status          *string       `json:"status"`
}

// handleCorrectAccount overwrites stored balances directly. This is the
// audited administrative repair path, not a normal write.
// PATCH /api/credit/accounts/{id}
func (s *Server) handleCorrectAccount(w http.ResponseWriter, r *http.Request) {
	var req correctAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	correction := domain.AccountCorrection{
		TotalAmount:     req.TotalAmount,
		PaidAmount:      req.PaidAmount,
		RemainingAmount: req.RemainingAmount,
	}
	if req.Status != nil {
		status := domain.AccountStatus(*req.Status)
		correction.Status = &status
	}

	acct, err := s.ledger.Correct(r.Context(), chi.URLParam(r, "id"), correction)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// handleDeleteAccount removes an account and every payment it owns.
// DELETE /api/credit/accounts/{id}
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.DeleteAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type recordPaymentRequest struct {
	Amount        domain.Money `json:"amount"`
	PaymentMethod string       `json:"payment_method"`
	Notes         string       `json:"notes"`
}

// handleRecordPayment applies a payment to an account.
// POST /api/credit/accounts/{id}/payments
func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := s.ledger.RecordPayment(r.Context(), chi.URLParam(r, "id"), req.Amount, req.PaymentMethod, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type recordPaymentBodyRequest struct {
	CreditAccountID string       `json:"credit_account_id"`
	Amount          domain.Money `json:"amount"`
	PaymentMethod   string       `json:"payment_method"`
	Notes           string       `json:"notes"`
}

// handleRecordPaymentByBody is the flat form of payment recording, with
// the account referenced in the body instead of the path.
// POST /api/credit/payments
func (s *Server) handleRecordPaymentByBody(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentBodyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := s.ledger.RecordPayment(r.Context(), req.CreditAccountID, req.Amount, req.PaymentMethod, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleListPayments lists an account's payments, oldest first.
// GET /api/credit/accounts/{id}/payments
func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.ledger.ListPayments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if payments == nil {
		payments = []*domain.CreditPayment{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"count":    len(payments),
	})
}

// handleGetPayment fetches one payment.
// GET /api/credit/payments/{id}
func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.db.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleReversePayment undoes a payment and returns the account it left
// behind.
// DELETE /api/credit/payments/{id}
func (s *Server) handleReversePayment(w http.ResponseWriter, r *http.Request) {
	acct, err := s.ledger.ReversePayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reversed": true,
		"account":  acct,
	})
}

// handleOutstanding reports outstanding balances, optionally filtered the
// same way as the account list.
// GET /api/credit/reports/outstanding?status=&customer_id=
func (s *Server) handleOutstanding(w http.ResponseWriter, r *http.Request) {
	filter := domain.AccountFilter{
		CustomerID: r.URL.Query().Get("customer_id"),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.AccountStatus(v)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status "+v)
			return
		}
		filter.Status = status
	}

	report, err := s.ledger.Outstanding(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleReconcile runs one reconciliation pass and returns its report.
// POST /api/credit/reconcile?repair=true
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	repair := r.URL.Query().Get("repair") == "true"
	report, err := s.reconciler.Run(r.Context(), repair)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ─── Customer API ───────────────────────────────────────────────────────────

type createCustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// handleCreateCustomer registers a customer in the directory.
// POST /api/customers
func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	c, err := s.db.CreateCustomer(r.Context(), req.Name, req.Phone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleListCustomers lists the customer directory.
// GET /api/customers
func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.db.ListCustomers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if customers == nil {
		customers = []*domain.Customer{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"customers": customers,
		"count":     len(customers),
	})
}

// handleGetCustomer fetches one customer.
// GET /api/customers/{id}
func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.db.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
