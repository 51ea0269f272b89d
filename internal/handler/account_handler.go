package handler

import (
	"encoding/json"
	"net/http"

	"banking-core/internal/domain"
	"banking-core/internal/errors"
	"banking-core/internal/service"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type AccountHandler struct {
	accountService *service.AccountService
}

func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

type CreateAccountRequest struct {
	Type            string  `json:"type"`
	Currency        string  `json:"currency"`
	BalanceLimit    *string `json:"balance_limit,omitempty"`
	DailyDebitLimit *string `json:"daily_debit_limit,omitempty"`
}

type AccountResponse struct {
	AccountID       string  `json:"account_id"`
	AccountNumber   string  `json:"account_number"`
	Type            string  `json:"type"`
	Currency        string  `json:"currency"`
	Balance         string  `json:"balance"`
	Status          string  `json:"status"`
	BalanceLimit    *string `json:"balance_limit,omitempty"`
	DailyDebitLimit *string `json:"daily_debit_limit,omitempty"`
}

func accountResponse(account *domain.Account) AccountResponse {
	resp := AccountResponse{
		AccountID:     account.ID.String(),
		AccountNumber: account.AccountNumber,
		Type:          account.Type,
		Currency:      account.Currency,
		Balance:       account.Balance.String(),
		Status:        account.Status,
	}
	if account.BalanceLimit != nil {
		s := account.BalanceLimit.String()
		resp.BalanceLimit = &s
	}
	if account.DailyDebitLimit != nil {
		s := account.DailyDebitLimit.String()
		resp.DailyDebitLimit = &s
	}
	return resp
}

func parseOptionalDecimal(raw *string, field string) (*decimal.Decimal, *errors.AppError) {
	if raw == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, errors.NewAppErrorf(errors.InvalidInput, "invalid %s format", field)
	}
	return &d, nil
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, _, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body"))
		return
	}

	balanceLimit, appErr := parseOptionalDecimal(req.BalanceLimit, "balance_limit")
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	dailyDebitLimit, appErr := parseOptionalDecimal(req.DailyDebitLimit, "daily_debit_limit")
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	account, err := h.accountService.CreateAccount(&service.CreateAccountRequest{
		UserID:          userID,
		Type:            req.Type,
		CurrencyCode:    req.Currency,
		BalanceLimit:    balanceLimit,
		DailyDebitLimit: dailyDebitLimit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, accountResponse(account))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	account, err := h.accountService.GetAccount(mux.Vars(r)["account_id"], userID, isAdmin)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse(account))
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, _, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	accounts, err := h.accountService.ListUserAccounts(userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	responses := make([]AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		responses = append(responses, accountResponse(account))
	}
	writeJSON(w, http.StatusOK, responses)
}

type UpdateLimitsRequest struct {
	BalanceLimit    *string `json:"balance_limit,omitempty"`
	DailyDebitLimit *string `json:"daily_debit_limit,omitempty"`
}

func (h *AccountHandler) UpdateLimits(w http.ResponseWriter, r *http.Request) {
	userID, _, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	var req UpdateLimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body"))
		return
	}

	balanceLimit, appErr := parseOptionalDecimal(req.BalanceLimit, "balance_limit")
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	dailyDebitLimit, appErr := parseOptionalDecimal(req.DailyDebitLimit, "daily_debit_limit")
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	account, err := h.accountService.UpdateLimits(mux.Vars(r)["account_id"], userID, balanceLimit, dailyDebitLimit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse(account))
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (h *AccountHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	_, isAdmin, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body"))
		return
	}

	account, err := h.accountService.UpdateStatus(mux.Vars(r)["account_id"], isAdmin, req.Status, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse(account))
}

func (h *AccountHandler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	if err := h.accountService.CloseAccount(mux.Vars(r)["account_id"], userID, isAdmin); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
