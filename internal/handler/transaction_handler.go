package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"banking-core/internal/domain"
	"banking-core/internal/errors"
	"banking-core/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type TransactionHandler struct {
	transferService    *service.TransferService
	transactionService *service.TransactionService
}

func NewTransactionHandler(transferService *service.TransferService, transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transferService:    transferService,
		transactionService: transactionService,
	}
}

type TransferHTTPRequest struct {
	SourceAccount      string                  `json:"source_account"`
	DestinationAccount string                  `json:"destination_account,omitempty"`
	ExternalDetails    *domain.ExternalDetails `json:"external_details,omitempty"`
	Amount             string                  `json:"amount"`
	Currency           string                  `json:"currency"`
	Description        string                  `json:"description,omitempty"`
	Metadata           map[string]string       `json:"metadata,omitempty"`
	IdempotencyKey     string                  `json:"idempotency_key,omitempty"`
}

type TransactionResponse struct {
	TransactionID        string                  `json:"transaction_id"`
	Amount               string                  `json:"amount"`
	Currency             string                  `json:"currency"`
	Type                 string                  `json:"type"`
	Status               string                  `json:"status"`
	Description          string                  `json:"description,omitempty"`
	SourceAccountID      *string                 `json:"source_account_id,omitempty"`
	DestinationAccountID *string                 `json:"destination_account_id,omitempty"`
	ExternalDetails      *domain.ExternalDetails `json:"external_details,omitempty"`
	Metadata             map[string]string       `json:"metadata,omitempty"`
	IdempotencyKey       *string                 `json:"idempotency_key,omitempty"`
	CreatedAt            time.Time               `json:"created_at"`
}

func transactionResponse(tx *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		TransactionID:   tx.ID.String(),
		Amount:          tx.Amount.String(),
		Currency:        tx.Currency,
		Type:            string(tx.Type),
		Status:          string(tx.Status),
		Description:     tx.Description,
		ExternalDetails: tx.ExternalDetails,
		Metadata:        tx.Metadata,
		CreatedAt:       tx.CreatedAt,
	}
	if tx.SourceAccountID != nil {
		s := tx.SourceAccountID.String()
		resp.SourceAccountID = &s
	}
	if tx.DestinationAccountID != nil {
		s := tx.DestinationAccountID.String()
		resp.DestinationAccountID = &s
	}
	if tx.IdempotencyKey != nil {
		s := tx.IdempotencyKey.String()
		resp.IdempotencyKey = &s
	}
	return resp
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, _, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	var req TransferHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	var idempotencyKey *uuid.UUID
	if req.IdempotencyKey != "" {
		key, err := uuid.Parse(req.IdempotencyKey)
		if err != nil {
			writeError(w, errors.NewAppError(errors.InvalidInput, "invalid idempotency_key format").WithDetails(err.Error()))
			return
		}
		idempotencyKey = &key
	}

	transferReq := &service.TransferRequest{
		Source:          domain.RefByIdentifier(req.SourceAccount),
		Amount:          amount,
		Currency:        req.Currency,
		Requester:       userID,
		ExternalDetails: req.ExternalDetails,
		Description:     req.Description,
		Metadata:        req.Metadata,
		IdempotencyKey:  idempotencyKey,
	}
	if req.DestinationAccount != "" {
		transferReq.Destination = domain.RefByIdentifier(req.DestinationAccount)
	}

	transaction, err := h.transferService.Transfer(transferReq)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transactionResponse(transaction))
}

type CreateTransactionRequest struct {
	Amount               string            `json:"amount"`
	Currency             string            `json:"currency"`
	Type                 string            `json:"type"`
	Status               string            `json:"status,omitempty"`
	Description          string            `json:"description,omitempty"`
	SourceAccountID      *uuid.UUID        `json:"source_account_id,omitempty"`
	DestinationAccountID *uuid.UUID        `json:"destination_account_id,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// CreateTransaction records a manual ledger entry. Admin only; no funds move.
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	_, isAdmin, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	tx, err := h.transactionService.CreateManualTransaction(&service.ManualTransactionRequest{
		Amount:               amount,
		Currency:             req.Currency,
		Type:                 req.Type,
		Status:               req.Status,
		Description:          req.Description,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Metadata:             req.Metadata,
	}, isAdmin)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transactionResponse(tx))
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["transaction_id"])
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction ID"))
		return
	}

	tx, err := h.transactionService.GetTransaction(id, userID, isAdmin)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionResponse(tx))
}

func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	filter := domain.TransactionFilter{
		Type:   domain.TransactionType(r.URL.Query().Get("type")),
		Status: domain.TransactionStatus(r.URL.Query().Get("status")),
		Skip:   queryInt(r, "skip", 0),
		Limit:  queryInt(r, "limit", 100),
	}
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, errors.NewAppError(errors.InvalidInput, "invalid account_id filter"))
			return
		}
		filter.AccountID = &id
	}

	transactions, err := h.transactionService.ListTransactions(filter, userID, isAdmin)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionResponses(transactions))
}

func (h *TransactionHandler) ListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	transactions, err := h.transactionService.ListAccountTransactions(
		mux.Vars(r)["account_id"], userID, isAdmin,
		queryInt(r, "skip", 0), queryInt(r, "limit", 25))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionResponses(transactions))
}

type UpdateTransactionRequest struct {
	Description *string `json:"description,omitempty"`
}

func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["transaction_id"])
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction ID"))
		return
	}

	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body"))
		return
	}
	if req.Description == nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "nothing to update"))
		return
	}

	tx, err := h.transactionService.UpdateDescription(id, userID, isAdmin, *req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionResponse(tx))
}

func (h *TransactionHandler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["transaction_id"])
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction ID"))
		return
	}

	tx, err := h.transactionService.Cancel(id, userID, isAdmin)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionResponse(tx))
}

type SettleTransactionRequest struct {
	Outcome string `json:"outcome"`
}

// SettleTransaction records the settlement verdict for an external transfer.
func (h *TransactionHandler) SettleTransaction(w http.ResponseWriter, r *http.Request) {
	_, isAdmin, authErr := requester(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["transaction_id"])
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction ID"))
		return
	}

	var req SettleTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body"))
		return
	}

	outcome := domain.TransactionStatus(req.Outcome)
	if outcome != domain.StatusCompleted && outcome != domain.StatusFailed {
		writeError(w, errors.NewAppError(errors.InvalidInput, "outcome must be completed or failed"))
		return
	}

	tx, err := h.transactionService.SettleExternal(id, isAdmin, outcome)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionResponse(tx))
}

func transactionResponses(transactions []*domain.Transaction) []TransactionResponse {
	responses := make([]TransactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		responses = append(responses, transactionResponse(tx))
	}
	return responses
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
