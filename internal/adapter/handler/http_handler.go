package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/mall-ledger/internal/core/domain"
	"github.com/rl1809/mall-ledger/internal/core/service"
)

type HTTPHandler struct {
	orders     *service.OrderService
	merchants  *service.MerchantService
	accounts   *service.AccountService
	settlement *service.SettlementService
}

func NewHTTPHandler(orders *service.OrderService, merchants *service.MerchantService, accounts *service.AccountService, settlement *service.SettlementService) *HTTPHandler {
	return &HTTPHandler{orders: orders, merchants: merchants, accounts: accounts, settlement: settlement}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/orders", h.Orders)
	mux.HandleFunc("/api/products", h.Products)
	mux.HandleFunc("/api/products/add", h.AddInventory)
	mux.HandleFunc("/api/accounts", h.GetAccount)
	mux.HandleFunc("/api/accounts/deposit", h.Deposit)
	mux.HandleFunc("/api/settlement/run", h.RunSettlement)
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type createOrderRequest struct {
	UserID     int64  `json:"user_id"`
	MerchantID int64  `json:"merchant_id"`
	SKU        string `json:"sku"`
	Quantity   int    `json:"quantity"`
}

func (h *HTTPHandler) Orders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid request body"})
			return
		}
		if req.UserID == 0 || req.MerchantID == 0 || req.SKU == "" || req.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, apiResponse{Message: "missing required fields"})
			return
		}

		order, err := h.orders.CreateOrder(r.Context(), req.UserID, req.MerchantID, req.SKU, req.Quantity)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: order})

	case http.MethodGet:
		orderNo := r.URL.Query().Get("order_no")
		if orderNo == "" {
			writeJSON(w, http.StatusBadRequest, apiResponse{Message: "order_no is required"})
			return
		}

		order, err := h.orders.GetOrder(r.Context(), orderNo)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: order})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type createProductRequest struct {
	MerchantID  int64           `json:"merchant_id"`
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Currency    string          `json:"currency"`
}

func (h *HTTPHandler) Products(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid request body"})
			return
		}
		if req.MerchantID == 0 || req.SKU == "" || req.Price.Sign() < 0 {
			writeJSON(w, http.StatusBadRequest, apiResponse{Message: "missing required fields"})
			return
		}

		inv, err := h.merchants.CreateProduct(r.Context(), req.MerchantID, req.SKU, req.ProductName, req.Price, req.Quantity, req.Currency)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: inv})

	case http.MethodGet:
		merchantID, err := strconv.ParseInt(r.URL.Query().Get("merchant_id"), 10, 64)
		sku := r.URL.Query().Get("sku")
		if err != nil || sku == "" {
			writeJSON(w, http.StatusBadRequest, apiResponse{Message: "merchant_id and sku are required"})
			return
		}

		inv, gerr := h.merchants.GetInventory(r.Context(), merchantID, sku)
		if gerr != nil {
			writeError(w, gerr)
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: inv})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type addInventoryRequest struct {
	MerchantID int64  `json:"merchant_id"`
	SKU        string `json:"sku"`
	Quantity   int    `json:"quantity"`
}

func (h *HTTPHandler) AddInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req addInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid request body"})
		return
	}
	if req.MerchantID == 0 || req.SKU == "" || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "missing required fields"})
		return
	}

	inv, err := h.merchants.AddInventory(r.Context(), req.MerchantID, req.SKU, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: inv})
}

type depositRequest struct {
	UserID   int64           `json:"user_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (h *HTTPHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid request body"})
		return
	}
	if req.UserID == 0 || req.Amount.Sign() <= 0 {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "missing required fields"})
		return
	}

	acct, err := h.accounts.Deposit(r.Context(), req.UserID, req.Amount, req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: acct})
}

func (h *HTTPHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "user_id is required"})
		return
	}

	acct, gerr := h.accounts.GetAccount(r.Context(), userID)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: acct})
}

type runSettlementRequest struct {
	Date string `json:"date"` // 2006-01-02
}

func (h *HTTPHandler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid request body"})
		return
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "date must be formatted as 2006-01-02"})
		return
	}

	h.settlement.SettleAllMerchants(r.Context(), date)
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "settlement triggered"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps the closed error set to user-facing statuses; anything else
// is an opaque internal error.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrInventoryNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrMerchantNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, apiResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrInsufficientInventory):
		writeJSON(w, http.StatusGone, apiResponse{Message: "sold out"})
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeJSON(w, http.StatusPaymentRequired, apiResponse{Message: "insufficient balance"})
	case errors.Is(err, domain.ErrProductAlreadyExists):
		writeJSON(w, http.StatusConflict, apiResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidOrderState):
		writeJSON(w, http.StatusConflict, apiResponse{Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
