package handler

import (
	"errors"
	"net/http"
	"time"

	"walletsystem/internal/repository"
	"walletsystem/internal/service"
	"walletsystem/internal/validation"
	"walletsystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handler 薄适配层：解析请求、调用执行器、翻译错误码
// 所有业务规则都在 service 层，这里不做任何余额相关判断
type Handler struct {
	executor      *service.ResilientExecutor
	walletService *service.WalletService
}

func NewHandler(executor *service.ResilientExecutor, walletService *service.WalletService) *Handler {
	return &Handler{
		executor:      executor,
		walletService: walletService,
	}
}

// writeError 统一错误翻译
// 调用方必须能区分"稍后再试"（503）和业务拒绝（4xx）
func writeError(c *gin.Context, err error) {
	switch {
	case validation.IsValidationError(err):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, service.ErrSenderNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSenderNotFound, err.Error())
	case errors.Is(err, service.ErrReceiverNotFound):
		response.Error(c, http.StatusNotFound, response.CodeReceiverNotFound, err.Error())
	case errors.Is(err, repository.ErrAccountNotFound):
		response.Error(c, http.StatusNotFound, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, repository.ErrDuplicateAccount):
		response.Error(c, http.StatusConflict, response.CodeDuplicateAccount, err.Error())
	case errors.Is(err, service.ErrServiceUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 钱包相关接口
// ============================================================

// CreateWallet 开户
// POST /api/v1/wallet/create
func (h *Handler) CreateWallet(c *gin.Context) {
	userID := AuthenticatedUserID(c)

	account, err := h.walletService.CreateWallet(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":     account.UserID,
		"cod_account": account.CodAccount,
		"balance":     account.Balance,
	})
}

// GetBalance 查询余额
// GET /api/v1/wallet/balance
func (h *Handler) GetBalance(c *gin.Context) {
	userID := AuthenticatedUserID(c)

	account, err := h.walletService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"cod_account": account.CodAccount,
		"balance":     account.Balance,
	})
}

// StatementItem 对账单条目
type StatementItem struct {
	RecordNo     string          `json:"record_no"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	FinalBalance decimal.Decimal `json:"final_balance"`
	CreatedAt    time.Time       `json:"created_at"`
}

// GetStatement 查询对账单
// GET /api/v1/wallet/statement?start_date=2026-01-01&end_date=2026-01-31
func (h *Handler) GetStatement(c *gin.Context) {
	userID := AuthenticatedUserID(c)

	startDate, err := time.Parse("2006-01-02", c.Query("start_date"))
	if err != nil {
		response.ParamError(c, "start_date 参数错误，格式应为 yyyy-MM-dd")
		return
	}
	endDate, err := time.Parse("2006-01-02", c.Query("end_date"))
	if err != nil {
		response.ParamError(c, "end_date 参数错误，格式应为 yyyy-MM-dd")
		return
	}

	records, err := h.walletService.GetStatement(c.Request.Context(), userID, startDate, endDate)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]StatementItem, 0, len(records))
	for _, r := range records {
		items = append(items, StatementItem{
			RecordNo:     r.RecordNo,
			Type:         r.Type,
			Amount:       r.Amount,
			FinalBalance: r.FinalBalance,
			CreatedAt:    r.CreatedAt,
		})
	}

	response.Success(c, gin.H{"list": items})
}

// ============================================================
// 操作相关接口
// ============================================================

// OperationRequest 存款/取款请求
type OperationRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Deposit 存款
// POST /api/v1/operations/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req OperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	userID := AuthenticatedUserID(c)

	result, err := h.executor.Deposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"record_no": result.RecordNo,
		"balance":   result.Balance,
	})
}

// Withdraw 取款
// POST /api/v1/operations/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req OperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	userID := AuthenticatedUserID(c)

	result, err := h.executor.Withdraw(c.Request.Context(), userID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"record_no": result.RecordNo,
		"balance":   result.Balance,
	})
}

// TransferRequest 转账请求
type TransferRequest struct {
	CodAccount string          `json:"cod_account" binding:"required"` // 收款账号
	Amount     decimal.Decimal `json:"amount" binding:"required"`
}

// Transfer 转账
// POST /api/v1/operations/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	userID := AuthenticatedUserID(c)

	result, err := h.executor.Transfer(c.Request.Context(), userID, req.CodAccount, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"record_no": result.RecordNo,
		"balance":   result.Balance,
	})
}
