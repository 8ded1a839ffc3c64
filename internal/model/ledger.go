package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 账本操作类型常量
// ============================================================================

const (
	LedgerTypeDeposit  = "DEPOSIT"  // 存款
	LedgerTypeWithdraw = "WITHDRAW" // 取款
	LedgerTypeTransfer = "TRANSFER" // 转账
)

// ============================================================================
// 账本流水实体
// ============================================================================

// LedgerRecord 账本流水表
// 记录每一笔已提交的余额变动，是审计和对账的唯一依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 流水必须和余额变动在同一个事务内写入 —— 不允许只有流水没有扣款，反之亦然
// 3. 记录操作后的余额 —— 单账户流水按提交时间排列即可还原余额序列
type LedgerRecord struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RecordNo     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"record_no"` // 流水号（全局唯一）
	Type         string          `gorm:"type:varchar(20);not null" json:"type"`                  // 操作类型
	AccountID    int64           `gorm:"index;not null" json:"account_id"`                       // 主账户（转账时为转出方）
	OwnerUserID  string          `gorm:"type:varchar(64);index;not null" json:"owner_user_id"`   // 主账户用户ID
	Amount       decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"amount"`              // 金额，恒为正数
	FinalBalance decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"final_balance"`       // 操作后主账户余额

	// 以下三个字段仅转账使用
	ReceiverAccountID    *int64              `gorm:"index" json:"receiver_account_id,omitempty"`
	ReceiverUserID       string              `gorm:"type:varchar(64)" json:"receiver_user_id,omitempty"`
	FinalBalanceReceiver decimal.NullDecimal `gorm:"type:decimal(19,4)" json:"final_balance_receiver,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerRecord) TableName() string {
	return "ledger_record"
}

// NewLedgerRecord 构造单账户流水（存款/取款）
func NewLedgerRecord(recordNo, opType string, account *Account, amount, finalBalance decimal.Decimal) *LedgerRecord {
	return &LedgerRecord{
		RecordNo:     recordNo,
		Type:         opType,
		AccountID:    account.ID,
		OwnerUserID:  account.UserID,
		Amount:       amount,
		FinalBalance: finalBalance,
	}
}

// NewTransferRecord 构造转账流水
// 一次转账只产生一条流水，同时记录双方的最终余额
func NewTransferRecord(recordNo string, sender, receiver *Account, amount, finalSender, finalReceiver decimal.Decimal) *LedgerRecord {
	return &LedgerRecord{
		RecordNo:             recordNo,
		Type:                 LedgerTypeTransfer,
		AccountID:            sender.ID,
		OwnerUserID:          sender.UserID,
		Amount:               amount,
		FinalBalance:         finalSender,
		ReceiverAccountID:    &receiver.ID,
		ReceiverUserID:       receiver.UserID,
		FinalBalanceReceiver: decimal.NewNullDecimal(finalReceiver),
	}
}
