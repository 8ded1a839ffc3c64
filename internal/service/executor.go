package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"walletsystem/internal/model"
	"walletsystem/internal/repository"
	"walletsystem/internal/validation"
	"walletsystem/pkg/idgen"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 操作执行器 —— 账本引擎的核心
// ============================================================================
//
// 每个操作走同一条路径：
//
//   校验 -> 加锁 -> 算余额 -> 写流水+写事件 -> 提交
//
// 【关键点】
// 1. 原子性：余额变动、账本流水、发件箱事件在同一个数据库事务里提交，
//    任何一步失败整体回滚，不会出现"有流水没扣款"或反过来的状态
// 2. 并发安全：操作内的第一次读就是 FOR UPDATE，锁持有到事务结束；
//    同一账户的并发操作被串行化，不同账户互不阻塞
// 3. 锁顺序：转账要锁两个账户，统一按账户序号升序加锁。
//    两笔对向转账（A->B 和 B->A）因此不会互相持锁等待
// 4. 余额不变量：任何路径都不会把余额写成负数，
//    余额不足直接拒绝，不产生任何流水
//
// ============================================================================

// OperationResult 操作成功后的返回值
type OperationResult struct {
	RecordNo        string          // 账本流水号
	Balance         decimal.Decimal // 主账户（转账时为转出方）的最新余额
	ReceiverBalance decimal.Decimal // 仅转账：收款方的最新余额
}

// Executor 操作执行器
// 不包含重试与熔断，对外暴露时用 ResilientExecutor 包一层
type Executor struct {
	store repository.Store
	topic string // 账本事件的 Kafka topic
}

func NewExecutor(store repository.Store, ledgerTopic string) *Executor {
	return &Executor{
		store: store,
		topic: ledgerTopic,
	}
}

// Deposit 存款
func (e *Executor) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*OperationResult, error) {
	if err := validation.ValidateDeposit(userID, amount); err != nil {
		return nil, err
	}

	var result *OperationResult
	err := e.store.Transaction(ctx, func(tx repository.TxStore) error {
		account, err := tx.LockAccountByUserID(ctx, userID)
		if err != nil {
			return err
		}

		newBalance := account.Balance.Add(amount)
		record := model.NewLedgerRecord(idgen.GenerateRecordNo(), model.LedgerTypeDeposit, account, amount, newBalance)

		account.Balance = newBalance
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		if err := tx.AppendRecord(ctx, record); err != nil {
			return err
		}
		if err := e.appendEvent(ctx, tx, record); err != nil {
			return err
		}

		result = &OperationResult{RecordNo: record.RecordNo, Balance: newBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Executor] 存款成功: userID=%s amount=%s balance=%s", userID, amount, result.Balance)
	return result, nil
}

// Withdraw 取款
// 余额不足时拒绝，不产生流水、不改余额
func (e *Executor) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (*OperationResult, error) {
	if err := validation.ValidateWithdraw(userID, amount); err != nil {
		return nil, err
	}

	var result *OperationResult
	err := e.store.Transaction(ctx, func(tx repository.TxStore) error {
		account, err := tx.LockAccountByUserID(ctx, userID)
		if err != nil {
			return err
		}

		if account.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		newBalance := account.Balance.Sub(amount)
		record := model.NewLedgerRecord(idgen.GenerateRecordNo(), model.LedgerTypeWithdraw, account, amount, newBalance)

		account.Balance = newBalance
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		if err := tx.AppendRecord(ctx, record); err != nil {
			return err
		}
		if err := e.appendEvent(ctx, tx, record); err != nil {
			return err
		}

		result = &OperationResult{RecordNo: record.RecordNo, Balance: newBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Executor] 取款成功: userID=%s amount=%s balance=%s", userID, amount, result.Balance)
	return result, nil
}

// Transfer 转账
// 转出方按用户ID定位，收款方按对外账号定位。
// 一次转账只产生一条 TRANSFER 流水，双方余额之和保持不变
func (e *Executor) Transfer(ctx context.Context, senderUserID, receiverCodAccount string, amount decimal.Decimal) (*OperationResult, error) {
	if err := validation.ValidateTransfer(senderUserID, receiverCodAccount, amount); err != nil {
		return nil, err
	}

	// 先无锁读出双方的账户序号，确定加锁顺序。
	// 账户不删除、序号不可变，预读结果可以放心用来排序
	senderRef, err := e.store.GetAccountByUserID(ctx, senderUserID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, err
	}
	if senderRef.CodAccount == receiverCodAccount {
		return nil, validation.ErrSelfTransfer
	}
	receiverRef, err := e.store.GetAccountByCodAccount(ctx, receiverCodAccount)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrReceiverNotFound
		}
		return nil, err
	}

	var result *OperationResult
	err = e.store.Transaction(ctx, func(tx repository.TxStore) error {
		sender, receiver, err := lockPair(ctx, tx, senderRef.NumAccount, receiverRef.NumAccount)
		if err != nil {
			return err
		}

		if sender.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		finalSender := sender.Balance.Sub(amount)
		finalReceiver := receiver.Balance.Add(amount)
		record := model.NewTransferRecord(idgen.GenerateRecordNo(), sender, receiver, amount, finalSender, finalReceiver)

		sender.Balance = finalSender
		receiver.Balance = finalReceiver
		if err := tx.SaveAccount(ctx, sender); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, receiver); err != nil {
			return err
		}
		if err := tx.AppendRecord(ctx, record); err != nil {
			return err
		}
		if err := e.appendEvent(ctx, tx, record); err != nil {
			return err
		}

		result = &OperationResult{
			RecordNo:        record.RecordNo,
			Balance:         finalSender,
			ReceiverBalance: finalReceiver,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Executor] 转账成功: sender=%s receiver=%s amount=%s senderBalance=%s receiverBalance=%s",
		senderUserID, receiverCodAccount, amount, result.Balance, result.ReceiverBalance)
	return result, nil
}

// lockPair 按账户序号升序锁定转账双方，返回 (转出方, 收款方)
func lockPair(ctx context.Context, tx repository.TxStore, senderNum, receiverNum int) (*model.Account, *model.Account, error) {
	first, second := senderNum, receiverNum
	if first > second {
		first, second = second, first
	}

	a, err := tx.LockAccountByNumAccount(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := tx.LockAccountByNumAccount(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if a.NumAccount == senderNum {
		return a, b, nil
	}
	return b, a, nil
}

// appendEvent 把流水对应的账本事件写入发件箱（同一事务内）
func (e *Executor) appendEvent(ctx context.Context, tx repository.TxStore, record *model.LedgerRecord) error {
	payload := map[string]interface{}{
		"record_no":     record.RecordNo,
		"type":          record.Type,
		"owner_user_id": record.OwnerUserID,
		"amount":        record.Amount.String(),
		"final_balance": record.FinalBalance.String(),
		"created_at":    time.Now().Format(time.RFC3339),
	}
	if record.Type == model.LedgerTypeTransfer {
		payload["receiver_user_id"] = record.ReceiverUserID
		payload["final_balance_receiver"] = record.FinalBalanceReceiver.Decimal.String()
	}
	payloadBytes, _ := json.Marshal(payload)

	return tx.CreateOutbox(ctx, &model.OutboxMessage{
		MessageKey: record.RecordNo,
		Topic:      e.topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}
