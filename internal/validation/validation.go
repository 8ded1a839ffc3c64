package validation

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Error 校验错误
// 原样透传给调用方，不重试、不脱敏
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(message string) *Error {
	return &Error{Message: message}
}

// IsValidationError 判断是否为校验类错误
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// ErrSelfTransfer 转给自己的账户被拒绝
// 自转账即使允许也只会产生一条没有意义的流水，这里直接当作入参错误
var ErrSelfTransfer = newError("不能转账给自己的账户")

// 校验全部在拿锁之前执行，校验失败不会触碰存储

// ValidateDeposit 存款校验：金额必须为正，用户ID必填
func ValidateDeposit(userID string, amount decimal.Decimal) error {
	if userID == "" {
		return newError("用户ID不能为空")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return newError("存款金额必须大于0")
	}
	return nil
}

// ValidateWithdraw 取款校验：金额必须为正，用户ID必填
func ValidateWithdraw(userID string, amount decimal.Decimal) error {
	if userID == "" {
		return newError("用户ID不能为空")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return newError("取款金额必须大于0")
	}
	return nil
}

// ValidateTransfer 转账校验：金额必须为正，转出方用户ID和收款账号必填
func ValidateTransfer(senderUserID, receiverCodAccount string, amount decimal.Decimal) error {
	if senderUserID == "" || receiverCodAccount == "" {
		return newError("转出方和收款账号信息不能为空")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return newError("转账金额必须大于0")
	}
	return nil
}

// ValidateProvision 开户校验：用户ID必填
// 是否重复开户由服务层查库判断
func ValidateProvision(userID string) error {
	if userID == "" {
		return newError("用户ID不能为空")
	}
	return nil
}
