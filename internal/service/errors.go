package service

import "errors"

// 业务错误原样透传给调用方，不重试、不被熔断统计；
// 基础设施错误（锁争用、存储不可用）在执行器内部重试，
// 策略耗尽后升级为 ErrServiceUnavailable
var (
	ErrInsufficientFunds  = errors.New("余额不足")
	ErrSenderNotFound     = errors.New("转出方账户不存在")
	ErrReceiverNotFound   = errors.New("收款账户不存在")
	ErrServiceUnavailable = errors.New("服务暂时不可用，请稍后重试")
)
