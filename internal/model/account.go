package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType 账户类型，固定两位。目前只有 "01" 普通钱包账户
const AccountType = "01"

// Account 钱包账户表
// 每个用户最多持有一个账户，余额是整个系统唯一的共享可变状态
type Account struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"`     // 用户ID，由认证层传入，一人一户
	CodAccount string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"cod_account"` // 对外账号，创建后不可变
	NumAccount int             `gorm:"uniqueIndex;not null" json:"num_account"`                  // 全局递增的账户序号，转账加锁按它排序
	Balance    decimal.Decimal `gorm:"type:decimal(19,4);not null;default:0" json:"balance"`     // 余额，任何时刻不允许为负
	Version    int             `gorm:"not null;default:0" json:"version"`                        // 版本号，每次余额变动 +1
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// FormatCodAccount 生成对外账号
// 格式：年份.八位序号-账户类型，如 "2026.00000001-01"
func FormatCodAccount(year, numAccount int) string {
	return fmt.Sprintf("%d.%08d-%s", year, numAccount, AccountType)
}
