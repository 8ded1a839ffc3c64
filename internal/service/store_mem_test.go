package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"walletsystem/internal/model"
	"walletsystem/internal/repository"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 内存版 Store
// ============================================================================
//
// 模拟 MySQL 实现的关键语义，让执行器的并发与原子性测试不依赖数据库：
// 1. 每个账户一把互斥锁，获取等待超过 lockWait 返回 ErrLockTimeout
// 2. 事务内的写全部暂存，回调返回 nil 才一次性提交；任何错误整体丢弃
// 3. 锁在事务结束（提交或回滚）时释放
// 4. 账号序号分配持有一把序号锁直到事务结束，并发分配不会重复
//
// ============================================================================

type memStore struct {
	mu      sync.Mutex
	byID    map[int64]*model.Account
	byUser  map[string]int64
	byCod   map[string]int64
	records []*model.LedgerRecord
	outbox  []*model.OutboxMessage

	locks    map[int64]chan struct{}
	seqLock  chan struct{}
	nextID   int64
	maxNum   int
	lockWait time.Duration

	lockAttempts int32 // 行锁获取尝试次数（重试测试用）
	failAppend   bool  // 注入流水写入失败（原子性测试用）
}

var _ repository.Store = (*memStore)(nil)

func newMemStore(lockWait time.Duration) *memStore {
	return &memStore{
		byID:     make(map[int64]*model.Account),
		byUser:   make(map[string]int64),
		byCod:    make(map[string]int64),
		locks:    make(map[int64]chan struct{}),
		seqLock:  make(chan struct{}, 1),
		lockWait: lockWait,
	}
}

// seed 直接放入一个已提交账户
func (s *memStore) seed(userID string, balance decimal.Decimal) *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.maxNum++
	a := &model.Account{
		ID:         s.nextID,
		UserID:     userID,
		NumAccount: s.maxNum,
		CodAccount: model.FormatCodAccount(time.Now().Year(), s.maxNum),
		Balance:    balance,
	}
	s.byID[a.ID] = a
	s.byUser[a.UserID] = a.ID
	s.byCod[a.CodAccount] = a.ID
	s.locks[a.ID] = make(chan struct{}, 1)
	return a
}

// holdLock 从外部占住某账户的锁（制造争用）
func (s *memStore) holdLock(accountID int64) func() {
	s.mu.Lock()
	ch := s.locks[accountID]
	s.mu.Unlock()
	ch <- struct{}{}
	return func() { <-ch }
}

func (s *memStore) committed(accountID int64) *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.byID[accountID]
	return &cp
}

func (s *memStore) committedRecords() []*model.LedgerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.LedgerRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *memStore) committedOutbox() []*model.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.OutboxMessage, len(s.outbox))
	copy(out, s.outbox)
	return out
}

func (s *memStore) acquire(accountID int64) error {
	atomic.AddInt32(&s.lockAttempts, 1)
	s.mu.Lock()
	ch, ok := s.locks[accountID]
	s.mu.Unlock()
	if !ok {
		return repository.ErrAccountNotFound
	}
	select {
	case ch <- struct{}{}:
		return nil
	case <-time.After(s.lockWait):
		return repository.ErrLockTimeout
	}
}

func (s *memStore) Transaction(ctx context.Context, fn func(tx repository.TxStore) error) error {
	tx := &memTx{store: s, staged: make(map[int64]*model.Account)}
	err := fn(tx)

	if err == nil {
		s.mu.Lock()
		for id, a := range tx.staged {
			s.byID[id] = a
		}
		for _, a := range tx.created {
			s.byID[a.ID] = a
			s.byUser[a.UserID] = a.ID
			s.byCod[a.CodAccount] = a.ID
			s.locks[a.ID] = make(chan struct{}, 1)
			if a.NumAccount > s.maxNum {
				s.maxNum = a.NumAccount
			}
		}
		s.records = append(s.records, tx.records...)
		s.outbox = append(s.outbox, tx.outbox...)
		s.mu.Unlock()
	}

	tx.releaseLocks()
	return err
}

func (s *memStore) GetAccountByUserID(ctx context.Context, userID string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUser[userID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *memStore) GetAccountByCodAccount(ctx context.Context, codAccount string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCod[codAccount]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *memStore) QueryRecords(ctx context.Context, accountID int64, start, end time.Time) ([]*model.LedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// records 按提交顺序追加，天然是创建时间升序
	var out []*model.LedgerRecord
	for _, r := range s.records {
		if r.AccountID != accountID {
			continue
		}
		if r.CreatedAt.Before(start) || !r.CreatedAt.Before(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// memTx 绑定在一次"事务"上的暂存区
type memTx struct {
	store   *memStore
	held    []int64
	seqHeld bool
	staged  map[int64]*model.Account
	created []*model.Account
	records []*model.LedgerRecord
	outbox  []*model.OutboxMessage
}

var _ repository.TxStore = (*memTx)(nil)

func (t *memTx) releaseLocks() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(t.held) - 1; i >= 0; i-- {
		<-t.store.locks[t.held[i]]
	}
	if t.seqHeld {
		<-t.store.seqLock
	}
}

func (t *memTx) lockByID(id int64) (*model.Account, error) {
	if err := t.store.acquire(id); err != nil {
		return nil, err
	}
	t.held = append(t.held, id)

	t.store.mu.Lock()
	cp := *t.store.byID[id]
	t.store.mu.Unlock()
	t.staged[id] = &cp
	return &cp, nil
}

func (t *memTx) LockAccountByUserID(ctx context.Context, userID string) (*model.Account, error) {
	t.store.mu.Lock()
	id, ok := t.store.byUser[userID]
	t.store.mu.Unlock()
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return t.lockByID(id)
}

func (t *memTx) LockAccountByNumAccount(ctx context.Context, numAccount int) (*model.Account, error) {
	t.store.mu.Lock()
	var id int64
	found := false
	for _, a := range t.store.byID {
		if a.NumAccount == numAccount {
			id = a.ID
			found = true
			break
		}
	}
	t.store.mu.Unlock()
	if !found {
		return nil, repository.ErrAccountNotFound
	}
	return t.lockByID(id)
}

func (t *memTx) NextNumAccount(ctx context.Context) (int, error) {
	select {
	case t.store.seqLock <- struct{}{}:
		t.seqHeld = true
	case <-time.After(t.store.lockWait):
		return 0, repository.ErrLockTimeout
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.maxNum + len(t.created) + 1, nil
}

func (t *memTx) SaveAccount(ctx context.Context, account *model.Account) error {
	account.Version++
	t.staged[account.ID] = account
	return nil
}

func (t *memTx) CreateAccount(ctx context.Context, account *model.Account) error {
	t.store.mu.Lock()
	_, dup := t.store.byUser[account.UserID]
	t.store.mu.Unlock()
	if dup {
		return repository.ErrDuplicateAccount
	}
	for _, c := range t.created {
		if c.UserID == account.UserID {
			return repository.ErrDuplicateAccount
		}
	}

	t.store.mu.Lock()
	t.store.nextID++
	account.ID = t.store.nextID
	t.store.mu.Unlock()

	account.CreatedAt = time.Now()
	t.created = append(t.created, account)
	return nil
}

func (t *memTx) AppendRecord(ctx context.Context, record *model.LedgerRecord) error {
	if t.store.failAppend {
		return errStorageDown
	}
	record.CreatedAt = time.Now()
	t.records = append(t.records, record)
	return nil
}

func (t *memTx) CreateOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	t.outbox = append(t.outbox, msg)
	return nil
}
