// Package memory 进程内仓储实现，语义与 gorm 实现一致：
// Execute 持有全局互斥锁并在副本上执行，成功才替换，失败即丢弃（等价于回滚）。
// 用于本地运行（database.driver=memory）和服务层测试。
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"agrimarket/internal/model"
	"agrimarket/internal/repository"
)

var errNegativeBalance = errors.New("balance must not be negative")

type state struct {
	users        map[int64]model.User
	products     map[int64]model.Product
	orders       map[int64]model.Order
	transactions map[int64]model.Transaction
	outbox       map[int64]model.OutboxMessage

	nextUserID        int64
	nextProductID     int64
	nextOrderID       int64
	nextTransactionID int64
	nextOutboxID      int64
}

func newState() *state {
	return &state{
		users:        map[int64]model.User{},
		products:     map[int64]model.Product{},
		orders:       map[int64]model.Order{},
		transactions: map[int64]model.Transaction{},
		outbox:       map[int64]model.OutboxMessage{},
	}
}

func (s *state) clone() *state {
	c := *s
	c.users = make(map[int64]model.User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	c.products = make(map[int64]model.Product, len(s.products))
	for k, v := range s.products {
		c.products[k] = v
	}
	c.orders = make(map[int64]model.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.transactions = make(map[int64]model.Transaction, len(s.transactions))
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	c.outbox = make(map[int64]model.OutboxMessage, len(s.outbox))
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return &c
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time

	// BeforeCommit 测试钩子：返回错误时本次 Execute 回滚并返回该错误
	BeforeCommit func() error
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) Execute(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(ctx, &view{store: s, st: working, inTx: true}); err != nil {
		return err
	}
	if s.BeforeCommit != nil {
		if err := s.BeforeCommit(); err != nil {
			return err
		}
	}
	s.st = working
	return nil
}

func (s *Store) Orders() repository.OrderStore {
	return &orderRepo{view{store: s}}
}

func (s *Store) Products() repository.ProductStore {
	return &productRepo{view{store: s}}
}

func (s *Store) Users() repository.UserStore {
	return &userRepo{view{store: s}}
}

func (s *Store) Transactions() repository.TransactionStore {
	return &transactionRepo{view{store: s}}
}

func (s *Store) Outbox() repository.OutboxStore {
	return &outboxRepo{view{store: s}}
}

// AddUser 写入用户目录（外部协作方的数据）
func (s *Store) AddUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == 0 {
		s.st.nextUserID++
		user.ID = s.st.nextUserID
	} else if user.ID > s.st.nextUserID {
		s.st.nextUserID = user.ID
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	s.st.users[user.ID] = *user
}

// AddProduct 写入商品目录（外部协作方的数据）
func (s *Store) AddProduct(product *model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == 0 {
		s.st.nextProductID++
		product.ID = s.st.nextProductID
	} else if product.ID > s.st.nextProductID {
		s.st.nextProductID = product.ID
	}
	if product.Status == "" {
		product.Status = model.ProductStatusAvailable
	}
	now := s.now()
	product.CreatedAt, product.UpdatedAt = now, now
	s.st.products[product.ID] = *product
}

// view 绑定到某个状态快照的仓储视图；事务外的视图每次调用自己加锁
type view struct {
	store *Store
	st    *state
	inTx  bool
}

func (v view) begin() (*state, func()) {
	if v.inTx {
		return v.st, func() {}
	}
	v.store.mu.Lock()
	return v.store.st, v.store.mu.Unlock
}

func (v *view) Orders() repository.OrderStore             { return &orderRepo{*v} }
func (v *view) Products() repository.ProductStore         { return &productRepo{*v} }
func (v *view) Users() repository.UserStore               { return &userRepo{*v} }
func (v *view) Transactions() repository.TransactionStore { return &transactionRepo{*v} }
func (v *view) Outbox() repository.OutboxStore            { return &outboxRepo{*v} }

func paginate(total, page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}
