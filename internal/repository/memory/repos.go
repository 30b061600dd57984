package memory

import (
	"context"
	"sort"
	"time"

	"agrimarket/internal/model"
	"agrimarket/internal/repository"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// orders
// ---------------------------------------------------------------------------

type orderRepo struct{ view }

func (r *orderRepo) Create(ctx context.Context, order *model.Order) error {
	st, done := r.begin()
	defer done()

	if order.RequestID != nil {
		for _, o := range st.orders {
			if o.RequestID != nil && *o.RequestID == *order.RequestID {
				return repository.ErrConflict
			}
		}
	}

	st.nextOrderID++
	order.ID = st.nextOrderID
	now := r.store.now()
	order.CreatedAt, order.UpdatedAt = now, now

	stored := *order
	stored.Product, stored.Buyer, stored.Transactions = nil, nil, nil
	st.orders[order.ID] = stored
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	st, done := r.begin()
	defer done()

	o, ok := st.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (r *orderRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *orderRepo) GetDetail(ctx context.Context, id int64) (*model.Order, error) {
	st, done := r.begin()
	defer done()

	o, ok := st.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if p, ok := st.products[o.ProductID]; ok {
		o.Product = &p
	}
	if u, ok := st.users[o.BuyerID]; ok {
		o.Buyer = &u
	}
	for _, t := range sortedTransactions(st) {
		if t.OrderID != nil && *t.OrderID == id {
			o.Transactions = append(o.Transactions, t)
		}
	}
	return &o, nil
}

func (r *orderRepo) GetByRequestID(ctx context.Context, requestID string) (*model.Order, error) {
	st, done := r.begin()
	defer done()

	for _, o := range st.orders {
		if o.RequestID != nil && *o.RequestID == requestID {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id int64, fromStatus, toStatus string, changes model.OrderChanges) error {
	st, done := r.begin()
	defer done()

	o, ok := st.orders[id]
	if !ok || o.Status != fromStatus {
		return repository.ErrOrderStatusInvalid
	}
	o.Status = toStatus
	if changes.PaymentStatus != "" {
		o.PaymentStatus = changes.PaymentStatus
	}
	if changes.CancellationReason != "" {
		o.CancellationReason = changes.CancellationReason
	}
	if changes.PaymentDueAt != nil {
		due := *changes.PaymentDueAt
		o.PaymentDueAt = &due
	}
	o.UpdatedAt = r.store.now()
	st.orders[id] = o
	return nil
}

func (r *orderRepo) ListByBuyerID(ctx context.Context, buyerID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return r.list(func(o model.Order) bool { return o.BuyerID == buyerID }, page, pageSize)
}

func (r *orderRepo) ListBySellerID(ctx context.Context, sellerID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return r.list(func(o model.Order) bool { return o.SellerID == sellerID }, page, pageSize)
}

func (r *orderRepo) list(match func(model.Order) bool, page, pageSize int) ([]*model.Order, int64, error) {
	st, done := r.begin()
	defer done()

	var matched []model.Order
	for _, o := range st.orders {
		if match(o) {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	start, end := paginate(len(matched), page, pageSize)
	out := make([]*model.Order, 0, end-start)
	for _, o := range matched[start:end] {
		o := o
		if p, ok := st.products[o.ProductID]; ok {
			o.Product = &p
		}
		out = append(out, &o)
	}
	return out, int64(len(matched)), nil
}

func (r *orderRepo) GetPaymentExpired(ctx context.Context, before time.Time, afterID int64, limit int) ([]*model.Order, error) {
	st, done := r.begin()
	defer done()

	var out []*model.Order
	for _, o := range st.orders {
		if o.ID > afterID && o.Status == model.OrderStatusPaymentPending && o.PaymentDueAt != nil && o.PaymentDueAt.Before(before) {
			o := o
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// products
// ---------------------------------------------------------------------------

type productRepo struct{ view }

func (r *productRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	st, done := r.begin()
	defer done()

	p, ok := st.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (r *productRepo) DecrementStock(ctx context.Context, id int64, qty decimal.Decimal) error {
	st, done := r.begin()
	defer done()

	p, ok := st.products[id]
	if !ok || p.Status != model.ProductStatusAvailable || p.AvailableQuantity.LessThan(qty) {
		return repository.ErrStockNotEnough
	}
	p.AvailableQuantity = p.AvailableQuantity.Sub(qty)
	if p.AvailableQuantity.IsZero() {
		p.Status = model.ProductStatusSoldOut
	}
	p.UpdatedAt = r.store.now()
	st.products[id] = p
	return nil
}

func (r *productRepo) RestoreStock(ctx context.Context, id int64, qty decimal.Decimal) error {
	st, done := r.begin()
	defer done()

	p, ok := st.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.AvailableQuantity = p.AvailableQuantity.Add(qty)
	p.Status = model.ProductStatusAvailable
	p.UpdatedAt = r.store.now()
	st.products[id] = p
	return nil
}

// ---------------------------------------------------------------------------
// users
// ---------------------------------------------------------------------------

type userRepo struct{ view }

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	st, done := r.begin()
	defer done()

	u, ok := st.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepo) UpdateBalances(ctx context.Context, user *model.User) error {
	st, done := r.begin()
	defer done()

	current, ok := st.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if current.Version != user.Version {
		return repository.ErrConflict
	}
	if user.WalletBalance.IsNegative() || user.EscrowBalance.IsNegative() {
		return errNegativeBalance
	}
	current.WalletBalance = user.WalletBalance
	current.EscrowBalance = user.EscrowBalance
	current.Version++
	current.UpdatedAt = r.store.now()
	st.users[user.ID] = current
	user.Version = current.Version
	return nil
}

// ---------------------------------------------------------------------------
// transactions
// ---------------------------------------------------------------------------

type transactionRepo struct{ view }

func (r *transactionRepo) Create(ctx context.Context, trans *model.Transaction) error {
	st, done := r.begin()
	defer done()

	if trans.PaymentReference != nil {
		for _, t := range st.transactions {
			if t.PaymentReference != nil && *t.PaymentReference == *trans.PaymentReference {
				return repository.ErrDuplicateReference
			}
		}
	}

	st.nextTransactionID++
	trans.ID = st.nextTransactionID
	trans.CreatedAt = r.store.now()
	st.transactions[trans.ID] = *trans
	return nil
}

func (r *transactionRepo) ListByOrderID(ctx context.Context, orderID int64) ([]*model.Transaction, error) {
	st, done := r.begin()
	defer done()

	var out []*model.Transaction
	for _, t := range sortedTransactions(st) {
		if t.OrderID != nil && *t.OrderID == orderID {
			t := t
			out = append(out, &t)
		}
	}
	return out, nil
}

func (r *transactionRepo) FindByOrder(ctx context.Context, orderID int64, transType, status string) (*model.Transaction, error) {
	st, done := r.begin()
	defer done()

	for _, t := range sortedTransactions(st) {
		if t.OrderID != nil && *t.OrderID == orderID && t.Type == transType && t.Status == status {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, id int64, fromStatus, toStatus string, processedAt *time.Time) error {
	if model.IsTerminalTransactionStatus(fromStatus) {
		return repository.ErrTransactionFinal
	}

	st, done := r.begin()
	defer done()

	t, ok := st.transactions[id]
	if !ok || t.Status != fromStatus {
		return repository.ErrTransactionNotFound
	}
	t.Status = toStatus
	if processedAt != nil {
		at := *processedAt
		t.ProcessedAt = &at
	}
	st.transactions[id] = t
	return nil
}

func (r *transactionRepo) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	st, done := r.begin()
	defer done()

	all := sortedTransactions(st)
	var matched []model.Transaction
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].UserID == userID {
			matched = append(matched, all[i])
		}
	}

	start, end := paginate(len(matched), page, pageSize)
	out := make([]*model.Transaction, 0, end-start)
	for _, t := range matched[start:end] {
		t := t
		out = append(out, &t)
	}
	return out, int64(len(matched)), nil
}

func sortedTransactions(st *state) []model.Transaction {
	out := make([]model.Transaction, 0, len(st.transactions))
	for _, t := range st.transactions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---------------------------------------------------------------------------
// outbox
// ---------------------------------------------------------------------------

type outboxRepo struct{ view }

func (r *outboxRepo) Create(ctx context.Context, msg *model.OutboxMessage) error {
	st, done := r.begin()
	defer done()

	st.nextOutboxID++
	msg.ID = st.nextOutboxID
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	now := r.store.now()
	msg.CreatedAt, msg.UpdatedAt = now, now
	st.outbox[msg.ID] = *msg
	return nil
}

func (r *outboxRepo) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	st, done := r.begin()
	defer done()

	var out []*model.OutboxMessage
	for _, m := range st.outbox {
		if m.Status == model.OutboxStatusPending {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *outboxRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	now := r.store.now()
	return r.update(id, func(m *model.OutboxMessage) {
		m.Status = status
		if status == model.OutboxStatusSent {
			m.SentAt = &now
		}
	})
}

func (r *outboxRepo) IncrementRetryCount(ctx context.Context, id int64) error {
	return r.update(id, func(m *model.OutboxMessage) { m.RetryCount++ })
}

func (r *outboxRepo) MarkAsFailed(ctx context.Context, id int64) error {
	return r.update(id, func(m *model.OutboxMessage) {
		m.Status = model.OutboxStatusFailed
		m.RetryCount++
	})
}

func (r *outboxRepo) update(id int64, fn func(m *model.OutboxMessage)) error {
	st, done := r.begin()
	defer done()

	m, ok := st.outbox[id]
	if !ok || m.Status != model.OutboxStatusPending {
		return nil
	}
	fn(&m)
	m.UpdatedAt = r.store.now()
	st.outbox[id] = m
	return nil
}
