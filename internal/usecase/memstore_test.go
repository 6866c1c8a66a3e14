package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"

	"github.com/shopspring/decimal"
)

// =====================
// in-memory TransactionManager
// =====================

// memStore はトランザクションを1本ずつ直列に流す。
// 開始時に状態を丸ごと複製し、fnが成功したときだけ書き戻す。
type memStore struct {
	mu    sync.Mutex
	state *memState
	hooks *memHooks
}

// 指定メソッドでエラーを返させる（ロールバック確認用）
type memHooks struct {
	mu   sync.Mutex
	fail map[string]error
}

func (h *memHooks) check(method string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fail[method]
}

type memState struct {
	nextID      int64
	users       map[int64]model.User
	products    map[int64]model.Product
	cartItems   map[int64]model.CartItem
	orders      map[int64]model.Order
	orderItems  map[int64][]model.OrderItem
	ledger      []model.Transaction
	coupons     map[int64]model.Coupon
	redemptions []model.CouponRedemption
	audits      []model.AuditLog
	adjustments []model.InventoryAdjustment
	addresses   map[int64]model.Address
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			users:      map[int64]model.User{},
			products:   map[int64]model.Product{},
			cartItems:  map[int64]model.CartItem{},
			orders:     map[int64]model.Order{},
			orderItems: map[int64][]model.OrderItem{},
			coupons:    map[int64]model.Coupon{},
			addresses:  map[int64]model.Address{},
		},
		hooks: &memHooks{fail: map[string]error{}},
	}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memRepos{s: work, hooks: m.hooks}); err != nil {
		return err
	}
	*m.state = *work
	return nil
}

// トランザクション外で使うrepo（usecaseへ直接渡す分）
func (m *memStore) repos() *memRepos {
	return &memRepos{s: m.state, hooks: m.hooks, lock: &m.mu}
}

func (m *memStore) failOn(method string, err error) {
	m.hooks.mu.Lock()
	defer m.hooks.mu.Unlock()
	m.hooks.fail[method] = err
}

// テストから状態を覗く
func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:      s.nextID,
		users:       make(map[int64]model.User, len(s.users)),
		products:    make(map[int64]model.Product, len(s.products)),
		cartItems:   make(map[int64]model.CartItem, len(s.cartItems)),
		orders:      make(map[int64]model.Order, len(s.orders)),
		orderItems:  make(map[int64][]model.OrderItem, len(s.orderItems)),
		ledger:      append([]model.Transaction(nil), s.ledger...),
		coupons:     make(map[int64]model.Coupon, len(s.coupons)),
		redemptions: append([]model.CouponRedemption(nil), s.redemptions...),
		audits:      append([]model.AuditLog(nil), s.audits...),
		adjustments: append([]model.InventoryAdjustment(nil), s.adjustments...),
		addresses:   make(map[int64]model.Address, len(s.addresses)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]model.OrderItem(nil), v...)
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	return c
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// =====================
// seed helpers
// =====================

func (m *memStore) seedUser(email string, balance string) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := model.User{
		ID:            m.state.id(),
		Email:         email,
		Role:          model.RoleUser,
		IsActive:      true,
		WalletBalance: decimal.RequireFromString(balance),
	}
	m.state.users[u.ID] = u
	return u
}

func (m *memStore) seedProduct(name string, price string, stock int64) model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := model.Product{
		ID:              m.state.id(),
		Name:            name,
		SKU:             "SKU-" + strings.ToUpper(strings.ReplaceAll(name, " ", "-")),
		Price:           decimal.RequireFromString(price),
		StockQuantity:   stock,
		TracksInventory: true,
		IsActive:        true,
	}
	m.state.products[p.ID] = p
	return p
}

func (m *memStore) seedCartItem(userID, productID, qty int64) model.CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := model.CartItem{ID: m.state.id(), UserID: userID, ProductID: productID, Quantity: qty}
	m.state.cartItems[it.ID] = it
	return it
}

func (m *memStore) seedCoupon(c model.Coupon) model.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.state.id()
	m.state.coupons[c.ID] = c
	return c
}

func (m *memStore) seedAddress(a model.Address) model.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.state.id()
	m.state.addresses[a.ID] = a
	return a
}

func (m *memStore) updateProduct(id int64, fn func(p *model.Product)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.state.products[id]
	fn(&p)
	m.state.products[id] = p
}

func (m *memStore) updateCoupon(id int64, fn func(c *model.Coupon)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.state.coupons[id]
	fn(&c)
	m.state.coupons[id] = c
}

func (m *memStore) updateOrder(id int64, fn func(o *model.Order)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.state.orders[id]
	fn(&o)
	m.state.orders[id] = o
}

// =====================
// TxRepos
// =====================

type memRepos struct {
	s     *memState
	hooks *memHooks
	// トランザクション外から呼ぶときだけ
	lock *sync.Mutex
}

func (r *memRepos) Users() repo.UserRepository           { return memUsers{r} }
func (r *memRepos) Products() repo.ProductRepository     { return memProducts{r} }
func (r *memRepos) Inventory() repo.InventoryRepository  { return memInventory{r} }
func (r *memRepos) CartItems() repo.CartItemRepository   { return memCartItems{r} }
func (r *memRepos) Orders() repo.OrderRepository         { return memOrders{r} }
func (r *memRepos) OrderItems() repo.OrderItemRepository { return memOrderItems{r} }
func (r *memRepos) Ledger() repo.TransactionRepository   { return memLedger{r} }
func (r *memRepos) Coupons() repo.CouponRepository       { return memCoupons{r} }
func (r *memRepos) AuditLogs() repo.AuditLogRepository   { return memAudits{r} }
func (r *memRepos) Addresses() repo.AddressRepository    { return memAddresses{r} }

// enter はフック確認とロック取得。戻り値の関数でロック解除。
func (r *memRepos) enter(method string) (func(), error) {
	if err := r.hooks.check(method); err != nil {
		return func() {}, err
	}
	if r.lock != nil {
		r.lock.Lock()
		return r.lock.Unlock, nil
	}
	return func() {}, nil
}

func paginate[T any](list []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(list) {
		return []T{}
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

// ---------- users ----------

type memUsers struct{ r *memRepos }

func (m memUsers) Create(ctx context.Context, user *model.User) error {
	done, err := m.r.enter("Users.Create")
	defer done()
	if err != nil {
		return err
	}
	for _, u := range m.r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repo.ErrConflict
		}
	}
	user.ID = m.r.s.id()
	m.r.s.users[user.ID] = *user
	return nil
}

func (m memUsers) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	done, err := m.r.enter("Users.FindByID")
	defer done()
	if err != nil {
		return nil, err
	}
	u, ok := m.r.s.users[userID]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return &u, nil
}

func (m memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	done, err := m.r.enter("Users.FindByEmail")
	defer done()
	if err != nil {
		return nil, err
	}
	for _, u := range m.r.s.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (m memUsers) FindByIDForUpdate(ctx context.Context, userID int64) (*model.User, error) {
	if err := m.r.hooks.check("Users.FindByIDForUpdate"); err != nil {
		return nil, err
	}
	return m.FindByID(ctx, userID)
}

func (m memUsers) UpdateWalletBalance(ctx context.Context, userID int64, before, after decimal.Decimal) (bool, error) {
	done, err := m.r.enter("Users.UpdateWalletBalance")
	defer done()
	if err != nil {
		return false, err
	}
	u, ok := m.r.s.users[userID]
	if !ok || !u.WalletBalance.Equal(before) {
		return false, nil
	}
	u.WalletBalance = after
	m.r.s.users[userID] = u
	return true, nil
}

func (m memUsers) UpdateLastLogin(ctx context.Context, userID int64) error {
	done, err := m.r.enter("Users.UpdateLastLogin")
	defer done()
	if err != nil {
		return err
	}
	u, ok := m.r.s.users[userID]
	if !ok {
		return repo.ErrUserNotFound
	}
	now := time.Now()
	u.LastLoginAt = &now
	m.r.s.users[userID] = u
	return nil
}

func (m memUsers) IncrementTokenVersion(ctx context.Context, userID int64) error {
	done, err := m.r.enter("Users.IncrementTokenVersion")
	defer done()
	if err != nil {
		return err
	}
	u, ok := m.r.s.users[userID]
	if !ok {
		return repo.ErrUserNotFound
	}
	u.TokenVersion++
	m.r.s.users[userID] = u
	return nil
}

// ---------- products / inventory ----------

type memProducts struct{ r *memRepos }

func (m memProducts) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	done, err := m.r.enter("Products.ListPublic")
	defer done()
	if err != nil {
		return nil, 0, err
	}
	var list []model.Product
	for _, p := range m.r.s.products {
		if !p.IsActive || p.DeletedAt.Valid {
			continue
		}
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		if q.MinPrice != nil && p.Price.LessThan(*q.MinPrice) {
			continue
		}
		if q.MaxPrice != nil && p.Price.GreaterThan(*q.MaxPrice) {
			continue
		}
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return paginate(list, q.Page, q.Limit), int64(len(list)), nil
}

func (m memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	done, err := m.r.enter("Products.FindByID")
	defer done()
	if err != nil {
		return model.Product{}, err
	}
	p, ok := m.r.s.products[id]
	if !ok || p.DeletedAt.Valid {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	done, err := m.r.enter("Products.Create")
	defer done()
	if err != nil {
		return model.Product{}, err
	}
	for _, existing := range m.r.s.products {
		if p.SKU != "" && existing.SKU == p.SKU {
			return model.Product{}, repo.ErrConflict
		}
	}
	p.ID = m.r.s.id()
	m.r.s.products[p.ID] = p
	return p, nil
}

type memInventory struct{ r *memRepos }

func (m memInventory) SetStock(ctx context.Context, productID int64, newStock int64) error {
	done, err := m.r.enter("Inventory.SetStock")
	defer done()
	if err != nil {
		return err
	}
	p, ok := m.r.s.products[productID]
	if !ok || p.DeletedAt.Valid {
		return repo.ErrNotFound
	}
	p.StockQuantity = newStock
	m.r.s.products[productID] = p
	return nil
}

func (m memInventory) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	done, err := m.r.enter("Inventory.DecreaseStockIfEnough")
	defer done()
	if err != nil {
		return false, err
	}
	p, ok := m.r.s.products[productID]
	if !ok || p.DeletedAt.Valid {
		return false, nil
	}
	if p.TracksInventory {
		if p.StockQuantity < qty {
			return false, nil
		}
		p.StockQuantity -= qty
	}
	p.SoldCount += qty
	m.r.s.products[productID] = p
	return true, nil
}

func (m memInventory) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	done, err := m.r.enter("Inventory.IncreaseStock")
	defer done()
	if err != nil {
		return err
	}
	p, ok := m.r.s.products[productID]
	if !ok || !p.TracksInventory {
		return repo.ErrNotFound
	}
	p.StockQuantity += qty
	m.r.s.products[productID] = p
	return nil
}

func (m memInventory) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	done, err := m.r.enter("Inventory.CreateAdjustment")
	defer done()
	if err != nil {
		return err
	}
	adj.ID = m.r.s.id()
	m.r.s.adjustments = append(m.r.s.adjustments, adj)
	return nil
}

// ---------- cart ----------

type memCartItems struct{ r *memRepos }

func (m memCartItems) ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error) {
	done, err := m.r.enter("CartItems.ListByUserID")
	defer done()
	if err != nil {
		return nil, err
	}
	var out []model.CartItem
	for _, it := range m.r.s.cartItems {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memCartItems) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	done, err := m.r.enter("CartItems.FindByID")
	defer done()
	if err != nil {
		return model.CartItem{}, err
	}
	it, ok := m.r.s.cartItems[cartItemID]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return it, nil
}

func (m memCartItems) FindByUserAndProduct(ctx context.Context, userID int64, productID int64) (model.CartItem, bool, error) {
	done, err := m.r.enter("CartItems.FindByUserAndProduct")
	defer done()
	if err != nil {
		return model.CartItem{}, false, err
	}
	for _, it := range m.r.s.cartItems {
		if it.UserID == userID && it.ProductID == productID {
			return it, true, nil
		}
	}
	return model.CartItem{}, false, nil
}

func (m memCartItems) UpsertAddQuantity(ctx context.Context, userID int64, productID int64, addQty int64) (model.CartItem, error) {
	done, err := m.r.enter("CartItems.UpsertAddQuantity")
	defer done()
	if err != nil {
		return model.CartItem{}, err
	}
	for id, it := range m.r.s.cartItems {
		if it.UserID == userID && it.ProductID == productID {
			it.Quantity += addQty
			m.r.s.cartItems[id] = it
			return it, nil
		}
	}
	it := model.CartItem{ID: m.r.s.id(), UserID: userID, ProductID: productID, Quantity: addQty}
	m.r.s.cartItems[it.ID] = it
	return it, nil
}

func (m memCartItems) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	done, err := m.r.enter("CartItems.UpdateQuantity")
	defer done()
	if err != nil {
		return err
	}
	it, ok := m.r.s.cartItems[cartItemID]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	m.r.s.cartItems[cartItemID] = it
	return nil
}

func (m memCartItems) DeleteByID(ctx context.Context, cartItemID int64) error {
	done, err := m.r.enter("CartItems.DeleteByID")
	defer done()
	if err != nil {
		return err
	}
	if _, ok := m.r.s.cartItems[cartItemID]; !ok {
		return repo.ErrNotFound
	}
	delete(m.r.s.cartItems, cartItemID)
	return nil
}

func (m memCartItems) ClearByUserID(ctx context.Context, userID int64) error {
	done, err := m.r.enter("CartItems.ClearByUserID")
	defer done()
	if err != nil {
		return err
	}
	for id, it := range m.r.s.cartItems {
		if it.UserID == userID {
			delete(m.r.s.cartItems, id)
		}
	}
	return nil
}

func (m memCartItems) CountQuantityByUserID(ctx context.Context, userID int64) (int64, error) {
	done, err := m.r.enter("CartItems.CountQuantityByUserID")
	defer done()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, it := range m.r.s.cartItems {
		if it.UserID == userID {
			n += it.Quantity
		}
	}
	return n, nil
}

// ---------- orders ----------

type memOrders struct{ r *memRepos }

func (m memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	done, err := m.r.enter("Orders.FindByID")
	defer done()
	if err != nil {
		return model.Order{}, err
	}
	o, ok := m.r.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m memOrders) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return m.FindByID(ctx, orderID)
}

func (m memOrders) ListByUserID(ctx context.Context, userID int64, status string, page int, limit int) ([]model.Order, int64, error) {
	done, err := m.r.enter("Orders.ListByUserID")
	defer done()
	if err != nil {
		return nil, 0, err
	}
	var list []model.Order
	for _, o := range m.r.s.orders {
		if o.UserID != userID {
			continue
		}
		if status != "" && string(o.Status) != status {
			continue
		}
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return paginate(list, page, limit), int64(len(list)), nil
}

func (m memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	done, err := m.r.enter("Orders.ListAdmin")
	defer done()
	if err != nil {
		return nil, 0, err
	}
	var list []model.Order
	for _, o := range m.r.s.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return paginate(list, f.Page, f.Limit), int64(len(list)), nil
}

func (m memOrders) Create(ctx context.Context, order model.Order) (model.Order, error) {
	done, err := m.r.enter("Orders.Create")
	defer done()
	if err != nil {
		return model.Order{}, err
	}
	for _, o := range m.r.s.orders {
		if o.OrderNumber == order.OrderNumber {
			return model.Order{}, repo.ErrConflict
		}
	}
	order.ID = m.r.s.id()
	m.r.s.orders[order.ID] = order
	return order, nil
}

func (m memOrders) TransitionStatus(ctx context.Context, orderID int64, from []model.OrderStatus, upd repo.OrderStatusUpdate) (bool, error) {
	done, err := m.r.enter("Orders.TransitionStatus")
	defer done()
	if err != nil {
		return false, err
	}
	o, ok := m.r.s.orders[orderID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, st := range from {
		if o.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	o.Status = upd.Status
	o.UpdatedAt = upd.UpdatedAt
	if upd.PaymentStatus != nil {
		o.PaymentStatus = *upd.PaymentStatus
	}
	if upd.AdminNotes != nil {
		o.AdminNotes = *upd.AdminNotes
	}
	if upd.ShippedAt != nil {
		o.ShippedAt = upd.ShippedAt
	}
	if upd.DeliveredAt != nil {
		o.DeliveredAt = upd.DeliveredAt
	}
	if upd.CancelledAt != nil {
		o.CancelledAt = upd.CancelledAt
	}
	m.r.s.orders[orderID] = o
	return true, nil
}

type memOrderItems struct{ r *memRepos }

func (m memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	done, err := m.r.enter("OrderItems.CreateBulk")
	defer done()
	if err != nil {
		return err
	}
	for _, it := range items {
		it.ID = m.r.s.id()
		it.OrderID = orderID
		m.r.s.orderItems[orderID] = append(m.r.s.orderItems[orderID], it)
	}
	return nil
}

func (m memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	done, err := m.r.enter("OrderItems.ListByOrderID")
	defer done()
	if err != nil {
		return nil, err
	}
	return append([]model.OrderItem(nil), m.r.s.orderItems[orderID]...), nil
}

// ---------- ledger ----------

type memLedger struct{ r *memRepos }

func (m memLedger) Create(ctx context.Context, t model.Transaction) (model.Transaction, error) {
	done, err := m.r.enter("Ledger.Create")
	defer done()
	if err != nil {
		return model.Transaction{}, err
	}
	t.ID = m.r.s.id()
	m.r.s.ledger = append(m.r.s.ledger, t)
	return t, nil
}

func (m memLedger) ListByUserID(ctx context.Context, q repo.TransactionListQuery) ([]model.Transaction, int64, error) {
	done, err := m.r.enter("Ledger.ListByUserID")
	defer done()
	if err != nil {
		return nil, 0, err
	}
	var list []model.Transaction
	for i := len(m.r.s.ledger) - 1; i >= 0; i-- {
		t := m.r.s.ledger[i]
		if t.UserID != q.UserID {
			continue
		}
		if q.Type != "" && string(t.TransactionType) != q.Type {
			continue
		}
		list = append(list, t)
	}
	return paginate(list, q.Page, q.Limit), int64(len(list)), nil
}

// ---------- coupons ----------

type memCoupons struct{ r *memRepos }

func (m memCoupons) FindByCode(ctx context.Context, code string) (model.Coupon, error) {
	done, err := m.r.enter("Coupons.FindByCode")
	defer done()
	if err != nil {
		return model.Coupon{}, err
	}
	for _, c := range m.r.s.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return model.Coupon{}, repo.ErrNotFound
}

func (m memCoupons) Create(ctx context.Context, c model.Coupon) (model.Coupon, error) {
	done, err := m.r.enter("Coupons.Create")
	defer done()
	if err != nil {
		return model.Coupon{}, err
	}
	for _, existing := range m.r.s.coupons {
		if existing.Code == c.Code {
			return model.Coupon{}, repo.ErrConflict
		}
	}
	c.ID = m.r.s.id()
	m.r.s.coupons[c.ID] = c
	return c, nil
}

func (m memCoupons) List(ctx context.Context) ([]model.Coupon, error) {
	done, err := m.r.enter("Coupons.List")
	defer done()
	if err != nil {
		return nil, err
	}
	var out []model.Coupon
	for _, c := range m.r.s.coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m memCoupons) IncrementUsage(ctx context.Context, couponID int64) (bool, error) {
	done, err := m.r.enter("Coupons.IncrementUsage")
	defer done()
	if err != nil {
		return false, err
	}
	c, ok := m.r.s.coupons[couponID]
	if !ok {
		return false, nil
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return false, nil
	}
	c.UsedCount++
	m.r.s.coupons[couponID] = c
	return true, nil
}

func (m memCoupons) CountActiveRedemptions(ctx context.Context, couponID int64, userID int64) (int64, error) {
	done, err := m.r.enter("Coupons.CountActiveRedemptions")
	defer done()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, red := range m.r.s.redemptions {
		if red.CouponID != couponID || red.UserID != userID {
			continue
		}
		if o, ok := m.r.s.orders[red.OrderID]; ok && o.Status != model.OrderStatusCancelled {
			n++
		}
	}
	return n, nil
}

func (m memCoupons) CreateRedemption(ctx context.Context, red model.CouponRedemption) error {
	done, err := m.r.enter("Coupons.CreateRedemption")
	defer done()
	if err != nil {
		return err
	}
	red.ID = m.r.s.id()
	m.r.s.redemptions = append(m.r.s.redemptions, red)
	return nil
}

// ---------- audit logs ----------

type memAudits struct{ r *memRepos }

func (m memAudits) Create(ctx context.Context, log model.AuditLog) error {
	done, err := m.r.enter("AuditLogs.Create")
	defer done()
	if err != nil {
		return err
	}
	log.ID = m.r.s.id()
	m.r.s.audits = append(m.r.s.audits, log)
	return nil
}

func (m memAudits) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	done, err := m.r.enter("AuditLogs.List")
	defer done()
	if err != nil {
		return nil, err
	}
	var out []model.AuditLog
	for i := len(m.r.s.audits) - 1; i >= 0; i-- {
		l := m.r.s.audits[i]
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// ---------- addresses ----------

type memAddresses struct{ r *memRepos }

func (m memAddresses) Create(ctx context.Context, a model.Address) (model.Address, error) {
	done, err := m.r.enter("Addresses.Create")
	defer done()
	if err != nil {
		return model.Address{}, err
	}
	a.ID = m.r.s.id()
	m.r.s.addresses[a.ID] = a
	return a, nil
}

func (m memAddresses) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	done, err := m.r.enter("Addresses.ListByUserID")
	defer done()
	if err != nil {
		return nil, err
	}
	var out []model.Address
	for _, a := range m.r.s.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m memAddresses) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	done, err := m.r.enter("Addresses.FindByID")
	defer done()
	if err != nil {
		return model.Address{}, err
	}
	a, ok := m.r.s.addresses[addressID]
	if !ok {
		return model.Address{}, repo.ErrNotFound
	}
	return a, nil
}

func (m memAddresses) Delete(ctx context.Context, addressID int64) error {
	done, err := m.r.enter("Addresses.Delete")
	defer done()
	if err != nil {
		return err
	}
	if _, ok := m.r.s.addresses[addressID]; !ok {
		return repo.ErrNotFound
	}
	delete(m.r.s.addresses, addressID)
	return nil
}

func (m memAddresses) SetDefault(ctx context.Context, userID, addressID int64) error {
	done, err := m.r.enter("Addresses.SetDefault")
	defer done()
	if err != nil {
		return err
	}
	target, ok := m.r.s.addresses[addressID]
	if !ok || target.UserID != userID {
		return repo.ErrNotFound
	}
	for id, a := range m.r.s.addresses {
		if a.UserID == userID {
			a.IsDefault = id == addressID
			m.r.s.addresses[id] = a
		}
	}
	return nil
}

// =====================
// clock / publisher / revoked tokens
// =====================

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// 呼ぶたびに1秒進む
type steppingClock struct {
	mu   sync.Mutex
	next time.Time
}

func newSteppingClock(start time.Time) *steppingClock {
	return &steppingClock{next: start}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(time.Second)
	return t
}

// gateClock は最初の呼び出しだけ時刻を取ったあと止める。
// 止めている間に別リクエストを先にコミットさせる。
type gateClock struct {
	*steppingClock
	once    sync.Once
	entered chan struct{}
	open    chan struct{}
}

func newGateClock(start time.Time) *gateClock {
	return &gateClock{
		steppingClock: newSteppingClock(start),
		entered:       make(chan struct{}),
		open:          make(chan struct{}),
	}
}

func (c *gateClock) Now() time.Time {
	t := c.steppingClock.Now()
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.entered)
		select {
		case <-c.open:
		case <-time.After(2 * time.Second):
		}
	}
	return t
}

func (c *gateClock) release() { close(c.open) }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type publishedEvent struct {
	Topic string
	Key   string
	Event OrderEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	evt, _ := event.(OrderEvent)
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Event: evt})
	return nil
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

type memRevoked struct {
	mu   sync.Mutex
	jtis map[string]time.Duration
	err  error
}

func (s *memRevoked) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.jtis == nil {
		s.jtis = map[string]time.Duration{}
	}
	s.jtis[jti] = ttl
	return nil
}

func (s *memRevoked) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.jtis[jti]
	return ok, nil
}

var errBoom = errors.New("boom")
