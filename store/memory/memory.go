// Package memory is an in-process implementation of the store boundary. It
// backs the test suites and the `serve --memory` development mode.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/models"
	"storefront/store"
)

type DB struct {
	mu *sync.RWMutex

	products  map[uuid.UUID]models.Product
	images    map[uuid.UUID][]models.ProductImage
	sessions  map[uuid.UUID]models.ShoppingSession
	cartItems map[uuid.UUID]models.CartItem
	orders    map[uuid.UUID]models.Order
	users     map[string]userRow
	tokens    map[string]models.RefreshToken

	feed *store.Dispatcher
	now  func() time.Time
}

type userRow struct {
	user models.User
	hash string
}

func New() *DB {
	return &DB{
		mu:        &sync.RWMutex{},
		products:  make(map[uuid.UUID]models.Product),
		images:    make(map[uuid.UUID][]models.ProductImage),
		sessions:  make(map[uuid.UUID]models.ShoppingSession),
		cartItems: make(map[uuid.UUID]models.CartItem),
		orders:    make(map[uuid.UUID]models.Order),
		users:     make(map[string]userRow),
		tokens:    make(map[string]models.RefreshToken),
		feed:      store.NewDispatcher(),
		now:       time.Now,
	}
}

// Backend exposes the DB through the store interfaces.
func (db *DB) Backend() *store.Backend {
	return &store.Backend{
		Products:  &productRepo{db},
		Sessions:  &sessionRepo{db},
		CartItems: &cartItemRepo{db},
		Orders:    &orderRepo{db},
		Users:     &userRepo{db},
		Tokens:    &tokenRepo{db},
		Feed:      db.feed,
	}
}

// Sessions returns every shopping session, including closed ones.
func (db *DB) Sessions() []models.ShoppingSession {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.ShoppingSession, 0, len(db.sessions))
	for _, s := range db.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CartRows returns the raw cart rows of a session.
func (db *DB) CartRows(sessionID uuid.UUID) []models.CartItem {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []models.CartItem
	for _, ci := range db.cartItems {
		if ci.SessionID == sessionID {
			out = append(out, ci)
		}
	}
	return out
}

func (db *DB) publish(table string, typ store.EventType, id string) {
	db.feed.Publish(store.ChangeEvent{Table: table, Type: typ, RowID: id})
}

type productRepo struct{ db *DB }

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return store.ErrInvalidInput
	}
	r.db.mu.Lock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.db.now()
	}
	if _, ok := r.db.products[p.ID]; ok {
		r.db.mu.Unlock()
		return store.ErrDuplicate
	}
	row := *p
	row.Images = nil
	r.db.products[p.ID] = row
	r.db.mu.Unlock()

	r.db.publish(store.TableProducts, store.EventInsert, p.ID.String())
	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Images = r.db.imageURLs(id)
	return &p, nil
}

func (r *productRepo) GetAll(ctx context.Context) ([]models.Product, error) {
	return r.list(func(models.Product) bool { return true }), nil
}

func (r *productRepo) GetByCategory(ctx context.Context, category string) ([]models.Product, error) {
	if category == "" {
		return nil, store.ErrInvalidInput
	}
	return r.list(func(p models.Product) bool { return strings.EqualFold(p.Category, category) }), nil
}

func (r *productRepo) list(keep func(models.Product) bool) []models.Product {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []models.Product{}
	for id, p := range r.db.products {
		if keep(p) {
			p.Images = r.db.imageURLs(id)
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	if _, ok := r.db.products[id]; !ok {
		r.db.mu.Unlock()
		return store.ErrNotFound
	}
	delete(r.db.products, id)
	delete(r.db.images, id)
	r.db.mu.Unlock()

	r.db.publish(store.TableProducts, store.EventDelete, id.String())
	return nil
}

func (r *productRepo) AddImages(ctx context.Context, productID uuid.UUID, urls []string) ([]models.ProductImage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.products[productID]; !ok {
		return nil, store.ErrNotFound
	}
	added := make([]models.ProductImage, 0, len(urls))
	for _, u := range urls {
		img := models.ProductImage{ID: uuid.New(), ProductID: productID, ImageURL: u}
		r.db.images[productID] = append(r.db.images[productID], img)
		added = append(added, img)
	}
	return added, nil
}

func (r *productRepo) Images(ctx context.Context, productID uuid.UUID) ([]models.ProductImage, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return append([]models.ProductImage(nil), r.db.images[productID]...), nil
}

func (db *DB) imageURLs(productID uuid.UUID) []string {
	var urls []string
	for _, img := range db.images[productID] {
		urls = append(urls, img.ImageURL)
	}
	return urls
}

type sessionRepo struct{ db *DB }

func (r *sessionRepo) FindActive(ctx context.Context, userID string) (*models.ShoppingSession, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var found *models.ShoppingSession
	for _, s := range r.db.sessions {
		if s.UserID != userID || s.Status != models.SessionActive {
			continue
		}
		if found == nil || s.CreatedAt.Before(found.CreatedAt) {
			s := s
			found = &s
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (r *sessionRepo) Create(ctx context.Context, s *models.ShoppingSession) error {
	if s == nil || s.UserID == "" {
		return store.ErrInvalidInput
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = models.SessionActive
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.db.now()
	}
	r.db.sessions[s.ID] = *s
	return nil
}

func (r *sessionRepo) Close(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.Status = models.SessionClosed
	r.db.sessions[id] = s
	return nil
}

type cartItemRepo struct{ db *DB }

func (r *cartItemRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.CartItem, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []models.CartItem
	for _, ci := range r.db.cartItems {
		if ci.SessionID != sessionID {
			continue
		}
		if p, ok := r.db.products[ci.ProductID]; ok {
			p.Images = r.db.imageURLs(p.ID)
			ci.Product = &p
		} else {
			ci.Product = nil
		}
		out = append(out, ci)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *cartItemRepo) Find(ctx context.Context, sessionID, productID uuid.UUID) (*models.CartItem, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, ci := range r.db.cartItems {
		if ci.SessionID == sessionID && ci.ProductID == productID {
			ci.Product = nil
			return &ci, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *cartItemRepo) Create(ctx context.Context, item *models.CartItem) error {
	if item == nil || item.Quantity <= 0 {
		return store.ErrInvalidInput
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.sessions[item.SessionID]; !ok {
		return store.ErrNotFound
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	row := *item
	row.Product = nil
	r.db.cartItems[item.ID] = row
	return nil
}

func (r *cartItemRepo) Update(ctx context.Context, item *models.CartItem) error {
	if item == nil || item.Quantity <= 0 {
		return store.ErrInvalidInput
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.cartItems[item.ID]; !ok {
		return store.ErrNotFound
	}
	row := *item
	row.Product = nil
	r.db.cartItems[item.ID] = row
	return nil
}

func (r *cartItemRepo) SetQuantity(ctx context.Context, sessionID, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return store.ErrInvalidInput
	}
	return r.mutate(sessionID, productID, func(ci *models.CartItem) { ci.Quantity = quantity })
}

func (r *cartItemRepo) SetSavedForLater(ctx context.Context, sessionID, productID uuid.UUID, saved bool) error {
	return r.mutate(sessionID, productID, func(ci *models.CartItem) { ci.IsSavedForLater = saved })
}

// mutate applies fn to every row matching (session, product). Matching nothing
// is not an error, the same as an UPDATE that touches zero rows.
func (r *cartItemRepo) mutate(sessionID, productID uuid.UUID, fn func(*models.CartItem)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for id, ci := range r.db.cartItems {
		if ci.SessionID == sessionID && ci.ProductID == productID {
			fn(&ci)
			r.db.cartItems[id] = ci
		}
	}
	return nil
}

func (r *cartItemRepo) Delete(ctx context.Context, sessionID, productID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for id, ci := range r.db.cartItems {
		if ci.SessionID == sessionID && ci.ProductID == productID {
			delete(r.db.cartItems, id)
		}
	}
	return nil
}

func (r *cartItemRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for id, ci := range r.db.cartItems {
		if ci.SessionID == sessionID {
			delete(r.db.cartItems, id)
		}
	}
	return nil
}

type orderRepo struct{ db *DB }

func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	if o == nil || o.UserID == "" {
		return store.ErrInvalidInput
	}
	r.db.mu.Lock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = models.OrderPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = r.db.now()
	}
	row := *o
	row.Items = nil
	r.db.orders[o.ID] = row
	r.db.mu.Unlock()

	r.db.publish(store.TableOrders, store.EventInsert, o.ID.String())
	return nil
}

func (r *orderRepo) AddItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	o, ok := r.db.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.OrderID = orderID
		o.Items = append(o.Items, it)
	}
	r.db.orders[orderID] = o
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	o, ok := r.db.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o = r.db.withProducts(o)
	return &o, nil
}

func (r *orderRepo) GetAll(ctx context.Context) ([]models.Order, error) {
	return r.list(func(models.Order) bool { return true }), nil
}

func (r *orderRepo) GetByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return r.list(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (r *orderRepo) list(keep func(models.Order) bool) []models.Order {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []models.Order{}
	for _, o := range r.db.orders {
		if keep(o) {
			out = append(out, r.db.withProducts(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	if !status.Valid() {
		return store.ErrInvalidInput
	}
	r.db.mu.Lock()
	o, ok := r.db.orders[id]
	if !ok {
		r.db.mu.Unlock()
		return store.ErrNotFound
	}
	o.Status = status
	r.db.orders[id] = o
	r.db.mu.Unlock()

	r.db.publish(store.TableOrders, store.EventUpdate, id.String())
	return nil
}

func (db *DB) withProducts(o models.Order) models.Order {
	items := make([]models.OrderItem, len(o.Items))
	for i, it := range o.Items {
		if p, ok := db.products[it.ProductID]; ok {
			it.ProductName = p.Name
			it.ProductImage = p.Image
		}
		items[i] = it
	}
	o.Items = items
	return o
}

type userRepo struct{ db *DB }

func (r *userRepo) Create(ctx context.Context, u *models.User, hash string) error {
	if u == nil || u.Email == "" {
		return store.ErrInvalidInput
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	email := strings.ToLower(u.Email)
	for _, row := range r.db.users {
		if strings.ToLower(row.user.Email) == email {
			return store.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.db.now()
	}
	r.db.users[u.ID] = userRow{user: *u, hash: hash}
	return nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, row := range r.db.users {
		if strings.EqualFold(row.user.Email, email) {
			u := row.user
			return &u, row.hash, nil
		}
	}
	return nil, "", store.ErrNotFound
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	row, ok := r.db.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := row.user
	return &u, nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, id string, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	row, ok := r.db.users[id]
	if !ok {
		return store.ErrNotFound
	}
	row.hash = hash
	r.db.users[id] = row
	return nil
}

type tokenRepo struct{ db *DB }

func (r *tokenRepo) Save(ctx context.Context, t *models.RefreshToken) error {
	if t == nil || t.Token == "" {
		return store.ErrInvalidInput
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.tokens[t.Token] = *t
	return nil
}

func (r *tokenRepo) Get(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, ok := r.db.tokens[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (r *tokenRepo) Revoke(ctx context.Context, token string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.tokens[token]
	if !ok {
		return store.ErrNotFound
	}
	t.RevokedAt = &at
	r.db.tokens[token] = t
	return nil
}
