package service

import (
	"context"
	"errors"
	"time"

	"go-stock-ledger/internal/metrics"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	reasonOrderCreated   = "Order created"
	reasonOrderCancelled = "Order cancelled"
)

// OrderService turns order lifecycle events into ledger postings.
type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest, actor Actor, idempotencyKey string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, req *UpdateOrderStatusRequest, actor Actor) (*model.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID, actor Actor) (*model.Order, error)
	ListOrders(ctx context.Context, actor Actor) ([]model.Order, error)
}

type OrderLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"uuid_required"`
	Quantity  int       `json:"quantity"`
}

type CreateOrderRequest struct {
	// CustomerID is required for staff-entered orders and ignored for customers.
	CustomerID      *uuid.UUID         `json:"customer_id"`
	Items           []OrderLineRequest `json:"items" validate:"dive"`
	ShippingAddress string             `json:"shipping_address" validate:"max=1000"`
	ShippingPhone   string             `json:"shipping_phone" validate:"max=20"`
	PaymentMethod   string             `json:"payment_method" validate:"max=20"`
	Notes           string             `json:"notes"`
}

type UpdateOrderStatusRequest struct {
	Status        model.OrderStatus    `json:"status"`
	PaymentStatus *model.PaymentStatus `json:"payment_status"`
}

type orderService struct {
	productRepo     repository.ProductRepository
	orderRepo       repository.OrderRepository
	transactionRepo repository.TransactionRepository
	ledger          StockLedger
	idempotency     *repository.IdempotencyStore
	db              *gorm.DB
	hub             Broadcaster
	log             *zap.Logger
	now             func() time.Time
}

func NewOrderService(pRepo repository.ProductRepository, oRepo repository.OrderRepository, tRepo repository.TransactionRepository, ledger StockLedger, idem *repository.IdempotencyStore, db *gorm.DB, hub Broadcaster, log *zap.Logger) OrderService {
	return &orderService{
		productRepo:     pRepo,
		orderRepo:       oRepo,
		transactionRepo: tRepo,
		ledger:          ledger,
		idempotency:     idem,
		db:              db,
		hub:             hub,
		log:             log.Named("orders"),
		now:             time.Now,
	}
}

type orderLine struct {
	productID uuid.UUID
	quantity  int
}

// aggregateLines sums quantities per product, keeping first-seen order.
func aggregateLines(items []OrderLineRequest) ([]orderLine, error) {
	if len(items) == 0 {
		return nil, validationError("items", "order must contain at least one item")
	}
	index := make(map[uuid.UUID]int, len(items))
	lines := make([]orderLine, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, invalidQuantity("quantity", item.Quantity)
		}
		if i, ok := index[item.ProductID]; ok {
			lines[i].quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, orderLine{productID: item.ProductID, quantity: item.Quantity})
	}
	return lines, nil
}

// lineSubtotal is price x quantity x (1 + taxRate/100), rounded to cents.
func lineSubtotal(price, taxRate decimal.Decimal, quantity int) decimal.Decimal {
	multiplier := decimal.NewFromInt(1).Add(taxRate.Div(decimal.NewFromInt(100)))
	return price.Mul(decimal.NewFromInt(int64(quantity))).Mul(multiplier).Round(2)
}

func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest, actor Actor, idempotencyKey string) (*model.Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	lines, err := aggregateLines(req.Items)
	if err != nil {
		return nil, err
	}

	customerID := actor.UserID()
	if !actor.IsCustomer() {
		if req.CustomerID == nil || *req.CustomerID == uuid.Nil {
			return nil, validationError("customer_id", "customer_id is required for staff-entered orders")
		}
		customerID = *req.CustomerID
	}

	scope := "order:" + actor.ID
	if err := s.idempotency.Reserve(ctx, scope, idempotencyKey); err != nil {
		if errors.Is(err, repository.ErrIdempotencyConflict) {
			return nil, &Error{Kind: ErrAlreadyProcessed, Entity: "order", Field: "Idempotency-Key", Message: err.Error()}
		}
		return nil, err
	}

	var (
		order   *model.Order
		posted  []*model.InventoryTransaction
		reserve = actor.IsCustomer()
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]uuid.UUID, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.productID)
		}
		products, err := s.productRepo.LockByIDs(tx, ids)
		if err != nil {
			return err
		}

		total := decimal.Zero
		items := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			p, ok := products[l.productID]
			if !ok {
				return notFound("product", l.productID)
			}
			if !p.IsActive {
				return productInactive(p)
			}
			if l.quantity > p.Quantity {
				return insufficientStock(p, l.quantity)
			}
			subtotal := lineSubtotal(p.Price, p.TaxRate, l.quantity)
			total = total.Add(subtotal)
			item := model.OrderItem{
				ProductID: p.ID,
				Quantity:  l.quantity,
				Price:     p.Price,
				Subtotal:  subtotal,
			}
			item.CreatedBy = actor.ID
			items = append(items, item)
		}

		number, err := repository.NextDocumentNumber(tx, "orders", "order_number", repository.OrderNumberPrefix, s.now())
		if err != nil {
			return err
		}

		o := &model.Order{
			OrderNumber:     number,
			CustomerID:      customerID,
			TotalAmount:     total,
			Status:          model.OrderPending,
			PaymentStatus:   model.PaymentPending,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: req.ShippingAddress,
			ShippingPhone:   req.ShippingPhone,
			Notes:           req.Notes,
			StockReserved:   reserve,
			Items:           items,
		}
		o.CreatedBy = actor.ID
		o.UpdatedBy = actor.ID
		if err := s.orderRepo.Create(tx, o); err != nil {
			return numberTaken("order", "order_number", err)
		}

		if reserve {
			for _, l := range lines {
				txn, err := s.ledger.Post(tx, ChangeRequest{
					ProductID: l.productID,
					Type:      model.TxOut,
					Quantity:  l.quantity,
					Reason:    reasonOrderCreated,
					Reference: o.OrderNumber,
				}, actor)
				if err != nil {
					return err
				}
				posted = append(posted, txn)
			}
		}
		order = o
		return nil
	})
	if err != nil {
		if relErr := s.idempotency.Release(ctx, scope, idempotencyKey); relErr != nil {
			s.log.Error("release idempotency key", zap.String("key", idempotencyKey), zap.Error(relErr))
		}
		failed(s.log, "create order", actor, err)
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	s.log.Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.String("customer_id", order.CustomerID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.Bool("stock_reserved", order.StockReserved),
		zap.String("actor", actor.ID))
	committed(s.hub, s.log, "order_created", actor, posted...)
	return order, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, req *UpdateOrderStatusRequest, actor Actor) (*model.Order, error) {
	if req.Status == "" && req.PaymentStatus == nil {
		return nil, validationError("status", "status or payment_status is required")
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, invalidStatus("status", req.Status)
	}
	if req.PaymentStatus != nil && !req.PaymentStatus.Valid() {
		return nil, invalidStatus("payment_status", *req.PaymentStatus)
	}

	var (
		order    *model.Order
		released []*model.InventoryTransaction
		from     model.OrderStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.orderRepo.LockByID(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("order", id)
		}
		if err != nil {
			return err
		}
		from = o.Status

		if err := s.authorizeStatusChange(o, req, actor); err != nil {
			return err
		}

		if req.PaymentStatus != nil {
			o.PaymentStatus = *req.PaymentStatus
		}
		if req.Status != "" && req.Status != o.Status {
			if !o.Status.CanTransitionTo(req.Status) {
				return forbidden("order", id, "order %s cannot move from %s to %s", o.OrderNumber, o.Status, req.Status)
			}
			o.Status = req.Status
			if o.Status == model.OrderCancelled {
				released, err = s.releaseStock(tx, o, actor)
				if err != nil {
					return err
				}
			}
		}
		if actor.IsStaff() {
			o.ProcessedBy = actor.ID
		}
		o.UpdatedBy = actor.ID

		if err := s.orderRepo.UpdateStatus(tx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		failed(s.log, "update order status", actor, err)
		return nil, err
	}

	if order.Status != from {
		s.log.Info("order status changed",
			zap.String("order_number", order.OrderNumber),
			zap.String("from", string(from)),
			zap.String("to", string(order.Status)),
			zap.String("actor", actor.ID))
	}
	if order.Status == model.OrderCancelled && from != model.OrderCancelled {
		metrics.OrdersCancelled.Inc()
		committed(s.hub, s.log, "order_cancelled", actor, released...)
	}
	return order, nil
}

// authorizeStatusChange limits customers to cancelling their own pending orders.
func (s *orderService) authorizeStatusChange(o *model.Order, req *UpdateOrderStatusRequest, actor Actor) error {
	if actor.IsStaff() {
		return nil
	}
	if !actor.IsCustomer() || o.CustomerID != actor.UserID() {
		return forbidden("order", o.ID, "order %s does not belong to the caller", o.OrderNumber)
	}
	if req.PaymentStatus != nil {
		return forbidden("order", o.ID, "customers may not change payment status")
	}
	if o.Status != model.OrderPending || req.Status != model.OrderCancelled {
		return forbidden("order", o.ID, "customers may only cancel pending orders")
	}
	return nil
}

// releaseStock posts the compensating "in" entries for a cancelled order.
// Reserved orders give back every item; others give back whatever was posted
// out against the order number through the regular ledger path.
func (s *orderService) releaseStock(tx *gorm.DB, o *model.Order, actor Actor) ([]*model.InventoryTransaction, error) {
	var lines []orderLine
	if o.StockReserved {
		for _, item := range o.Items {
			lines = append(lines, orderLine{productID: item.ProductID, quantity: item.Quantity})
		}
	} else {
		net, err := s.transactionRepo.NetOutByReference(tx, o.OrderNumber)
		if err != nil {
			return nil, err
		}
		for _, id := range repository.SortedIDs(keys(net)) {
			if net[id] > 0 {
				lines = append(lines, orderLine{productID: id, quantity: net[id]})
			}
		}
	}

	released := make([]*model.InventoryTransaction, 0, len(lines))
	for _, l := range lines {
		txn, err := s.ledger.Post(tx, ChangeRequest{
			ProductID: l.productID,
			Type:      model.TxIn,
			Quantity:  l.quantity,
			Reason:    reasonOrderCancelled,
			Reference: o.OrderNumber,
		}, actor)
		if err != nil {
			return nil, err
		}
		released = append(released, txn)
	}
	return released, nil
}

func keys(m map[uuid.UUID]int) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID, actor Actor) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("order", id)
	}
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && order.CustomerID != actor.UserID() {
		return nil, forbidden("order", id, "order %s does not belong to the caller", order.OrderNumber)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor Actor) ([]model.Order, error) {
	if actor.IsStaff() {
		return s.orderRepo.FindAll(ctx, uuid.Nil)
	}
	return s.orderRepo.FindAll(ctx, actor.UserID())
}
