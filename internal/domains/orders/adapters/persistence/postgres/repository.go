package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
	"github.com/fraugho/caterpillar-clay/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists orders in PostgreSQL using GORM. Status changes and
// payment-reference claims are single conditional UPDATEs; the row count
// tells the caller whether it won the race.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// orderRecord maps the order aggregate to a relational table.
type orderRecord struct {
	ID                string    `gorm:"primaryKey;column:id;size:36"`
	CustomerEmail     string    `gorm:"column:customer_email"`
	CustomerName      string    `gorm:"column:customer_name"`
	Status            string    `gorm:"column:status;type:varchar(32);index"`
	TotalCents        int64     `gorm:"column:total_cents"`
	PaymentReference  *string   `gorm:"column:payment_reference;uniqueIndex"`
	ShipmentReference *string   `gorm:"column:shipment_reference;index"`
	TrackingNumber    string    `gorm:"column:tracking_number"`
	CreatedAt         time.Time `gorm:"column:created_at;index"`
	UpdatedAt         time.Time `gorm:"column:updated_at;index"`
}

func (orderRecord) TableName() string { return "orders" }

// orderItemRecord maps one order line.
type orderItemRecord struct {
	ID             string `gorm:"primaryKey;column:id;size:36"`
	OrderID        string `gorm:"column:order_id;index"`
	ProductID      string `gorm:"column:product_id;index"`
	Quantity       int32  `gorm:"column:quantity"`
	UnitPriceCents int64  `gorm:"column:unit_price_cents"`
	Position       int    `gorm:"column:position"`
}

func (orderItemRecord) TableName() string { return "order_items" }

// Create inserts the order and its immutable item lines.
func (r *Repository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("order is nil")
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	record := toRecord(order)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	items := make([]orderItemRecord, 0, len(order.Items))
	for i, item := range order.Items {
		items = append(items, orderItemRecord{
			ID:             uuid.NewString(),
			OrderID:        record.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			Position:       i,
		})
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, record.ID)
}

// GetByID fetches an order and its lines by identifier.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getBy(ctx, "id = ?", id)
}

// GetByPaymentReference resolves the order linked to a gateway charge.
func (r *Repository) GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	if reference == "" {
		return nil, ports.ErrNotFound
	}
	return r.getBy(ctx, "payment_reference = ?", reference)
}

// GetByShipmentReference resolves the order linked to a carrier tracker.
func (r *Repository) GetByShipmentReference(ctx context.Context, reference string) (*domain.Order, error) {
	if reference == "" {
		return nil, ports.ErrNotFound
	}
	return r.getBy(ctx, "shipment_reference = ?", reference)
}

// CompareAndSetStatus performs the optimistic "update where status = from"
// write. Zero affected rows means another caller already moved the order.
func (r *Repository) CompareAndSetStatus(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	if err := r.ensureDB(); err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).Model(&orderRecord{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{
			"status":     string(to),
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimPaymentReference assigns the reference first-write-wins.
func (r *Repository) ClaimPaymentReference(ctx context.Context, id, reference string) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&orderRecord{}).
		Where("id = ? AND (payment_reference IS NULL OR payment_reference = ?)", id, reference).
		Updates(map[string]any{
			"payment_reference": reference,
			"updated_at":        gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}
	var record orderRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ErrNotFound
		}
		return err
	}
	if record.PaymentReference != nil && *record.PaymentReference != reference {
		return ports.ErrPaymentReferenceConflict
	}
	return nil
}

// SetTracking stores the carrier correlation keys for an order.
func (r *Repository) SetTracking(ctx context.Context, id, trackingNumber, shipmentReference string) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&orderRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"tracking_number":    trackingNumber,
			"shipment_reference": nullable(shipmentReference),
			"updated_at":         gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// CountAll returns the number of orders.
func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	if err := r.ensureDB(); err != nil {
		return 0, err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&orderRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// RecognizedRevenueCents sums totals of orders past pending, excluding cancellations.
func (r *Repository) RecognizedRevenueCents(ctx context.Context) (int64, error) {
	if err := r.ensureDB(); err != nil {
		return 0, err
	}
	var total *int64
	err := r.db.WithContext(ctx).Model(&orderRecord{}).
		Select("SUM(total_cents)").
		Where("status NOT IN ?", []string{string(domain.StatusPending), string(domain.StatusCancelled)}).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *Repository) getBy(ctx context.Context, query string, arg any) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record orderRecord
	if err := r.db.WithContext(ctx).First(&record, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	var items []orderItemRecord
	if err := r.db.WithContext(ctx).
		Order("position ASC").
		Find(&items, "order_id = ?", record.ID).Error; err != nil {
		return nil, err
	}
	return record.toDomain(items), nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres order repository not configured")
	}
	return nil
}

func toRecord(order *domain.Order) orderRecord {
	return orderRecord{
		ID:                order.ID,
		CustomerEmail:     order.CustomerEmail,
		CustomerName:      order.CustomerName,
		Status:            string(order.Status),
		TotalCents:        order.TotalCents,
		PaymentReference:  nullable(order.PaymentReference),
		ShipmentReference: nullable(order.ShipmentReference),
		TrackingNumber:    order.TrackingNumber,
	}
}

func (r orderRecord) toDomain(items []orderItemRecord) *domain.Order {
	order := &domain.Order{
		ID:             r.ID,
		CustomerEmail:  r.CustomerEmail,
		CustomerName:   r.CustomerName,
		Status:         domain.Status(r.Status),
		TotalCents:     r.TotalCents,
		TrackingNumber: r.TrackingNumber,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.PaymentReference != nil {
		order.PaymentReference = *r.PaymentReference
	}
	if r.ShipmentReference != nil {
		order.ShipmentReference = *r.ShipmentReference
	}
	order.Items = make([]domain.Item, 0, len(items))
	for _, item := range items {
		order.Items = append(order.Items, domain.Item{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return order
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
