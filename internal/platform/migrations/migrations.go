package migrations

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Run applies the schema for the bounded contexts. Intended to replace adapter-level automigrate.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&productRecord{},
		&orderRecord{},
		&orderItemRecord{},
	)
}

// Product schema mirrors the catalog Postgres adapter.
type productRecord struct {
	ID            string         `gorm:"primaryKey;column:id;size:36"`
	Name          string         `gorm:"column:name"`
	Description   string         `gorm:"column:description"`
	PriceCents    int64          `gorm:"column:price_cents"`
	ImagePaths    pq.StringArray `gorm:"column:image_paths;type:text[]"`
	StockQuantity int32          `gorm:"column:stock_quantity"`
	Active        bool           `gorm:"column:is_active;index"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at"`
}

func (productRecord) TableName() string { return "products" }

// Order schema mirrors the orders Postgres adapter. The unique index on
// payment_reference backs the first-write-wins claim.
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

// Order line schema mirrors the orders Postgres adapter.
type orderItemRecord struct {
	ID             string `gorm:"primaryKey;column:id;size:36"`
	OrderID        string `gorm:"column:order_id;index"`
	ProductID      string `gorm:"column:product_id;index"`
	Quantity       int32  `gorm:"column:quantity"`
	UnitPriceCents int64  `gorm:"column:unit_price_cents"`
	Position       int    `gorm:"column:position"`
}

func (orderItemRecord) TableName() string { return "order_items" }
