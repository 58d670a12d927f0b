package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User roles. Employees are regular users flagged with RoleEmployee; the
// commission engine enumerates them by role.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
	RoleEmployee = "employee"
)

// Order statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Order types.
const (
	OrderTypeOnline = "online"
	OrderTypePOS    = "pos"
)

type User struct {
	ID        uint    `gorm:"primaryKey"`
	Name      string  `gorm:"size:100;not null"`
	Email     string  `gorm:"size:100;uniqueIndex;not null"`
	Password  string  `gorm:"size:255;not null"`
	Role      string  `gorm:"size:20;not null;default:customer"`
	Phone     *string `gorm:"size:20"`
	Address   *string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Address struct {
	ID          uint    `gorm:"primaryKey"`
	UserID      uint    `gorm:"index;not null"`
	Label       string  `gorm:"size:50;not null"`
	Name        string  `gorm:"size:100;not null"`
	AddressLine string  `gorm:"type:text;not null"`
	City        string  `gorm:"size:50;not null"`
	PostalCode  *string `gorm:"size:10"`
	Phone       *string `gorm:"size:20"`
	IsDefault   bool    `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Product struct {
	ID                uint            `gorm:"primaryKey"`
	Name              string          `gorm:"size:200;not null"`
	Price             decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Stock             int             `gorm:"not null;default:0"`
	LowStockThreshold int             `gorm:"not null;default:5"`
	Image             *string         `gorm:"size:255"`
	Description       *string         `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Order is created in a single step; its items are immutable afterwards.
// UserID is nullable for walk-in POS sales, EmployeeID is set on POS orders
// only.
type Order struct {
	ID         uint            `gorm:"primaryKey"`
	UserID     *uint           `gorm:"index"`
	Status     string          `gorm:"size:20;not null;default:pending;index"`
	OrderType  string          `gorm:"size:10;not null;default:online"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	EmployeeID *uint           `gorm:"index"`
	AddressID  *uint
	Notes      *string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem snapshots the unit price at order time; later product price
// changes do not affect it.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   uint            `gorm:"index;not null"`
	ProductID uint            `gorm:"not null"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

// CommissionRate is a sales bracket: [MinSales, MaxSales] inclusive, with a
// null MaxSales meaning unbounded. Rows are soft-deleted via IsActive so
// historical EmployeeCommission references stay valid.
type CommissionRate struct {
	ID             uint                `gorm:"primaryKey"`
	Name           string              `gorm:"size:100;not null"`
	MinSales       decimal.Decimal     `gorm:"type:decimal(10,2);not null;default:0"`
	MaxSales       decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	CommissionRate decimal.Decimal     `gorm:"type:decimal(5,4);not null"`
	IsActive       bool                `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EmployeeCommission holds one row per (employee, year, month); the
// calculation upserts against the unique index. CommissionRateID is nil when
// no bracket qualified.
type EmployeeCommission struct {
	ID               uint            `gorm:"primaryKey"`
	EmployeeID       uint            `gorm:"not null;uniqueIndex:idx_employee_period"`
	Year             int             `gorm:"not null;uniqueIndex:idx_employee_period"`
	Month            int             `gorm:"not null;uniqueIndex:idx_employee_period"`
	TotalSales       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	CommissionRate   decimal.Decimal `gorm:"type:decimal(5,4);not null"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	CommissionRateID *uint
	CreatedAt        time.Time
	UpdatedAt        time.Time

	RateTier *CommissionRate `gorm:"foreignKey:CommissionRateID"`
}
