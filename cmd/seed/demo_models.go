package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Demo business tables. Their names match the default schema keywords so the assistant can see them.

type Product struct {
	Id        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string          `gorm:"type:varchar(255);not null"`
	Sku       string          `gorm:"type:varchar(32);uniqueIndex"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Category  string          `gorm:"type:varchar(64);index"`
	Stock     int             `gorm:"not null;default:0"`
	CreatedAt time.Time
}

type Customer struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex"`
	FirstName string    `gorm:"type:varchar(100)"`
	LastName  string    `gorm:"type:varchar(100)"`
	City      string    `gorm:"type:varchar(100)"`
	Country   string    `gorm:"type:varchar(64);index"`
	CreatedAt time.Time
}

type Order struct {
	Id          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CustomerId  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status      string          `gorm:"type:varchar(32);not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Region      string          `gorm:"type:varchar(64)"`
	CreatedAt   time.Time       `gorm:"index"`
	Items       []OrderItem     `gorm:"foreignKey:OrderId;constraint:OnDelete:CASCADE"`
}

type OrderItem struct {
	Id        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderId   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductId uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

type MarketingCampaign struct {
	Id          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string          `gorm:"type:varchar(255);not null"`
	Type        string          `gorm:"type:varchar(32)"`
	Platform    string          `gorm:"type:varchar(32)"`
	Budget      decimal.Decimal `gorm:"type:decimal(12,2)"`
	SpentAmount decimal.Decimal `gorm:"type:decimal(12,2)"`
	Impressions int64
	Clicks      int64
	Conversions int64
	StartDate   time.Time `gorm:"type:date"`
	EndDate     time.Time `gorm:"type:date"`
}
