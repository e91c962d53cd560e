package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/catalog"
)

// ProductModel is the persistence model for the UnifiedProduct domain entity.
// SKUNormalized is a derived column so that cross-feed lookups never depend
// on upstream casing or spacing.
type ProductModel struct {
	BaseModel
	Name     string `gorm:"type:varchar(500);not null"`
	SKU      string `gorm:"type:varchar(100);index"`
	Model    string `gorm:"type:varchar(100)"`
	Brand    string `gorm:"type:varchar(100);index"`
	Category string `gorm:"type:varchar(100);index"`

	CostPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SellingPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	MarginPercentage decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`

	StockTotal      int            `gorm:"not null;default:0"`
	StockByRegion   map[string]int `gorm:"type:jsonb;serializer:json"`
	StockConfidence string         `gorm:"type:varchar(20);not null;default:'confirmed'"`

	Images         []string       `gorm:"type:jsonb;serializer:json"`
	Specifications map[string]any `gorm:"type:jsonb;serializer:json"`

	SupplierID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_supplier_sku,priority:1"`
	SupplierSKU   string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_product_supplier_sku,priority:2"`
	SKUNormalized string    `gorm:"type:varchar(100);index"`

	Active bool `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain UnifiedProduct.
func (m *ProductModel) ToDomain() *catalog.UnifiedProduct {
	return &catalog.UnifiedProduct{
		ID:               m.ID,
		Name:             m.Name,
		SKU:              m.SKU,
		Model:            m.Model,
		Brand:            m.Brand,
		Category:         m.Category,
		CostPrice:        m.CostPrice,
		SellingPrice:     m.SellingPrice,
		MarginPercentage: m.MarginPercentage,
		StockTotal:       m.StockTotal,
		StockByRegion:    m.StockByRegion,
		StockConfidence:  catalog.StockConfidence(m.StockConfidence),
		Images:           m.Images,
		Specifications:   m.Specifications,
		SupplierID:       m.SupplierID,
		SupplierSKU:      m.SupplierSKU,
		Active:           m.Active,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain UnifiedProduct.
func (m *ProductModel) FromDomain(p *catalog.UnifiedProduct) {
	m.ID = p.ID
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
	m.Name = p.Name
	m.SKU = p.SKU
	m.Model = p.Model
	m.Brand = p.Brand
	m.Category = p.Category
	m.CostPrice = p.CostPrice
	m.SellingPrice = p.SellingPrice
	m.MarginPercentage = p.MarginPercentage
	m.StockTotal = p.StockTotal
	m.StockByRegion = p.StockByRegion
	m.StockConfidence = string(p.StockConfidence)
	m.Images = p.Images
	m.Specifications = p.Specifications
	m.SupplierID = p.SupplierID
	m.SupplierSKU = p.NaturalKey()
	m.SKUNormalized = catalog.NormalizeSKU(p.SKU)
	m.Active = p.Active
}
