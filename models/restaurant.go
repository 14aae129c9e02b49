package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Restaurant struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	OwnerID        uint       `json:"owner_id" gorm:"not null"`
	Owner          User       `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Name           string     `json:"name" gorm:"not null"`
	Cuisine        string     `json:"cuisine"`
	Address        Address    `json:"address" gorm:"embedded;embeddedPrefix:address_"`
	Description    string     `json:"description"`
	IsOpen         bool       `json:"is_open" gorm:"default:true"`
	AvgPrepMinutes int        `json:"avg_prep_minutes" gorm:"default:20"` // feeds delivery ETA
	Rating         float64    `json:"rating" gorm:"default:0"`
	MenuItems      []MenuItem `json:"menu_items,omitempty" gorm:"foreignKey:RestaurantID"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type MenuItem struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	RestaurantID uint            `json:"restaurant_id" gorm:"not null;index"`
	Name         string          `json:"name" gorm:"not null"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price" gorm:"not null"`
	Category     string          `json:"category"`
	IsAvailable  bool            `json:"is_available" gorm:"default:true"`
	IsVeg        bool            `json:"is_veg" gorm:"default:false"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
