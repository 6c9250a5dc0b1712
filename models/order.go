package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
)

func (s OrderStatus) Valid() bool {
	return s == OrderPending || s == OrderCompleted
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          string          `json:"user_id"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	DeliveryName    string          `json:"delivery_name"`
	DeliveryPhone   string          `json:"delivery_phone"`
	DeliveryAddress string          `json:"delivery_address"`
	DeliveryState   string          `json:"delivery_state"`
	PaymentRef      string          `json:"payment_ref"`
	PaymentMethod   string          `json:"payment_method"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []OrderItem     `json:"items"`
}

type OrderItem struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"order_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	ProductName  string          `json:"product_name,omitempty"`
	ProductImage string          `json:"product_image,omitempty"`
}

type DeliveryDetails struct {
	Name          string `json:"name" validate:"required,max=200"`
	Phone         string `json:"phone" validate:"required,max=32"`
	Address       string `json:"address" validate:"required,max=500"`
	State         string `json:"state" validate:"required,max=100"`
	PaymentRef    string `json:"payment_ref,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

type StatusRequest struct {
	Status OrderStatus `json:"status" validate:"required"`
}
