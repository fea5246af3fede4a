package domain

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
)

type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusPrepared  DeliveryStatus = "prepared"
	StatusInTransit DeliveryStatus = "in_transit"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
	StatusReturned  DeliveryStatus = "returned"
)

func ParseStatus(s string) (DeliveryStatus, error) {
	switch st := DeliveryStatus(s); st {
	case StatusPending, StatusPrepared, StatusInTransit, StatusDelivered, StatusFailed, StatusReturned:
		return st, nil
	}
	return "", apperr.Newf(apperr.Validation, "unknown delivery status %q", s)
}

// clockLayout is the wall clock format of DepartureTime and ArrivalTime.
const clockLayout = "15:04"

type Address struct {
	Street       string `json:"street"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code,omitempty"`
	District     string `json:"district,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	Phone        string `json:"phone"`
}

func (a Address) Validate() error {
	switch {
	case strings.TrimSpace(a.Street) == "":
		return apperr.New(apperr.Validation, "delivery street is required")
	case strings.TrimSpace(a.City) == "":
		return apperr.New(apperr.Validation, "delivery city is required")
	case strings.TrimSpace(a.Phone) == "":
		return apperr.New(apperr.Validation, "delivery phone is required")
	}
	return nil
}

type Courier struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Vehicle string `json:"vehicle,omitempty"`
}

// StatusChange is one entry of the append-only status history.
type StatusChange struct {
	Status    DeliveryStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Comment   string         `json:"comment,omitempty"`
}

type Delivery struct {
	ID                 string          `json:"id"`
	OrderID            string          `json:"order_id"`
	CustomerID         string          `json:"customer_id"`
	Address            Address         `json:"delivery_address"`
	ZoneRef            string          `json:"delivery_zone_ref"`
	Status             DeliveryStatus  `json:"status"`
	Courier            Courier         `json:"courier"`
	ScheduledDate      time.Time       `json:"scheduled_date"`
	ActualDeliveryDate *time.Time      `json:"actual_delivery_date,omitempty"`
	DepartureDate      *time.Time      `json:"departure_date,omitempty"`
	DepartureTime      string          `json:"departure_time,omitempty"`
	ArrivalTime        string          `json:"arrival_time,omitempty"`
	TrackingNumber     string          `json:"tracking_number,omitempty"`
	ShippingFee        decimal.Decimal `json:"shipping_fee"`
	Instructions       string          `json:"instructions,omitempty"`
	CustomerNote       string          `json:"customer_note,omitempty"`
	SignatureRef       string          `json:"signature_ref,omitempty"`
	RecipientName      string          `json:"recipient_name,omitempty"`
	DeliveryComment    string          `json:"delivery_comment,omitempty"`
	StatusHistory      []StatusChange  `json:"status_history"`
	Version            int             `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type NewDeliveryParams struct {
	OrderID        string
	CustomerID     string
	Address        Address
	ZoneRef        string
	ScheduledDate  time.Time
	ShippingFee    decimal.Decimal
	TrackingNumber string
	Instructions   string
	CustomerNote   string
}

// NewDelivery returns a pending delivery whose history holds the creation
// entry.
func NewDelivery(id string, p NewDeliveryParams, now time.Time) (*Delivery, error) {
	if p.OrderID == "" {
		return nil, apperr.New(apperr.Validation, "order id is required")
	}
	if p.CustomerID == "" {
		return nil, apperr.New(apperr.Validation, "customer id is required")
	}
	if err := p.Address.Validate(); err != nil {
		return nil, err
	}
	if p.ShippingFee.IsNegative() {
		return nil, apperr.Newf(apperr.Validation, "shipping fee must not be negative, got %s", p.ShippingFee)
	}

	d := &Delivery{
		ID:             id,
		OrderID:        p.OrderID,
		CustomerID:     p.CustomerID,
		Address:        p.Address,
		ZoneRef:        p.ZoneRef,
		ScheduledDate:  p.ScheduledDate.UTC(),
		ShippingFee:    p.ShippingFee,
		TrackingNumber: strings.TrimSpace(p.TrackingNumber),
		Instructions:   p.Instructions,
		CustomerNote:   p.CustomerNote,
	}
	d.record(StatusPending, "", now)
	return d, nil
}

// ChangeStatus appends exactly one history entry, whatever the current
// status. The first move to in_transit stamps the departure, the first move
// to delivered stamps the arrival; later moves never overwrite them.
func (d *Delivery) ChangeStatus(to DeliveryStatus, comment string, now time.Time) error {
	if _, err := ParseStatus(string(to)); err != nil {
		return err
	}
	d.record(to, comment, now)
	return nil
}

func (d *Delivery) record(to DeliveryStatus, comment string, now time.Time) {
	now = now.UTC()
	d.Status = to
	switch to {
	case StatusInTransit:
		if d.DepartureDate == nil {
			d.DepartureDate = &now
			d.DepartureTime = now.Format(clockLayout)
		}
	case StatusDelivered:
		if d.ActualDeliveryDate == nil {
			d.ActualDeliveryDate = &now
			d.ArrivalTime = now.Format(clockLayout)
		}
	}
	d.StatusHistory = append(d.StatusHistory, StatusChange{
		Status:    to,
		Timestamp: now,
		Comment:   strings.TrimSpace(comment),
	})
}

// AssignCourier sets the courier and always moves the delivery to prepared.
func (d *Delivery) AssignCourier(c Courier, now time.Time) {
	d.Courier = c
	d.record(StatusPrepared, "courier assigned", now)
}

func (d *Delivery) MarkDelivered(recipientName, comment string, now time.Time) error {
	recipientName = strings.TrimSpace(recipientName)
	if recipientName == "" {
		return apperr.New(apperr.Validation, "recipient name is required")
	}
	d.record(StatusDelivered, comment, now)
	d.RecipientName = recipientName
	if comment != "" {
		d.DeliveryComment = comment
	}
	return nil
}

// VoidStatus is the status a delivery of a cancelled order moves to, and
// false when it is already closed.
func (d *Delivery) VoidStatus() (DeliveryStatus, bool) {
	switch d.Status {
	case StatusPending, StatusPrepared:
		return StatusFailed, true
	case StatusInTransit:
		return StatusReturned, true
	}
	return "", false
}

func (d *Delivery) Clone() *Delivery {
	c := *d
	c.StatusHistory = append([]StatusChange(nil), d.StatusHistory...)
	if d.ActualDeliveryDate != nil {
		t := *d.ActualDeliveryDate
		c.ActualDeliveryDate = &t
	}
	if d.DepartureDate != nil {
		t := *d.DepartureDate
		c.DepartureDate = &t
	}
	return &c
}

var SortableFields = []string{"updated_at", "scheduled_date"}

// Repository persists deliveries. Create fails with apperr.Conflict when the
// tracking number is taken.
type Repository interface {
	Create(ctx context.Context, d *Delivery) error
	Update(ctx context.Context, d *Delivery) error
	Get(ctx context.Context, id string) (*Delivery, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*Delivery, error)
	List(ctx context.Context, f listing.Filter) ([]*Delivery, int, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Delivery, error)
	TrackingNumberExists(ctx context.Context, trackingNumber string) (bool, error)
}
