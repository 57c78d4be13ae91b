package postgres

import (
	"time"

	domain "github.com/editionhouse/api/internal/domain"
)

const artworkColumns = `id, title, year, type, medium, surface, height, width, depth, unit, price,
	compare_at_price, currency, edition_size, edition_remaining, image, images, description,
	style_tags, framed, frame_details, sold_out, featured, created_at, updated_at`

type artworkRow struct {
	ID               string    `db:"id"`
	Title            string    `db:"title"`
	Year             int       `db:"year"`
	Type             string    `db:"type"`
	Medium           string    `db:"medium"`
	Surface          string    `db:"surface"`
	Height           float64   `db:"height"`
	Width            float64   `db:"width"`
	Depth            *float64  `db:"depth"`
	Unit             string    `db:"unit"`
	Price            int64     `db:"price"`
	CompareAtPrice   *int64    `db:"compare_at_price"`
	Currency         string    `db:"currency"`
	EditionSize      *int      `db:"edition_size"`
	EditionRemaining *int      `db:"edition_remaining"`
	Image            string    `db:"image"`
	Images           []string  `db:"images"`
	Description      string    `db:"description"`
	StyleTags        []string  `db:"style_tags"`
	Framed           bool      `db:"framed"`
	FrameDetails     string    `db:"frame_details"`
	SoldOut          bool      `db:"sold_out"`
	Featured         bool      `db:"featured"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r artworkRow) toDomain() domain.Artwork {
	return domain.Artwork{
		ID:               r.ID,
		Title:            r.Title,
		Year:             r.Year,
		Type:             domain.ArtworkType(r.Type),
		Medium:           r.Medium,
		Surface:          r.Surface,
		Height:           r.Height,
		Width:            r.Width,
		Depth:            r.Depth,
		Unit:             r.Unit,
		Price:            r.Price,
		CompareAtPrice:   r.CompareAtPrice,
		Currency:         r.Currency,
		EditionSize:      r.EditionSize,
		EditionRemaining: r.EditionRemaining,
		Image:            r.Image,
		Images:           r.Images,
		Description:      r.Description,
		StyleTags:        r.StyleTags,
		Framed:           r.Framed,
		FrameDetails:     r.FrameDetails,
		SoldOut:          r.SoldOut,
		Featured:         r.Featured,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

const dropColumns = `id, title, subtitle, description, start_date, start_time, end_date, end_time,
	has_end_date, status, featured, artwork_ids, hero_image, notify_subscribers, created_at, updated_at`

type dropRow struct {
	ID                string    `db:"id"`
	Title             string    `db:"title"`
	Subtitle          string    `db:"subtitle"`
	Description       string    `db:"description"`
	StartDate         string    `db:"start_date"`
	StartTime         string    `db:"start_time"`
	EndDate           string    `db:"end_date"`
	EndTime           string    `db:"end_time"`
	HasEndDate        bool      `db:"has_end_date"`
	Status            string    `db:"status"`
	Featured          bool      `db:"featured"`
	ArtworkIDs        []string  `db:"artwork_ids"`
	HeroImage         string    `db:"hero_image"`
	NotifySubscribers bool      `db:"notify_subscribers"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r dropRow) toDomain() domain.Drop {
	return domain.Drop{
		ID:                r.ID,
		Title:             r.Title,
		Subtitle:          r.Subtitle,
		Description:       r.Description,
		StartDate:         r.StartDate,
		StartTime:         r.StartTime,
		EndDate:           r.EndDate,
		EndTime:           r.EndTime,
		HasEndDate:        r.HasEndDate,
		Status:            domain.DropStatus(r.Status),
		Featured:          r.Featured,
		ArtworkIDs:        r.ArtworkIDs,
		HeroImage:         r.HeroImage,
		NotifySubscribers: r.NotifySubscribers,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

const orderColumns = `id, customer_id, customer_name, customer_email, customer_phone, shipping_address,
	billing_address, status, payment_status, payment_intent_id, items, subtotal, shipping, tax, total,
	refunded_amount, tracking_carrier, tracking_number, tracking_url, timeline, notes, created_at, updated_at`

type orderItemJSON struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Image    string `json:"image,omitempty"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type timelineJSON struct {
	Date  time.Time `json:"date"`
	Event string    `json:"event"`
	Note  string    `json:"note,omitempty"`
}

type orderRow struct {
	ID              string          `db:"id"`
	CustomerID      string          `db:"customer_id"`
	CustomerName    string          `db:"customer_name"`
	CustomerEmail   string          `db:"customer_email"`
	CustomerPhone   string          `db:"customer_phone"`
	ShippingAddress string          `db:"shipping_address"`
	BillingAddress  string          `db:"billing_address"`
	Status          string          `db:"status"`
	PaymentStatus   string          `db:"payment_status"`
	PaymentIntentID string          `db:"payment_intent_id"`
	Items           []orderItemJSON `db:"items"`
	Subtotal        int64           `db:"subtotal"`
	Shipping        int64           `db:"shipping"`
	Tax             int64           `db:"tax"`
	Total           int64           `db:"total"`
	RefundedAmount  int64           `db:"refunded_amount"`
	TrackingCarrier *string         `db:"tracking_carrier"`
	TrackingNumber  *string         `db:"tracking_number"`
	TrackingURL     *string         `db:"tracking_url"`
	Timeline        []timelineJSON  `db:"timeline"`
	Notes           string          `db:"notes"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func newOrderRow(order domain.Order) orderRow {
	items := make([]orderItemJSON, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemJSON(item))
	}
	timeline := make([]timelineJSON, 0, len(order.Timeline))
	for _, entry := range order.Timeline {
		timeline = append(timeline, timelineJSON{Date: entry.Date.UTC(), Event: entry.Event, Note: entry.Note})
	}
	return orderRow{
		ID:              order.ID,
		CustomerID:      order.CustomerID,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		CustomerPhone:   order.CustomerPhone,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		PaymentIntentID: order.PaymentIntentID,
		Items:           items,
		Subtotal:        order.Subtotal,
		Shipping:        order.Shipping,
		Tax:             order.Tax,
		Total:           order.Total,
		RefundedAmount:  order.RefundedAmount,
		TrackingCarrier: order.TrackingCarrier,
		TrackingNumber:  order.TrackingNumber,
		TrackingURL:     order.TrackingURL,
		Timeline:        timeline,
		Notes:           order.Notes,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
}

// args returns the row values in orderColumns order.
func (r orderRow) args() []any {
	return []any{
		r.ID, r.CustomerID, r.CustomerName, r.CustomerEmail, r.CustomerPhone, r.ShippingAddress,
		r.BillingAddress, r.Status, r.PaymentStatus, r.PaymentIntentID, r.Items, r.Subtotal, r.Shipping, r.Tax, r.Total,
		r.RefundedAmount, r.TrackingCarrier, r.TrackingNumber, r.TrackingURL, r.Timeline, r.Notes, r.CreatedAt, r.UpdatedAt,
	}
}

func (r orderRow) toDomain() domain.Order {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.OrderItem(item))
	}
	timeline := make([]domain.TimelineEntry, 0, len(r.Timeline))
	for _, entry := range r.Timeline {
		timeline = append(timeline, domain.TimelineEntry(entry))
	}
	return domain.Order{
		ID:              r.ID,
		CustomerID:      r.CustomerID,
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		CustomerPhone:   r.CustomerPhone,
		ShippingAddress: r.ShippingAddress,
		BillingAddress:  r.BillingAddress,
		Status:          domain.OrderStatus(r.Status),
		PaymentStatus:   domain.PaymentStatus(r.PaymentStatus),
		PaymentIntentID: r.PaymentIntentID,
		Items:           items,
		Subtotal:        r.Subtotal,
		Shipping:        r.Shipping,
		Tax:             r.Tax,
		Total:           r.Total,
		RefundedAmount:  r.RefundedAmount,
		TrackingCarrier: r.TrackingCarrier,
		TrackingNumber:  r.TrackingNumber,
		TrackingURL:     r.TrackingURL,
		Timeline:        timeline,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

const customerColumns = `id, name, email, phone, joined_date, total_spent, order_count, last_order_date,
	status, tags, notes, created_at`

type customerRow struct {
	ID            string     `db:"id"`
	Name          string     `db:"name"`
	Email         string     `db:"email"`
	Phone         string     `db:"phone"`
	JoinedDate    time.Time  `db:"joined_date"`
	TotalSpent    int64      `db:"total_spent"`
	OrderCount    int        `db:"order_count"`
	LastOrderDate *time.Time `db:"last_order_date"`
	Status        string     `db:"status"`
	Tags          []string   `db:"tags"`
	Notes         string     `db:"notes"`
	CreatedAt     time.Time  `db:"created_at"`
}

func (r customerRow) toDomain() domain.Customer {
	return domain.Customer(r)
}
