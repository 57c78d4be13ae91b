package firestore

import (
	"time"

	domain "github.com/editionhouse/api/internal/domain"
)

const (
	artworksCollection  = "artworks"
	dropsCollection     = "drops"
	ordersCollection    = "orders"
	customersCollection = "customers"
)

type artworkDocument struct {
	Title            string    `firestore:"title"`
	Year             int       `firestore:"year"`
	Type             string    `firestore:"type"`
	Medium           string    `firestore:"medium"`
	Surface          string    `firestore:"surface,omitempty"`
	Height           float64   `firestore:"height"`
	Width            float64   `firestore:"width"`
	Depth            *float64  `firestore:"depth,omitempty"`
	Unit             string    `firestore:"unit"`
	Price            int64     `firestore:"price"`
	CompareAtPrice   *int64    `firestore:"compareAtPrice,omitempty"`
	Currency         string    `firestore:"currency"`
	EditionSize      *int      `firestore:"editionSize,omitempty"`
	EditionRemaining *int      `firestore:"editionRemaining,omitempty"`
	Image            string    `firestore:"image"`
	Images           []string  `firestore:"images"`
	Description      string    `firestore:"description"`
	StyleTags        []string  `firestore:"styleTags"`
	Framed           bool      `firestore:"framed"`
	FrameDetails     string    `firestore:"frameDetails,omitempty"`
	SoldOut          bool      `firestore:"soldOut"`
	Featured         bool      `firestore:"featured"`
	CreatedAt        time.Time `firestore:"createdAt"`
	UpdatedAt        time.Time `firestore:"updatedAt"`
}

func (d artworkDocument) toDomain(id string) domain.Artwork {
	return domain.Artwork{
		ID:               id,
		Title:            d.Title,
		Year:             d.Year,
		Type:             domain.ArtworkType(d.Type),
		Medium:           d.Medium,
		Surface:          d.Surface,
		Height:           d.Height,
		Width:            d.Width,
		Depth:            d.Depth,
		Unit:             d.Unit,
		Price:            d.Price,
		CompareAtPrice:   d.CompareAtPrice,
		Currency:         d.Currency,
		EditionSize:      d.EditionSize,
		EditionRemaining: d.EditionRemaining,
		Image:            d.Image,
		Images:           d.Images,
		Description:      d.Description,
		StyleTags:        d.StyleTags,
		Framed:           d.Framed,
		FrameDetails:     d.FrameDetails,
		SoldOut:          d.SoldOut,
		Featured:         d.Featured,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type dropDocument struct {
	Title             string    `firestore:"title"`
	Subtitle          string    `firestore:"subtitle,omitempty"`
	Description       string    `firestore:"description"`
	StartDate         string    `firestore:"startDate"`
	StartTime         string    `firestore:"startTime"`
	EndDate           string    `firestore:"endDate,omitempty"`
	EndTime           string    `firestore:"endTime,omitempty"`
	HasEndDate        bool      `firestore:"hasEndDate"`
	Status            string    `firestore:"status"`
	Featured          bool      `firestore:"featured"`
	ArtworkIDs        []string  `firestore:"artworkIds"`
	HeroImage         string    `firestore:"heroImage,omitempty"`
	NotifySubscribers bool      `firestore:"notifySubscribers"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

func (d dropDocument) toDomain(id string) domain.Drop {
	return domain.Drop{
		ID:                id,
		Title:             d.Title,
		Subtitle:          d.Subtitle,
		Description:       d.Description,
		StartDate:         d.StartDate,
		StartTime:         d.StartTime,
		EndDate:           d.EndDate,
		EndTime:           d.EndTime,
		HasEndDate:        d.HasEndDate,
		Status:            domain.DropStatus(d.Status),
		Featured:          d.Featured,
		ArtworkIDs:        d.ArtworkIDs,
		HeroImage:         d.HeroImage,
		NotifySubscribers: d.NotifySubscribers,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type orderItemDocument struct {
	ID       string `firestore:"id"`
	Title    string `firestore:"title"`
	Image    string `firestore:"image"`
	Price    int64  `firestore:"price"`
	Quantity int    `firestore:"quantity"`
}

type timelineDocument struct {
	Date  time.Time `firestore:"date"`
	Event string    `firestore:"event"`
	Note  string    `firestore:"note,omitempty"`
}

type orderDocument struct {
	CustomerID      string              `firestore:"customerId"`
	CustomerName    string              `firestore:"customerName"`
	CustomerEmail   string              `firestore:"customerEmail"`
	CustomerPhone   string              `firestore:"customerPhone,omitempty"`
	ShippingAddress string              `firestore:"shippingAddress"`
	BillingAddress  string              `firestore:"billingAddress"`
	Status          string              `firestore:"status"`
	PaymentStatus   string              `firestore:"paymentStatus"`
	PaymentIntentID string              `firestore:"paymentIntentId"`
	Items           []orderItemDocument `firestore:"items"`
	Subtotal        int64               `firestore:"subtotal"`
	Shipping        int64               `firestore:"shipping"`
	Tax             int64               `firestore:"tax"`
	Total           int64               `firestore:"total"`
	RefundedAmount  int64               `firestore:"refundedAmount"`
	TrackingCarrier *string             `firestore:"trackingCarrier"`
	TrackingNumber  *string             `firestore:"trackingNumber"`
	TrackingURL     *string             `firestore:"trackingUrl"`
	Timeline        []timelineDocument  `firestore:"timeline"`
	Notes           string              `firestore:"notes"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument(item))
	}
	timeline := make([]timelineDocument, 0, len(order.Timeline))
	for _, entry := range order.Timeline {
		timeline = append(timeline, timelineDocument{Date: entry.Date.UTC(), Event: entry.Event, Note: entry.Note})
	}
	return orderDocument{
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

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem(item))
	}
	timeline := make([]domain.TimelineEntry, 0, len(d.Timeline))
	for _, entry := range d.Timeline {
		timeline = append(timeline, domain.TimelineEntry(entry))
	}
	return domain.Order{
		ID:              id,
		CustomerID:      d.CustomerID,
		CustomerName:    d.CustomerName,
		CustomerEmail:   d.CustomerEmail,
		CustomerPhone:   d.CustomerPhone,
		ShippingAddress: d.ShippingAddress,
		BillingAddress:  d.BillingAddress,
		Status:          domain.OrderStatus(d.Status),
		PaymentStatus:   domain.PaymentStatus(d.PaymentStatus),
		PaymentIntentID: d.PaymentIntentID,
		Items:           items,
		Subtotal:        d.Subtotal,
		Shipping:        d.Shipping,
		Tax:             d.Tax,
		Total:           d.Total,
		RefundedAmount:  d.RefundedAmount,
		TrackingCarrier: d.TrackingCarrier,
		TrackingNumber:  d.TrackingNumber,
		TrackingURL:     d.TrackingURL,
		Timeline:        timeline,
		Notes:           d.Notes,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type customerDocument struct {
	Name          string     `firestore:"name"`
	Email         string     `firestore:"email"`
	Phone         string     `firestore:"phone,omitempty"`
	JoinedDate    time.Time  `firestore:"joinedDate"`
	TotalSpent    int64      `firestore:"totalSpent"`
	OrderCount    int        `firestore:"orderCount"`
	LastOrderDate *time.Time `firestore:"lastOrderDate"`
	Status        string     `firestore:"status"`
	Tags          []string   `firestore:"tags"`
	Notes         string     `firestore:"notes"`
	CreatedAt     time.Time  `firestore:"createdAt"`
}

func (d customerDocument) toDomain(id string) domain.Customer {
	return domain.Customer{
		ID:            id,
		Name:          d.Name,
		Email:         d.Email,
		Phone:         d.Phone,
		JoinedDate:    d.JoinedDate,
		TotalSpent:    d.TotalSpent,
		OrderCount:    d.OrderCount,
		LastOrderDate: d.LastOrderDate,
		Status:        d.Status,
		Tags:          d.Tags,
		Notes:         d.Notes,
		CreatedAt:     d.CreatedAt,
	}
}
