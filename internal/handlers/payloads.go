package handlers

import (
	"time"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/services"
)

type shippingRatePayload struct {
	MailClass     string  `json:"mailClass"`
	MailClassName string  `json:"mailClassName"`
	Price         int64   `json:"price"`
	DeliveryDays  *int    `json:"deliveryDays"`
	DeliveryDate  *string `json:"deliveryDate"`
}

func buildShippingRatePayloads(rates []domain.ShippingRate) []shippingRatePayload {
	out := make([]shippingRatePayload, 0, len(rates))
	for _, rate := range rates {
		out = append(out, shippingRatePayload{
			MailClass:     rate.MailClass,
			MailClassName: rate.MailClassName,
			Price:         rate.Price,
			DeliveryDays:  rate.DeliveryDays,
			DeliveryDate:  rate.DeliveryDate,
		})
	}
	return out
}

type breakdownPayload struct {
	Subtotal       int64  `json:"subtotal"`
	Shipping       int64  `json:"shipping"`
	ShippingMethod string `json:"shippingMethod"`
	Tax            int64  `json:"tax"`
	Total          int64  `json:"total"`
}

func buildBreakdownPayload(b domain.PricingBreakdown) breakdownPayload {
	return breakdownPayload{
		Subtotal:       b.Subtotal,
		Shipping:       b.Shipping,
		ShippingMethod: b.ShippingMethod,
		Tax:            b.Tax,
		Total:          b.Total,
	}
}

type artworkPayload struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Year             int      `json:"year,omitempty"`
	Type             string   `json:"type"`
	Medium           string   `json:"medium,omitempty"`
	Surface          string   `json:"surface,omitempty"`
	Height           float64  `json:"height,omitempty"`
	Width            float64  `json:"width,omitempty"`
	Depth            *float64 `json:"depth,omitempty"`
	Unit             string   `json:"unit,omitempty"`
	Price            int64    `json:"price"`
	CompareAtPrice   *int64   `json:"compareAtPrice,omitempty"`
	Currency         string   `json:"currency,omitempty"`
	EditionSize      *int     `json:"editionSize,omitempty"`
	EditionRemaining *int     `json:"editionRemaining,omitempty"`
	Image            string   `json:"image,omitempty"`
	Images           []string `json:"images,omitempty"`
	Description      string   `json:"description,omitempty"`
	StyleTags        []string `json:"styleTags,omitempty"`
	Framed           bool     `json:"framed"`
	FrameDetails     string   `json:"frameDetails,omitempty"`
	SoldOut          bool     `json:"soldOut"`
	Featured         bool     `json:"featured"`
	MaxQuantity      int      `json:"maxQuantity"`
}

func buildArtworkPayload(view services.ArtworkView) artworkPayload {
	a := view.Artwork
	return artworkPayload{
		ID:               a.ID,
		Title:            a.Title,
		Year:             a.Year,
		Type:             string(a.Type),
		Medium:           a.Medium,
		Surface:          a.Surface,
		Height:           a.Height,
		Width:            a.Width,
		Depth:            a.Depth,
		Unit:             a.Unit,
		Price:            a.Price,
		CompareAtPrice:   a.CompareAtPrice,
		Currency:         a.Currency,
		EditionSize:      a.EditionSize,
		EditionRemaining: a.EditionRemaining,
		Image:            a.Image,
		Images:           a.Images,
		Description:      a.Description,
		StyleTags:        a.StyleTags,
		Framed:           a.Framed,
		FrameDetails:     a.FrameDetails,
		SoldOut:          a.SoldOut,
		Featured:         a.Featured,
		MaxQuantity:      view.MaxQuantity,
	}
}

func buildArtworkPayloads(views []services.ArtworkView) []artworkPayload {
	out := make([]artworkPayload, 0, len(views))
	for _, view := range views {
		out = append(out, buildArtworkPayload(view))
	}
	return out
}

type dropPayload struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	Subtitle          string           `json:"subtitle,omitempty"`
	Description       string           `json:"description,omitempty"`
	StartDate         string           `json:"startDate"`
	StartTime         string           `json:"startTime"`
	EndDate           string           `json:"endDate,omitempty"`
	EndTime           string           `json:"endTime,omitempty"`
	HasEndDate        bool             `json:"hasEndDate"`
	Status            string           `json:"status"`
	DerivedStatus     string           `json:"derivedStatus"`
	StartsAt          *time.Time       `json:"startsAt,omitempty"`
	EndsAt            *time.Time       `json:"endsAt,omitempty"`
	Featured          bool             `json:"featured"`
	ArtworkIDs        []string         `json:"artworkIds"`
	Artworks          []artworkPayload `json:"artworks,omitempty"`
	HeroImage         string           `json:"heroImage,omitempty"`
	NotifySubscribers bool             `json:"notifySubscribers"`
}

func buildDropPayload(view services.DropView) dropPayload {
	d := view.Drop
	payload := dropPayload{
		ID:                d.ID,
		Title:             d.Title,
		Subtitle:          d.Subtitle,
		Description:       d.Description,
		StartDate:         d.StartDate,
		StartTime:         d.StartTime,
		EndDate:           d.EndDate,
		EndTime:           d.EndTime,
		HasEndDate:        d.HasEndDate,
		Status:            string(d.Status),
		DerivedStatus:     string(view.DerivedStatus),
		StartsAt:          view.StartsAt,
		EndsAt:            view.EndsAt,
		Featured:          d.Featured,
		ArtworkIDs:        d.ArtworkIDs,
		HeroImage:         d.HeroImage,
		NotifySubscribers: d.NotifySubscribers,
	}
	if payload.ArtworkIDs == nil {
		payload.ArtworkIDs = []string{}
	}
	if len(view.Artworks) > 0 {
		payload.Artworks = buildArtworkPayloads(view.Artworks)
	}
	return payload
}

type orderItemPayload struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Image    string `json:"image,omitempty"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type timelinePayload struct {
	Date  time.Time `json:"date"`
	Event string    `json:"event"`
	Note  string    `json:"note,omitempty"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	CustomerID      string             `json:"customerId"`
	CustomerName    string             `json:"customerName"`
	CustomerEmail   string             `json:"customerEmail"`
	CustomerPhone   string             `json:"customerPhone"`
	ShippingAddress string             `json:"shippingAddress"`
	BillingAddress  string             `json:"billingAddress"`
	Status          string             `json:"status"`
	PaymentStatus   string             `json:"paymentStatus"`
	PaymentIntentID string             `json:"paymentIntentId,omitempty"`
	Items           []orderItemPayload `json:"items"`
	Subtotal        int64              `json:"subtotal"`
	Shipping        int64              `json:"shipping"`
	Tax             int64              `json:"tax"`
	Total           int64              `json:"total"`
	RefundedAmount  int64              `json:"refundedAmount,omitempty"`
	TrackingCarrier *string            `json:"trackingCarrier"`
	TrackingNumber  *string            `json:"trackingNumber"`
	TrackingURL     *string            `json:"trackingUrl"`
	Timeline        []timelinePayload  `json:"timeline"`
	Notes           string             `json:"notes,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// publicOrderPayload is the order confirmation view served to callers who are neither the
// customer nor staff.
type publicOrderPayload struct {
	ID              string             `json:"id"`
	Status          string             `json:"status"`
	PaymentStatus   string             `json:"paymentStatus"`
	Items           []orderItemPayload `json:"items"`
	Subtotal        int64              `json:"subtotal"`
	Shipping        int64              `json:"shipping"`
	Tax             int64              `json:"tax"`
	Total           int64              `json:"total"`
	TrackingCarrier *string            `json:"trackingCarrier"`
	TrackingNumber  *string            `json:"trackingNumber"`
	TrackingURL     *string            `json:"trackingUrl"`
	Timeline        []timelinePayload  `json:"timeline"`
	CreatedAt       time.Time          `json:"createdAt"`
}

func buildPublicOrderPayload(order services.Order) publicOrderPayload {
	full := buildOrderPayload(order)
	return publicOrderPayload{
		ID:              full.ID,
		Status:          full.Status,
		PaymentStatus:   full.PaymentStatus,
		Items:           full.Items,
		Subtotal:        full.Subtotal,
		Shipping:        full.Shipping,
		Tax:             full.Tax,
		Total:           full.Total,
		TrackingCarrier: full.TrackingCarrier,
		TrackingNumber:  full.TrackingNumber,
		TrackingURL:     full.TrackingURL,
		Timeline:        full.Timeline,
		CreatedAt:       full.CreatedAt,
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ID:       item.ID,
			Title:    item.Title,
			Image:    item.Image,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	timeline := make([]timelinePayload, 0, len(order.Timeline))
	for _, entry := range order.Timeline {
		timeline = append(timeline, timelinePayload{Date: entry.Date, Event: entry.Event, Note: entry.Note})
	}
	return orderPayload{
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
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func buildOrderListResponse(page domain.CursorPage[services.Order]) orderListResponse {
	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	return orderListResponse{Items: items, NextPageToken: page.NextPageToken}
}
