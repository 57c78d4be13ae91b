package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/platform/auth"
	"github.com/editionhouse/api/internal/services"
)

const validOrderBody = `{
	"id":"pi_1",
	"paymentIntentId":"pi_1",
	"customerId":"cus_1",
	"customerName":"Ada Lovelace",
	"customerEmail":"ada@example.com",
	"shippingAddress":"1 Main St, Springfield, IL 62701",
	"status":"Pending",
	"paymentStatus":"PAID",
	"items":[{"id":"A","title":"Harbour at Dawn","price":100,"quantity":2}],
	"subtotal":200,"shipping":20,"tax":16,"total":236,
	"timeline":[{"date":"2025-06-01T12:00:00Z","event":"Order placed"}]
}`

func sampleOrder() services.Order {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return services.Order{
		ID:              "pi_1",
		PaymentIntentID: "pi_1",
		CustomerID:      "cus_1",
		CustomerName:    "Ada Lovelace",
		CustomerEmail:   "ada@example.com",
		CustomerPhone:   "555-0100",
		ShippingAddress: "1 Harbour Rd, Portland, ME 04101",
		BillingAddress:  "1 Harbour Rd, Portland, ME 04101",
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPaid,
		Items:           []services.OrderItem{{ID: "A", Title: "Harbour at Dawn", Price: 100, Quantity: 2}},
		Subtotal:        200,
		Shipping:        20,
		Tax:             16,
		Total:           236,
		Timeline:        []services.TimelineEntry{{Date: created, Event: "Order placed"}},
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func TestOrderHandlersCreateOrder(t *testing.T) {
	var captured services.CreateOrderCommand
	orders := &stubOrderService{createFunc: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
		captured = cmd
		return sampleOrder(), nil
	}}
	h := NewOrderHandlers(nil, orders)

	rr := serve(t, h.Routes, http.MethodPost, "/orders", validOrderBody)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Status != domain.OrderStatusPending || captured.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected lowercased statuses, got %q/%q", captured.Status, captured.PaymentStatus)
	}
	if len(captured.Items) != 1 || captured.Items[0].Quantity != 2 || len(captured.Timeline) != 1 {
		t.Fatalf("unexpected command %+v", captured)
	}

	resp := decodeBody[orderPayload](t, rr)
	if resp.ID != "pi_1" || resp.Total != 236 || resp.Status != "pending" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.TrackingNumber != nil {
		t.Fatalf("expected null tracking number, got %v", *resp.TrackingNumber)
	}
}

func TestOrderHandlersCreateOrderErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{name: "malformed", body: `{"id":`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "invalid", body: validOrderBody, err: fmt.Errorf("%w: total mismatch", services.ErrOrderInvalidInput), status: http.StatusBadRequest, code: "invalid_request"},
		{name: "payment not confirmed", body: validOrderBody, err: fmt.Errorf("%w: intent requires_payment_method", services.ErrOrderPaymentNotConfirmed), status: http.StatusPaymentRequired, code: "payment_not_confirmed"},
		{name: "provider down", body: validOrderBody, err: fmt.Errorf("%w: timeout", services.ErrOrderPaymentProvider), status: http.StatusServiceUnavailable, code: "payment_provider_unavailable"},
		{name: "duplicate", body: validOrderBody, err: fmt.Errorf("%w: pi_1", services.ErrOrderConflict), status: http.StatusConflict, code: "order_exists"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &stubOrderService{createFunc: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
				if tc.err == nil {
					t.Fatal("service must not be called")
				}
				return services.Order{}, tc.err
			}}
			rr := serve(t, NewOrderHandlers(nil, orders).Routes, http.MethodPost, "/orders", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			code, message := errorCode(t, rr)
			if code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, code)
			}
			if tc.status == http.StatusBadRequest && message != invalidOrderMessage {
				t.Fatalf("unexpected message %q", message)
			}
		})
	}
}

func TestOrderHandlersInvalidOrderDetail(t *testing.T) {
	orders := &stubOrderService{createFunc: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
		return services.Order{}, fmt.Errorf("%w: total mismatch", services.ErrOrderInvalidInput)
	}}
	rr := serve(t, NewOrderHandlers(nil, orders).Routes, http.MethodPost, "/orders", validOrderBody)
	body := decodeBody[map[string]any](t, rr)
	if body["detail"] != "total mismatch" {
		t.Fatalf("expected validation detail, got %v", body["detail"])
	}
}

func TestOrderHandlersGetOrder(t *testing.T) {
	orders := &stubOrderService{getFunc: func(_ context.Context, id string) (services.Order, error) {
		if id != "pi_1" {
			return services.Order{}, services.ErrOrderNotFound
		}
		return sampleOrder(), nil
	}}
	h := NewOrderHandlers(nil, orders)

	rr := serve(t, h.Routes, http.MethodGet, "/orders/pi_1", "", withIdentity(&auth.Identity{UID: "cus_1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if resp := decodeBody[orderPayload](t, rr); resp.PaymentIntentID != "pi_1" || len(resp.Items) != 1 || resp.CustomerEmail != "ada@example.com" {
		t.Fatalf("unexpected response %+v", resp)
	}

	rr = serve(t, h.Routes, http.MethodGet, "/orders/pi_missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrderHidesContactDetailsFromOthers(t *testing.T) {
	orders := &stubOrderService{getFunc: func(context.Context, string) (services.Order, error) {
		return sampleOrder(), nil
	}}
	h := NewOrderHandlers(nil, orders)

	cases := map[string][]func(*http.Request){
		"anonymous":      nil,
		"other customer": {withIdentity(&auth.Identity{UID: "cus_2"})},
	}
	for name, mutate := range cases {
		rr := serve(t, h.Routes, http.MethodGet, "/orders/pi_1", "", mutate...)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", name, rr.Code)
		}
		body := rr.Body.String()
		for _, field := range []string{"customerName", "customerEmail", "customerPhone", "shippingAddress", "billingAddress", "Ada Lovelace", "ada@example.com"} {
			if strings.Contains(body, field) {
				t.Fatalf("%s: response leaked %q: %s", name, field, body)
			}
		}
		if resp := decodeBody[publicOrderPayload](t, rr); resp.ID != "pi_1" || resp.Total != 236 || len(resp.Items) != 1 {
			t.Fatalf("%s: unexpected public view %+v", name, resp)
		}
	}

	rr := serve(t, h.Routes, http.MethodGet, "/orders/pi_1", "", withIdentity(&auth.Identity{UID: "staff_1", Roles: []string{auth.RoleStaff}}))
	if resp := decodeBody[orderPayload](t, rr); resp.ShippingAddress == "" || resp.CustomerName != "Ada Lovelace" {
		t.Fatalf("expected staff to see the full order, got %+v", resp)
	}
}

func TestOrderHandlersListCustomerOrders(t *testing.T) {
	var gotCustomer string
	var gotPager services.Pagination
	orders := &stubOrderService{listForFunc: func(_ context.Context, customerID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
		gotCustomer = customerID
		gotPager = pager
		return domain.CursorPage[services.Order]{Items: []services.Order{sampleOrder()}, NextPageToken: "next"}, nil
	}}
	h := NewOrderHandlers(nil, orders)

	rr := serve(t, h.Routes, http.MethodGet, "/customers/cus_1/orders?pageSize=5", "",
		withIdentity(&auth.Identity{UID: "cus_1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCustomer != "cus_1" || gotPager.PageSize != 5 {
		t.Fatalf("unexpected call %q %+v", gotCustomer, gotPager)
	}
	resp := decodeBody[orderListResponse](t, rr)
	if len(resp.Items) != 1 || resp.NextPageToken != "next" {
		t.Fatalf("unexpected response %+v", resp)
	}

	rr = serve(t, h.Routes, http.MethodGet, "/customers/cus_1/orders", "",
		withIdentity(&auth.Identity{UID: "staff_1", Roles: []string{auth.RoleStaff}}))
	if rr.Code != http.StatusOK {
		t.Fatalf("staff may read any customer's orders, got %d", rr.Code)
	}
}

func TestOrderHandlersListCustomerOrdersAccess(t *testing.T) {
	orders := &stubOrderService{listForFunc: func(context.Context, string, services.Pagination) (domain.CursorPage[services.Order], error) {
		t.Fatal("service must not be called")
		return domain.CursorPage[services.Order]{}, nil
	}}
	h := NewOrderHandlers(nil, orders)

	if rr := serve(t, h.Routes, http.MethodGet, "/customers/cus_1/orders", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rr.Code)
	}
	rr := serve(t, h.Routes, http.MethodGet, "/customers/cus_1/orders", "",
		withIdentity(&auth.Identity{UID: "cus_2"}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another customer, got %d", rr.Code)
	}
}
