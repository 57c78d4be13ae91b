package domain

import "testing"

func TestPackageWeightOunces(t *testing.T) {
	cases := []struct {
		name       string
		quantities []int
		want       int
	}{
		{name: "empty", want: 16},
		{name: "single", quantities: []int{1}, want: 48},
		{name: "multiple lines", quantities: []int{2, 3}, want: 176},
		{name: "ignores non-positive", quantities: []int{0, -2, 1}, want: 48},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PackageWeightOunces(tc.quantities...); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestCartWeightOuncesMatchesQuantities(t *testing.T) {
	lines := []CartLine{{ArtworkID: "a", Quantity: 2}, {ArtworkID: "b", Quantity: 1}}
	if got := CartWeightOunces(lines); got != PackagingWeightOunces+3*ItemWeightOunces {
		t.Fatalf("unexpected weight %d", got)
	}
}

func TestFallbackRates(t *testing.T) {
	cases := []struct {
		weight                    int
		ground, priority, express int64
	}{
		{weight: 16, ground: 9, priority: 14, express: 23},
		{weight: 48, ground: 11, priority: 17, express: 28},
		{weight: 80, ground: 13, priority: 20, express: 33},
	}
	for _, tc := range cases {
		rates := FallbackRates(tc.weight)
		if len(rates) != 3 {
			t.Fatalf("expected 3 rates, got %d", len(rates))
		}
		if rates[0].Price != tc.ground || rates[1].Price != tc.priority || rates[2].Price != tc.express {
			t.Fatalf("weight %d: unexpected prices %d/%d/%d", tc.weight, rates[0].Price, rates[1].Price, rates[2].Price)
		}
		if rates[1].Price != RoundAmount(float64(rates[0].Price)*1.5) || rates[2].Price != RoundAmount(float64(rates[0].Price)*2.5) {
			t.Fatalf("weight %d: tiers not derived from ground", tc.weight)
		}
		wantDays := []int{5, 3, 1}
		for i, rate := range rates {
			if rate.DeliveryDays == nil || *rate.DeliveryDays != wantDays[i] {
				t.Fatalf("rate %s: unexpected delivery days %v", rate.MailClass, rate.DeliveryDays)
			}
			if rate.DeliveryDate != nil {
				t.Fatalf("rate %s: expected nil delivery date", rate.MailClass)
			}
		}
	}
}

func TestMailClassName(t *testing.T) {
	cases := map[string]string{
		"PRIORITY_MAIL":         "Priority Mail",
		"GROUND_ADVANTAGE":      "USPS Ground Advantage",
		"PARCEL_SELECT_LIGHT":   "PARCEL SELECT LIGHT",
		"":                      "Standard Shipping",
		"BOUND_PRINTED_MATTER":  "BOUND PRINTED MATTER",
		"PRIORITY_MAIL_EXPRESS": "Priority Mail Express",
	}
	for in, want := range cases {
		if got := MailClassName(in); got != want {
			t.Fatalf("MailClassName(%q) = %q, want %q", in, got, want)
		}
	}
}
