package models

import "testing"

func TestOrder_RefreshDisplay(t *testing.T) {
	o := &Order{FullAmount: 130, DiscountAmount: -10, CostOfDelivery: 5, TotalAmount: 125, RateCurrency: 2}
	o.RefreshDisplay()

	if o.Display.TotalAmount != 250 || o.Display.DiscountAmount != -20 || o.Display.CostOfDelivery != 10 || o.Display.FullAmount != 260 {
		t.Fatalf("unexpected display values: %+v", o.Display)
	}
}

func TestOrder_RoundAmounts(t *testing.T) {
	o := &Order{FullAmount: 10.004, DiscountAmount: -1.005, CostOfDelivery: 0.333, TotalAmount: 9.336}
	o.RoundAmounts()

	if o.FullAmount != 10 || o.CostOfDelivery != 0.33 || o.TotalAmount != 9.34 {
		t.Fatalf("unexpected rounding: %+v", o)
	}
}
