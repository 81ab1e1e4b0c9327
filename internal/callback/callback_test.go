package callback

import (
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	d, err := Parse(DeliveryTime(45, 123456789))
	if err != nil || d.Kind != KindDeliveryTime || d.Minutes != 45 || d.UserID != 123456789 {
		t.Fatalf("delivery time = %+v, %v", d, err)
	}
	d, err = Parse(OrderConfirm(17))
	if err != nil || d.Kind != KindOrderConfirm || d.OrderID != 17 {
		t.Fatalf("confirm = %+v, %v", d, err)
	}
	d, err = Parse(OrderCancel(18))
	if err != nil || d.Kind != KindOrderCancel || d.OrderID != 18 {
		t.Fatalf("cancel = %+v, %v", d, err)
	}
}

func TestParse_UnknownAndMalformed(t *testing.T) {
	d, err := Parse("something_else")
	if err != nil || d.Kind != KindUnknown || d.Raw != "something_else" {
		t.Fatalf("unknown = %+v, %v", d, err)
	}

	for _, raw := range []string{
		"delivery_time_30",
		"delivery_time_x_1",
		"delivery_time_0_1",
		"delivery_time_30_abc",
		"delivery_time_30_1_2",
		"order_confirm_",
		"order_confirm_0",
		"order_cancel_-1",
		"order_cancel_x",
	} {
		if _, err := Parse(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q) = %v, want ErrMalformed", raw, err)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindDeliveryTime.String() != "delivery_time" || KindUnknown.String() != "unknown" {
		t.Fatalf("Kind.String unexpected")
	}
}
