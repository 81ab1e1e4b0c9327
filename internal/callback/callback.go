// Package callback encodes and decodes the data attached to inline buttons.
//
// Wire format is "<action>_<param>_<id>", split on '_' with the trailing
// fields taken as parameters:
//
//	delivery_time_<minutes>_<userID>   operator proposes a delivery time
//	order_confirm_<orderID>            customer accepts the proposed time
//	order_cancel_<orderID>             customer cancels the order
//
// Everything else decodes to KindUnknown.
package callback

import (
	"errors"
	"strconv"
	"strings"
)

// Kind tags a decoded callback.
type Kind int

const (
	KindUnknown Kind = iota
	KindDeliveryTime
	KindOrderConfirm
	KindOrderCancel
)

func (k Kind) String() string {
	switch k {
	case KindDeliveryTime:
		return "delivery_time"
	case KindOrderConfirm:
		return "order_confirm"
	case KindOrderCancel:
		return "order_cancel"
	default:
		return "unknown"
	}
}

// ErrMalformed is returned for data that has a known prefix but bad fields.
var ErrMalformed = errors.New("malformed callback data")

// Data is a decoded callback. Only the fields relevant to Kind are set.
type Data struct {
	Kind    Kind
	Minutes int    // KindDeliveryTime
	UserID  int64  // KindDeliveryTime
	OrderID uint   // KindOrderConfirm, KindOrderCancel
	Raw     string // original payload
}

const (
	prefixDeliveryTime = "delivery_time_"
	prefixConfirm      = "order_confirm_"
	prefixCancel       = "order_cancel_"
)

// DeliveryTime encodes an operator's delivery-time proposal for userID.
func DeliveryTime(minutes int, userID int64) string {
	return prefixDeliveryTime + strconv.Itoa(minutes) + "_" + strconv.FormatInt(userID, 10)
}

// OrderConfirm encodes the customer's acceptance of order id.
func OrderConfirm(orderID uint) string {
	return prefixConfirm + strconv.FormatUint(uint64(orderID), 10)
}

// OrderCancel encodes the customer's cancellation of order id.
func OrderCancel(orderID uint) string {
	return prefixCancel + strconv.FormatUint(uint64(orderID), 10)
}

// Parse decodes raw. Unknown prefixes yield KindUnknown with a nil error;
// known prefixes with bad fields yield ErrMalformed.
func Parse(raw string) (Data, error) {
	d := Data{Raw: raw}
	switch {
	case strings.HasPrefix(raw, prefixDeliveryTime):
		parts := strings.Split(raw, "_")
		if len(parts) != 4 {
			return d, ErrMalformed
		}
		minutes, err := strconv.Atoi(parts[len(parts)-2])
		if err != nil || minutes <= 0 {
			return d, ErrMalformed
		}
		uid, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
		if err != nil {
			return d, ErrMalformed
		}
		d.Kind, d.Minutes, d.UserID = KindDeliveryTime, minutes, uid
	case strings.HasPrefix(raw, prefixConfirm):
		id, err := parseOrderID(raw[len(prefixConfirm):])
		if err != nil {
			return d, err
		}
		d.Kind, d.OrderID = KindOrderConfirm, id
	case strings.HasPrefix(raw, prefixCancel):
		id, err := parseOrderID(raw[len(prefixCancel):])
		if err != nil {
			return d, err
		}
		d.Kind, d.OrderID = KindOrderCancel, id
	}
	return d, nil
}

func parseOrderID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 0)
	if err != nil || n == 0 {
		return 0, ErrMalformed
	}
	return uint(n), nil
}
