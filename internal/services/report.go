package services

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/tbourn/go-delivery-bot/internal/domain"
)

var reportHeader = []string{
	"id", "user_id", "status", "delivery_type", "payment_type",
	"price", "address", "latitude", "longitude", "cart", "created_at", "finalized_at",
}

// WriteOrdersCSV writes orders as CSV with a header row.
func WriteOrdersCSV(w io.Writer, orders []domain.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, o := range orders {
		rec := []string{
			strconv.FormatUint(uint64(o.ID), 10),
			strconv.FormatInt(o.UserID, 10),
			string(o.Status),
			string(o.DeliveryType),
			string(o.PaymentType),
			o.Price.StringFixed(2),
			o.Address,
			floatOrEmpty(o.Latitude),
			floatOrEmpty(o.Longitude),
			o.Cart,
			o.CreatedAt.UTC().Format(time.RFC3339),
			timeOrEmpty(o.FinalizedAt),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 6, 64)
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
