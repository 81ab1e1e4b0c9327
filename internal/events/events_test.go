package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-delivery-bot/internal/domain"
)

func order() *domain.Order {
	return &domain.Order{
		ID:           12,
		UserID:       777,
		Status:       domain.OrderInitial,
		DeliveryType: domain.SelfPick,
		PaymentType:  domain.PayCash,
		Price:        decimal.RequireFromString("18.5"),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Type != TypeOrderCreated || e.OrderID != 12 || e.Price != "18.50" || e.PaymentType != domain.PayCash {
			return fmt.Errorf("unexpected payload %s", val)
		}
		return nil
	})

	p := NewKafkaPublisherWith(sp, "orders")
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), FromOrder(TypeOrderCreated, order(), at)))
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_SendFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	boom := errors.New("broker down")
	sp.ExpectSendMessageAndFail(boom)

	p := NewKafkaPublisherWith(sp, "orders")
	err := p.Publish(context.Background(), FromOrder(TypeOrderFinalized, order(), time.Now()))
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), TypeOrderFinalized)
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_CancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewKafkaPublisherWith(sp, "orders")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Publish(ctx, Event{Type: TypeOrderCreated}), context.Canceled)
	require.NoError(t, p.Close())
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	require.NoError(t, p.Publish(context.Background(), Event{}))
	require.NoError(t, p.Close())
}
