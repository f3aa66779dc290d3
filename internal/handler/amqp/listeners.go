package amqp

import (
	"context"
	"fmt"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

// Each listener maps one platform DTO onto its live channel. Publication is
// fire-and-forget; a listener error here means the DTO itself was unusable.

func (h *IngressHandler) OnOrderCompletedV1(ctx context.Context, d *OrderCompletedV1) error {
	if d.EventID == "" {
		return fmt.Errorf("order %s: missing event_id", d.OrderID)
	}
	h.publisher.Order(ctx, d.EventID, event.OrderPayload{
		OrderID:  d.OrderID,
		Status:   d.Status,
		Total:    d.Total,
		Currency: d.Currency,
	})
	return nil
}

func (h *IngressHandler) OnAttendeeCheckedInV1(ctx context.Context, d *AttendeeCheckedInV1) error {
	if d.EventID == "" {
		return fmt.Errorf("attendee %s: missing event_id", d.AttendeeID)
	}
	h.publisher.CheckIn(ctx, d.EventID, event.CheckInPayload{
		AttendeeID:  d.AttendeeID,
		TicketID:    d.TicketID,
		CheckedInBy: d.CheckedInBy,
		CheckedOut:  d.CheckedOut,
	})
	return nil
}

func (h *IngressHandler) OnStatsSnapshotV1(ctx context.Context, d *StatsSnapshotV1) error {
	if d.EventID == "" {
		return fmt.Errorf("stats snapshot: missing event_id")
	}
	h.publisher.Stats(ctx, d.EventID, event.StatsPayload{
		TicketsSold:        d.TicketsSold,
		AttendeesCheckedIn: d.AttendeesCheckedIn,
		Revenue:            d.Revenue,
	})
	return nil
}

func (h *IngressHandler) OnAlertRaisedV1(ctx context.Context, d *AlertRaisedV1) error {
	if d.EventID == "" {
		return fmt.Errorf("alert: missing event_id")
	}
	h.publisher.Alert(ctx, d.EventID, event.AlertPayload{
		Severity: d.Severity,
		Message:  d.Message,
	})
	return nil
}
