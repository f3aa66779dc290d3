package event

// Per-channel payload builders. The bus treats payloads as opaque maps; these
// structs give producers a checked shape for each channel without the bus
// having to know about any of them.

// CheckInPayload describes one attendee check-in or check-out.
type CheckInPayload struct {
	AttendeeID  string
	TicketID    string
	CheckedInBy string
	CheckedOut  bool
}

func (p CheckInPayload) Map() map[string]any {
	return map[string]any{
		"attendee_id":   p.AttendeeID,
		"ticket_id":     p.TicketID,
		"checked_in_by": p.CheckedInBy,
		"checked_out":   p.CheckedOut,
	}
}

// OrderPayload describes an order reaching a terminal state.
type OrderPayload struct {
	OrderID  string
	Status   string
	Total    float64
	Currency string
}

func (p OrderPayload) Map() map[string]any {
	return map[string]any{
		"order_id": p.OrderID,
		"status":   p.Status,
		"total":    p.Total,
		"currency": p.Currency,
	}
}

// StatsPayload is a snapshot of the live dashboard counters.
type StatsPayload struct {
	TicketsSold        int
	AttendeesCheckedIn int
	Revenue            float64
}

func (p StatsPayload) Map() map[string]any {
	return map[string]any{
		"tickets_sold":         p.TicketsSold,
		"attendees_checked_in": p.AttendeesCheckedIn,
		"revenue":              p.Revenue,
	}
}

// AlertPayload carries operator-facing notifications.
type AlertPayload struct {
	Severity string
	Message  string
}

func (p AlertPayload) Map() map[string]any {
	return map[string]any{
		"severity": p.Severity,
		"message":  p.Message,
	}
}
