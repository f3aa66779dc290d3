package amqp

// Wire DTOs for the platform's domain topics. EventID is the platform's
// event/show identifier, which is the stream scope.

type OrderCompletedV1 struct {
	EventID  string  `json:"event_id"`
	OrderID  string  `json:"order_id"`
	Status   string  `json:"status"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

type AttendeeCheckedInV1 struct {
	EventID     string `json:"event_id"`
	AttendeeID  string `json:"attendee_id"`
	TicketID    string `json:"ticket_id"`
	CheckedInBy string `json:"checked_in_by"`
	CheckedOut  bool   `json:"checked_out"`
}

type StatsSnapshotV1 struct {
	EventID            string  `json:"event_id"`
	TicketsSold        int     `json:"tickets_sold"`
	AttendeesCheckedIn int     `json:"attendees_checked_in"`
	Revenue            float64 `json:"revenue"`
}

type AlertRaisedV1 struct {
	EventID  string `json:"event_id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}
