package rabbit

import "github.com/Temutjin2k/driver-engine/pkg/rabbit"

const (
	TripExchange         = "trip_topic"
	AttendanceExchange   = "attendance_topic"
	ComplaintExchange    = "complaint_topic"
	DriverExchange       = "driver_topic"
	NotificationExchange = "notification_topic"

	TripOutcomeQueue = "trip_outcomes"
	AttendanceQueue  = "attendance_events"
	ComplaintQueue   = "complaint_events"
)

type Route struct {
	Queue    string
	Exchange string
	Key      string
}

var (
	TripOutcomeRoute = Route{Queue: TripOutcomeQueue, Exchange: TripExchange, Key: "trip.outcome.*"}
	AttendanceRoute  = Route{Queue: AttendanceQueue, Exchange: AttendanceExchange, Key: "attendance.*"}
	ComplaintRoute   = Route{Queue: ComplaintQueue, Exchange: ComplaintExchange, Key: "complaint.*"}
)

// ConsumerTopology is everything the event consumer reads from.
func ConsumerTopology() rabbit.Topology {
	routes := []Route{TripOutcomeRoute, AttendanceRoute, ComplaintRoute}

	t := rabbit.Topology{}
	for _, r := range routes {
		t.Exchanges = append(t.Exchanges, rabbit.Exchange{Name: r.Exchange, Kind: "topic"})
		t.Queues = append(t.Queues, r.Queue)
		t.Bindings = append(t.Bindings, rabbit.Binding{Queue: r.Queue, Exchange: r.Exchange, Key: r.Key})
	}
	return t
}

// PublisherTopology declares the exchanges penalty results go to.
func PublisherTopology() rabbit.Topology {
	return rabbit.Topology{
		Exchanges: []rabbit.Exchange{
			{Name: DriverExchange, Kind: "topic"},
			{Name: NotificationExchange, Kind: "topic"},
		},
	}
}
