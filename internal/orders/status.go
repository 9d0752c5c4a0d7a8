package orders

type Status string

const (
	StatusPlaced    Status = "PLACED"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// Cancel hanya bisa sebelum SHIPPED.
var validNext = map[Status]map[Status]bool{
	StatusPlaced:    {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// predecessors: semua status asal yg sah menuju `to`.
func predecessors(to Status) []string {
	var out []string
	for from, nexts := range validNext {
		if nexts[to] {
			out = append(out, string(from))
		}
	}
	return out
}
