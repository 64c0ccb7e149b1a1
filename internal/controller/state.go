package controller

// State identifies the controller's position in the anti-park cycle.
type State int

const (
	// StateAntiPark continuously touches the disk to keep the head active.
	StateAntiPark State = iota
	// StateParked performs no disk access so the head can park.
	StateParked
	// StateIdle performs no disk access at all, allowing OS spindown.
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateAntiPark:
		return "antipark"
	case StateParked:
		return "parked"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}
