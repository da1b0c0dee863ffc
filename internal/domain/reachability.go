package domain

type Reachability int

const (
	ReachabilityUnknown Reachability = iota
	ReachabilityReachable
	ReachabilityUnreachable
)

func (r Reachability) String() string {
	switch r {
	case ReachabilityReachable:
		return "reachable"
	case ReachabilityUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}
