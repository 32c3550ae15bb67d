package order

type Status string

const (
	// StatusPending is the only status this core writes; later transitions
	// are driven by payment events in a different subsystem.
	StatusPending Status = "pending"
)
