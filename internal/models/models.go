package models

// Envelope is the JSON body returned by every control endpoint
type Envelope struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Gateway status values
const (
	StatusOnline            = "online"
	StatusOffline           = "offline"
	StatusStarted           = "started"
	StatusShutdownInitiated = "shutdown initiated"
	StatusApplied           = "applied"
	StatusDestroyed         = "destroyed"
	StatusError             = "error"
)

// ErrorEnvelope builds the error form of the envelope
func ErrorEnvelope(detail string) Envelope {
	return Envelope{Status: StatusError, Detail: detail}
}

// PowerStatusRunning is the provider power_status that maps to online
const PowerStatusRunning = "running"

// LifecycleOp is an infrastructure operation that mutates the deployment
type LifecycleOp string

const (
	OpApply   LifecycleOp = "apply"
	OpDestroy LifecycleOp = "destroy"
)

// Valid reports whether op is a known lifecycle operation
func (op LifecycleOp) Valid() bool {
	return op == OpApply || op == OpDestroy
}
