package domain

// Velocity is a raw 3-component velocity sample in simulator units per second.
type Velocity struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Signal is a derived telemetry value addressed by its dotted VSS path.
// Immutable once produced; one per signal kind per tick.
type Signal struct {
	Path  string  `json:"path"`
	Value float64 `json:"value"`
}

// Vehicle describes the actor currently tracked by the bridge.
type Vehicle struct {
	ID     int    `json:"id"`
	TypeID string `json:"type_id"`
	Role   string `json:"role_name"`
	Alive  bool   `json:"alive"`
}
