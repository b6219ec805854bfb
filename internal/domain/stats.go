package domain

// Stats is a point-in-time view of a pool's accounting.
//
// Available counts remaining headroom including idle resources on loanable
// standby: max - (allocated - idle). Callers that need unambiguous numbers
// should combine Allocated, Queued and Max instead.
type Stats struct {
	Min         int `json:"min"`
	Max         int `json:"max"`
	Allocated   int `json:"allocated"`
	Available   int `json:"available"`
	Queued      int `json:"queued"`
	MaxRequests int `json:"maxRequests"`
}

// PoolInfo is a JSON-friendly snapshot of one pool for status queries.
type PoolInfo struct {
	Name         string   `json:"name"`
	State        string   `json:"state"`
	Capabilities []string `json:"capabilities,omitempty"`
	Stats        Stats    `json:"stats"`
}
