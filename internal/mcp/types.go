package mcp

// CheckToolInput is shared by every tool; each tool reads the fields it needs.
type CheckToolInput struct {
	Target string `json:"target,omitempty"`
	Port   int    `json:"port,omitempty"`
	// Mode is "aggregated", "separate" or "both" (default).
	Mode      string `json:"mode,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`

	MaxWorkers      int  `json:"max_workers,omitempty"`
	ScansPerWorker  int  `json:"scans_per_worker,omitempty"`
	CoolDownSeconds *int `json:"cool_down_seconds,omitempty"`
	DurationSeconds int  `json:"duration_seconds,omitempty"`
}

type CheckToolOutput struct {
	Issues  []Issue `json:"issues"`
	Summary string  `json:"summary"`
	Report  string  `json:"report"`

	Scans  []ScanRow  `json:"scans,omitempty"`
	Trials []TrialRow `json:"trials,omitempty"`
}

type Issue struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Details     string `json:"details"`
}

type ScanRow struct {
	ScanID               string  `json:"scan_id"`
	Mode                 string  `json:"mode"`
	Status               string  `json:"status"`
	InitialMagnification float64 `json:"initial_magnification"`
	OverallMagnification float64 `json:"overall_magnification"`
	TotalResponseBytes   uint64  `json:"total_response_bytes"`
	TotalRequestBytes    uint64  `json:"total_request_bytes"`
	ServiceCount         int     `json:"service_count"`
	ElapsedMs            int64   `json:"elapsed_ms"`
	Error                string  `json:"error,omitempty"`
}

type TrialRow struct {
	Workers    int     `json:"workers"`
	Penalty    int64   `json:"penalty"`
	LossRate   float64 `json:"loss_rate"`
	Throughput float64 `json:"throughput"`
	DurationMs int64   `json:"duration_ms"`
}
