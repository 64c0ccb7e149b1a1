package ipc

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse acknowledges a ping.
type PingResponse struct {
	PID int `json:"pid"`
}

// StatusRequest fetches daemon and controller status.
type StatusRequest struct{}

// StatusResponse combines process information with the controller snapshot.
type StatusResponse struct {
	Running           bool   `json:"running"`
	PID               int    `json:"pid"`
	LockPath          string `json:"lock_path"`
	Device            string `json:"device"`
	TouchFile         string `json:"touch_file"`
	HotplugMonitoring bool   `json:"hotplug_monitoring"`

	State              string `json:"state"`
	CurrentTimeoutSecs int64  `json:"current_timeout_secs"`
	UptimeSecs         int64  `json:"uptime_secs"`
	IdleSecs           int64  `json:"idle_secs"`
	IdlePercent        int    `json:"idle_percent"`
	LoadCycleEstimate  int    `json:"load_cycle_estimate"`
	CyclesPerHour      int    `json:"cycles_per_hour"`
}

// StopRequest asks the daemon process to shut down gracefully.
type StopRequest struct{}

// StopResponse indicates the shutdown request was accepted.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}
