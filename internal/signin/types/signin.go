package types

// SignInRequest is the kiosk form submission for both directions. An empty
// Worker.ID means a first-time visitor.
type SignInRequest struct {
	Worker       WorkerProfile `json:"worker"`
	Declarations Declarations  `json:"declarations"`
}

type SignInResponse struct {
	OK         bool          `json:"ok"`
	Direction  Direction     `json:"direction"`
	Reason     string        `json:"reason,omitempty"`
	Message    string        `json:"message,omitempty"`
	MissingPPE []string      `json:"missing_ppe,omitempty"`
	Worker     WorkerProfile `json:"worker"`
	Event      *VisitEvent   `json:"event,omitempty"`
	OnSite     int           `json:"on_site"`
	ServerTime string        `json:"server_time"`
}

// RosterEntry is one worker currently on site together with the IN event
// that put them there. Worker carries only the ID when the profile cannot be
// resolved.
type RosterEntry struct {
	Worker  WorkerProfile `json:"worker"`
	SinceIn VisitEvent    `json:"since_in"`
}
