package types

// WorkerProfile is the identity record for a person who signs in at the site.
// Name and Company are required; everything else is optional.
type WorkerProfile struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Company          string `json:"company"`
	Role             string `json:"role,omitempty"`
	CSCS             string `json:"cscs,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
	EmergencyContact string `json:"emergencyContact,omitempty"`
	VehicleReg       string `json:"vehicleReg,omitempty"`
}
