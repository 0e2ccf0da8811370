package restapi

// ColdLaunchData identifies the launch a request belongs to.
type ColdLaunchData struct {
	ColdLaunchUUID string `json:"cold_launch_uuid"`
	TimeMs         int64  `json:"time_ms"`
}

// BecomeInteractiveData is sent when the application becomes interactive.
type BecomeInteractiveData struct {
	SavedState map[string]string `json:"saved_bundle,omitempty"`
	ColdLaunch ColdLaunchData    `json:"cold_launch_data"`
}

// DeviceRebootedData is sent after the device finished booting.
type DeviceRebootedData struct {
	RebootTimeMs int64          `json:"reboot_time_ms"`
	Action       string         `json:"action"`
	ColdLaunch   ColdLaunchData `json:"cold_launch_data"`
}

// LocationEntity is a single location fix.
type LocationEntity struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationModel is the check-in request body.
type LocationModel struct {
	List []LocationEntity `json:"list"`
}

// StatusResult is the response of most endpoints.
type StatusResult struct {
	Status string `json:"status"`
}

// UserToken is the log-in response.
type UserToken struct {
	Token string `json:"token"`
}

// LogOutStatus is the log-out response.
type LogOutStatus struct {
	LoggedOut bool `json:"logged_out"`
}
