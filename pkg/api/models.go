package api

// request and response bodies for the REST surface

type ErrorResponse struct {
	Error string `json:"error"`
}

type VersionResponse struct {
	App     string `json:"app"`
	Version string `json:"version"`
}

type StatusResponse struct {
	Volume    *int  `json:"volume"`
	Muted     *bool `json:"muted"`
	Available bool  `json:"available"`
}

type KeyRequest struct {
	Key string `json:"key"`
}

type VolumeRequest struct {
	Level float64 `json:"level"`
}

type VolumeResponse struct {
	Level *int `json:"level"`
}

type MuteRequest struct {
	Muted bool `json:"muted"`
}

type MuteResponse struct {
	Muted *bool `json:"muted"`
}

type ChannelRequest struct {
	Number int `json:"number"`
}

type WakeResponse struct {
	Strategy string `json:"strategy"`
}

type DeviceResponse struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Address    string `json:"address"`
}

type PairStartRequest struct {
	Protocol string `json:"protocol"`
}

type PairPinRequest struct {
	Pin string `json:"pin"`
}

type PairStateResponse struct {
	State string `json:"state"`
}
