package control

import "github.com/RenatoCabral2022/serieli/internal/engine"

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	engine.Status
	Mode           string  `json:"mode"`
	CaptureSeconds float64 `json:"captureSeconds"`
	CapturedBytes  int64   `json:"capturedBytes"`
}

// ParamsRequest is the body of PUT /v1/params. Omitted fields keep their
// current value.
type ParamsRequest struct {
	Frequency *float64 `json:"frequency"`
	Amplitude *float64 `json:"amplitude"`
}

// ParamsResponse echoes the setting queued for the next frame.
type ParamsResponse struct {
	Frequency float64 `json:"frequency"`
	Amplitude float64 `json:"amplitude"`
}
