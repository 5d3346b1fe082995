package model

// Instrument keys served by the dashboard.
const (
	VIX    = "vix"
	DXY    = "dxy"
	EURUSD = "eurusd"
)
