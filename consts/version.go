package consts

const (
	AppName = "PainRadar"
	Version = "1.0.0"
)
