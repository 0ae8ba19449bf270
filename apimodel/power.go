package apimodel

type PowerState string

const (
	PowerStateOn  PowerState = "on"
	PowerStateOff PowerState = "off"
)

func (p PowerState) Valid() bool {
	return p == PowerStateOn || p == PowerStateOff
}

type PowerInput struct {
	State PowerState `json:"state"`
}

type PowerResult struct {
	Status string     `json:"status"`
	State  PowerState `json:"state"`
}
