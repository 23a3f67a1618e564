package enums

import "fmt"

// OrderChannel identifies where an order originated.
type OrderChannel string

const (
	OrderChannelPOS    OrderChannel = "POS"
	OrderChannelOnline OrderChannel = "ONLINE"
)

var validOrderChannels = []OrderChannel{
	OrderChannelPOS,
	OrderChannelOnline,
}

// String implements fmt.Stringer.
func (c OrderChannel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known OrderChannel.
func (c OrderChannel) IsValid() bool {
	for _, candidate := range validOrderChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseOrderChannel converts raw input into an OrderChannel.
func ParseOrderChannel(value string) (OrderChannel, error) {
	for _, candidate := range validOrderChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order channel %q", value)
}
