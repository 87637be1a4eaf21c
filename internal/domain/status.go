package domain

// Segment values assigned by the segmentation job upstream.
const (
	SegmentLoyalGold     = "Loyal-Gold"
	SegmentLoyalSilver   = "Loyal-Silver"
	SegmentRegular       = "Regular"
	SegmentFirstPurchase = "First-Purchase"
	SegmentAtRisk        = "At-Risk"
	SegmentInactive      = "Inactive"
	SegmentNew           = "New"
)

// Segments lists every known segment in display order.
var Segments = []string{
	SegmentLoyalGold,
	SegmentLoyalSilver,
	SegmentRegular,
	SegmentFirstPurchase,
	SegmentAtRisk,
	SegmentInactive,
	SegmentNew,
}

// Status is the derived lifecycle classification of a customer.
type Status string

const (
	StatusVIP        Status = "VIP"
	StatusActive     Status = "Active"
	StatusRegular    Status = "Regular"
	StatusAtRisk     Status = "AtRisk"
	StatusInactive   Status = "Inactive"
	StatusReactivate Status = "Reactivate"
)

// StatusColor is the badge color token paired with a Status.
type StatusColor string

const (
	ColorGold   StatusColor = "gold"
	ColorGreen  StatusColor = "green"
	ColorYellow StatusColor = "yellow"
	ColorRed    StatusColor = "red"
	ColorGray   StatusColor = "gray"
	ColorOrange StatusColor = "orange"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusVIP,
	StatusActive,
	StatusRegular,
	StatusAtRisk,
	StatusInactive,
	StatusReactivate,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}
