// Package badge defines the badge value, the capability interfaces provider
// bundles implement, and the service that composes them over the dispatch
// layer.
package badge

import (
	"fmt"

	"github.com/badgesmith/badgesmith/pkg/dispatch"
)

// Badge is the label/message/color triple every provider ultimately
// produces. Rendering it into an image format is someone else's job.
type Badge struct {
	Label   string `json:"label"`
	Message string `json:"message"`
	Color   string `json:"color"`
}

// Standard badge colors.
const (
	ColorBrightGreen = "brightgreen"
	ColorGreen       = "green"
	ColorYellow      = "yellow"
	ColorOrange      = "orange"
	ColorRed         = "red"
	ColorBlue        = "blue"
	ColorLightGrey   = "lightgrey"
)

// FailureBadge renders a classified dispatch failure as a badge. A failed
// upstream call still yields a badge; nothing at this layer is fatal.
func FailureBadge(label string, err error) Badge {
	failure, ok := dispatch.AsFailure(err)
	if !ok {
		return Badge{Label: label, Message: "inaccessible", Color: ColorLightGrey}
	}

	switch failure.Kind {
	case dispatch.KindNotFound:
		return Badge{Label: label, Message: failure.Message, Color: ColorRed}
	case dispatch.KindRateLimited:
		return Badge{Label: label, Message: "rate limited by upstream", Color: ColorLightGrey}
	default:
		return Badge{Label: label, Message: failure.Message, Color: ColorLightGrey}
	}
}

// metricSuffixes scales counts the way badge messages abbreviate them.
var metricSuffixes = []struct {
	threshold float64
	suffix    string
}{
	{1e9, "G"},
	{1e6, "M"},
	{1e3, "k"},
}

// FormatMetric abbreviates a count for display: 1234 renders as "1.2k".
func FormatMetric(n int) string {
	value := float64(n)
	for _, s := range metricSuffixes {
		if value >= s.threshold {
			scaled := value / s.threshold
			if scaled >= 10 {
				return fmt.Sprintf("%.0f%s", scaled, s.suffix)
			}
			return fmt.Sprintf("%.1f%s", scaled, s.suffix)
		}
	}
	return fmt.Sprintf("%d", n)
}
