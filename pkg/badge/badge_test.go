package badge

import (
	"errors"
	"testing"

	"github.com/badgesmith/badgesmith/pkg/dispatch"
)

func TestFailureBadge(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
		wantColor   string
	}{
		{
			name:        "not found in red with failure message",
			err:         &dispatch.Failure{Kind: dispatch.KindNotFound, Message: "repo not found"},
			wantMessage: "repo not found",
			wantColor:   ColorRed,
		},
		{
			name:        "rate limited with fixed message",
			err:         &dispatch.Failure{Kind: dispatch.KindRateLimited, Message: "upstream rate limit hit"},
			wantMessage: "rate limited by upstream",
			wantColor:   ColorLightGrey,
		},
		{
			name:        "transient server error",
			err:         &dispatch.Failure{Kind: dispatch.KindTransientServerError, Message: "upstream unavailable"},
			wantMessage: "upstream unavailable",
			wantColor:   ColorLightGrey,
		},
		{
			name:        "invalid response",
			err:         &dispatch.Failure{Kind: dispatch.KindInvalidResponse, Message: "unexpected upstream data"},
			wantMessage: "unexpected upstream data",
			wantColor:   ColorLightGrey,
		},
		{
			name:        "unclassified error",
			err:         errors.New("boom"),
			wantMessage: "inaccessible",
			wantColor:   ColorLightGrey,
		},
		{
			name:        "wrapped failure",
			err:         errors.Join(errors.New("outer"), &dispatch.Failure{Kind: dispatch.KindNotFound, Message: "user not found"}),
			wantMessage: "user not found",
			wantColor:   ColorRed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := FailureBadge("stars", tt.err)
			if b.Label != "stars" {
				t.Errorf("Label = %q, want %q", b.Label, "stars")
			}
			if b.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", b.Message, tt.wantMessage)
			}
			if b.Color != tt.wantColor {
				t.Errorf("Color = %q, want %q", b.Color, tt.wantColor)
			}
		})
	}
}

func TestFormatMetric(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1.0k"},
		{1234, "1.2k"},
		{9999, "10.0k"},
		{12300, "12k"},
		{250000, "250k"},
		{1200000, "1.2M"},
		{45000000, "45M"},
		{2100000000, "2.1G"},
	}

	for _, tt := range tests {
		if got := FormatMetric(tt.in); got != tt.want {
			t.Errorf("FormatMetric(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
