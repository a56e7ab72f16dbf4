// Package screens declares the console's entity screens as view configs,
// along with the status rules they share.
package screens

import (
	"time"

	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/format"
	"github.com/johnwards/dealerhub/internal/view"
)

// Contract statuses. They are derived, never stored.
const (
	ContractActive  = "Active"
	ContractPending = "Pending"
	ContractExpired = "Expired"
)

// ContractStatus derives a dealer contract's status on the day of now, in
// the display time zone. Both dates are inclusive. A missing start date is
// treated as already started and a missing end date as open-ended; with
// neither date the status is unknown ("").
func ContractStatus(start, end string, now time.Time) string {
	s, hasStart := format.ParseDisplayDate(start)
	e, hasEnd := format.ParseDisplayDate(end)
	if !hasStart && !hasEnd {
		return ""
	}

	today := dayOf(now)
	if hasStart && today.Before(dayOf(s)) {
		return ContractPending
	}
	if hasEnd && today.After(dayOf(e)) {
		return ContractExpired
	}
	return ContractActive
}

func dayOf(t time.Time) time.Time {
	t = t.In(format.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, format.Location)
}

func contractStatus(rec domain.Record, now time.Time) string {
	return ContractStatus(rec.String("startDate"), rec.String("endDate"), now)
}

// statusBadges maps every known status to a badge variant.
var statusBadges = map[string]string{
	"Active":       "success",
	"Inactive":     "secondary",
	"Suspended":    "danger",
	"Pending":      "warning",
	"Expired":      "danger",
	"Discontinued": "secondary",
	"Available":    "success",
	"Reserved":     "warning",
	"Sold":         "info",
	"InTransit":    "primary",
	"Draft":        "secondary",
	"Sent":         "info",
	"Accepted":     "success",
	"Rejected":     "danger",
	"Confirmed":    "info",
	"Delivered":    "success",
	"Cancelled":    "danger",
	"Completed":    "success",
	"Failed":       "danger",
	"New":          "primary",
	"InProgress":   "warning",
	"Resolved":     "success",
	"Closed":       "secondary",
}

// Badge returns the badge variant of status, neutral when unknown.
var Badge = view.Badges(statusBadges)
