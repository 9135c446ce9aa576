package model

import (
	"strings"
	"time"
)

// Offer is a redeemable promotional item of the catalog.
// DaysOfWeek uses 0 for Monday through 6 for Sunday.
type Offer struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	CustomTitle    string `json:"customTitle,omitempty"`
	Description    string `json:"description"`
	PromoImagePath string `json:"promoImagePath"`
	Special        bool   `json:"special"`
	DaysOfWeek     []int  `json:"daysOfWeek,omitempty"`
	DailyStartTime string `json:"dailyStartTime,omitempty"`
	DailyEndTime   string `json:"dailyEndTime,omitempty"`
	StartDate      string `json:"startDate,omitempty"`
	EndDate        string `json:"endDate,omitempty"`
}

var (
	clockLayouts = []string{"15:04:05", "15:04"}
	dateLayouts  = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006/01/02"}
)

// DisplayTitle returns CustomTitle when set, Title otherwise.
func (o *Offer) DisplayTitle() string {
	if strings.TrimSpace(o.CustomTitle) != "" {
		return o.CustomTitle
	}
	return o.Title
}

// AvailableAt reports whether the offer can be redeemed at t.
// Regular offers are always available; special offers honour their
// date range, weekdays and daily window. Unparseable bounds are ignored.
func (o *Offer) AvailableAt(t time.Time) bool {
	if !o.Special {
		return true
	}
	day := t.Format("2006-01-02")
	if start, ok := parseDate(o.StartDate); ok && day < start.Format("2006-01-02") {
		return false
	}
	if end, ok := parseDate(o.EndDate); ok && day > end.Format("2006-01-02") {
		return false
	}
	if len(o.DaysOfWeek) > 0 && !containsDay(o.DaysOfWeek, MondayIndex(t.Weekday())) {
		return false
	}
	from, okFrom := parseClock(o.DailyStartTime)
	to, okTo := parseClock(o.DailyEndTime)
	if !okFrom || !okTo {
		return true
	}
	now := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
	if from <= to {
		return now >= from && now <= to
	}
	// window wraps past midnight
	return now >= from || now <= to
}

// MondayIndex converts a time.Weekday into the 0=Monday scheme used by offers.
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func parseClock(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
