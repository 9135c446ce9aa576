package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bark-labs/offerbot/internal/model"
)

type homeView struct {
	Name    string
	ID      int64
	Coupons int
}

type listView struct {
	Count int
}

type previewView struct {
	Title       string
	Description string
	Special     bool
	Schedule    string
	Available   bool
}

type couponView struct {
	Title       string
	Description string
	Code        string
	ID          string
}

type failedView struct {
	Title string
}

var dayNames = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// schedule describes when a special offer is valid, "" for regular offers.
func schedule(o *model.Offer) string {
	if !o.Special {
		return ""
	}
	var parts []string
	if len(o.DaysOfWeek) > 0 {
		days := append([]int(nil), o.DaysOfWeek...)
		sort.Ints(days)
		names := make([]string, 0, len(days))
		for _, d := range days {
			if d >= 0 && d < len(dayNames) {
				names = append(names, dayNames[d])
			}
		}
		parts = append(parts, strings.Join(names, ", "))
	}
	if o.DailyStartTime != "" && o.DailyEndTime != "" {
		parts = append(parts, fmt.Sprintf("%s-%s", o.DailyStartTime, o.DailyEndTime))
	}
	if o.StartDate != "" || o.EndDate != "" {
		parts = append(parts, fmt.Sprintf("from %s to %s", orDash(o.StartDate), orDash(o.EndDate)))
	}
	return strings.Join(parts, " · ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
