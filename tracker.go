package rewardboard

import (
	"sort"
	"strconv"
	"strings"
)

var trackerLogger = NewLogger("page-tracker")

// PageTracker receives the analytics page event fired after a chain's
// rewards first load.
type PageTracker interface {
	TrackPage(chainID int64, traits map[string]string)
}

// PageTrackerFunc adapts a function to PageTracker.
type PageTrackerFunc func(chainID int64, traits map[string]string)

// TrackPage calls f.
func (f PageTrackerFunc) TrackPage(chainID int64, traits map[string]string) {
	f(chainID, traits)
}

// NewLogPageTracker records page events in the log and the page_views_total map.
func NewLogPageTracker(logger Logger) PageTracker {
	if logger == nil {
		logger = trackerLogger
	}
	return PageTrackerFunc(func(chainID int64, traits map[string]string) {
		pairs := make([]string, 0, len(traits))
		for k, v := range traits {
			pairs = append(pairs, k+"="+v)
		}
		sort.Strings(pairs)
		logger.Printf("page tracked chain=%d traits=%s", chainID, strings.Join(pairs, ","))
		pageViews.Add(strconv.FormatInt(chainID, 10), 1)
	})
}

func pageTraits(weeks []RewardWeek) map[string]string {
	traits := map[string]string{}
	if len(weeks) > 0 {
		traits["week"] = weeks[len(weeks)-1].Week
	}
	return traits
}
