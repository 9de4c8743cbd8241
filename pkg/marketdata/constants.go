package marketdata

import "fmt"

// Period is the lookback window requested from the indicators endpoint.
type Period string

// Interval is the bar size requested from the indicators endpoint.
type Interval string

const (
	Period1Day   Period = "1d"
	Period5Day   Period = "5d"
	Period1Month Period = "1mo"
	Period3Month Period = "3mo"
	Period6Month Period = "6mo"
	Period1Year  Period = "1y"
	Period2Year  Period = "2y"
	Period5Year  Period = "5y"
	PeriodYTD    Period = "ytd"
	PeriodMax    Period = "max"
)

const (
	Interval1Min   Interval = "1m"
	Interval5Min   Interval = "5m"
	Interval15Min  Interval = "15m"
	Interval30Min  Interval = "30m"
	Interval60Min  Interval = "60m"
	Interval1Hour  Interval = "1h"
	IntervalDaily  Interval = "1d"
	IntervalWeekly Interval = "1wk"
	IntervalMonth  Interval = "1mo"
)

var validPeriods = map[Period]struct{}{
	Period1Day: {}, Period5Day: {}, Period1Month: {}, Period3Month: {}, Period6Month: {},
	Period1Year: {}, Period2Year: {}, Period5Year: {}, PeriodYTD: {}, PeriodMax: {},
}

// intraday intervals are only served for short lookbacks
var validIntervals = map[Interval]bool{
	Interval1Min:   true,
	Interval5Min:   true,
	Interval15Min:  true,
	Interval30Min:  true,
	Interval60Min:  true,
	Interval1Hour:  true,
	IntervalDaily:  false,
	IntervalWeekly: false,
	IntervalMonth:  false,
}

// IsValid reports whether p is a period the backend accepts.
func (p Period) IsValid() bool {
	_, ok := validPeriods[p]
	return ok
}

// IsValid reports whether i is an interval the backend accepts.
func (i Interval) IsValid() bool {
	_, ok := validIntervals[i]
	return ok
}

// IsIntraday reports whether i is shorter than a trading day.
func (i Interval) IsIntraday() bool {
	return validIntervals[i]
}

func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid period: %q", s)
	}
	return p, nil
}

func ParseInterval(s string) (Interval, error) {
	i := Interval(s)
	if !i.IsValid() {
		return "", fmt.Errorf("invalid interval: %q", s)
	}
	return i, nil
}
