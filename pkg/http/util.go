package http

import (
	"time"

	xutil "TradeDash/pkg/util"
)

// ParseTime parses RFC3339, bare dates, and unix seconds.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }

// ParseTimeDefault parses s or returns def when empty or invalid.
func ParseTimeDefault(s string, def time.Time) time.Time { return xutil.ParseTimeDefault(s, def) }
