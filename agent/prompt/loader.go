package prompt

import (
	_ "embed"
	"strings"
	"time"
)

//go:embed template/system.txt
var systemRaw string

const datetimePlaceholder = "{current_datetime}"

// System returns the butler system prompt with the {current_datetime}
// placeholder filled in for the given moment.
func System(now time.Time, location *time.Location) string {
	if location == nil {
		location = time.UTC
	}
	local := now.In(location)
	stamp := local.Format("Monday, 02 January 2006, 15:04 ") + location.String()
	return strings.ReplaceAll(strings.TrimSpace(systemRaw), datetimePlaceholder, stamp)
}
