// Package discovery implements the Path Expander / File Discoverer (§4.B):
// given a service descriptor and a UTC time window, it enumerates the
// concrete log files to scan by expanding date/hour placeholders hour by
// hour and globbing the result.
package discovery

import (
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"logai/internal/catalog"
)

// Window is a half-open UTC interval [Start, End) with second precision
// (§3 TimeWindow). The caller is responsible for Start <= End.
type Window struct {
	Start time.Time
	End   time.Time
}

const (
	placeholderYear  = "{YYYY}"
	placeholderMonth = "{MM}"
	placeholderDay   = "{DD}"
	placeholderHour  = "{HH}"
	placeholderGUID  = "{guid}"
)

// HasDatePlaceholders reports whether a path template contains any of the
// {YYYY}/{MM}/{DD}/{HH} placeholders.
func HasDatePlaceholders(template string) bool {
	return strings.Contains(template, placeholderYear) ||
		strings.Contains(template, placeholderMonth) ||
		strings.Contains(template, placeholderDay) ||
		strings.Contains(template, placeholderHour)
}

// Discover expands descriptor.PathTemplate over window, hour by hour, and
// globs each resulting pattern. If the template carries no date
// placeholders it is globbed once directly. Missing hours yield empty
// globs and are not treated as errors; order of the returned paths is
// unspecified (§4.B Guarantees).
func Discover(descriptor catalog.ServiceDescriptor, window Window, guidWildcard string) ([]string, error) {
	if guidWildcard == "" {
		guidWildcard = "*"
	}

	if !HasDatePlaceholders(descriptor.PathTemplate) {
		pattern := strings.ReplaceAll(descriptor.PathTemplate, placeholderGUID, guidWildcard)
		return globOne(pattern)
	}

	var out []string
	for _, hour := range hoursInWindow(window) {
		pattern := substitute(descriptor.PathTemplate, hour, guidWildcard)
		matches, err := globOne(pattern)
		if err != nil {
			return out, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

// hoursInWindow returns the UTC hour boundaries to substitute into the
// template, from floor(start, 1h) through the hour containing end
// inclusive of a last partial hour (§4.B Algorithm).
func hoursInWindow(w Window) []time.Time {
	start := w.Start.UTC().Truncate(time.Hour)
	end := w.End.UTC()

	var hours []time.Time
	for h := start; !h.After(end); h = h.Add(time.Hour) {
		hours = append(hours, h)
	}
	// Guard against a window narrower than one hour where end < start's
	// truncated hour plus one step never executes the loop body; floor
	// already ensures at least one iteration when start <= end.
	if len(hours) == 0 {
		hours = append(hours, start)
	}
	return hours
}

func substitute(template string, hour time.Time, guidWildcard string) string {
	r := strings.NewReplacer(
		placeholderYear, hour.Format("2006"),
		placeholderMonth, hour.Format("01"),
		placeholderDay, hour.Format("02"),
		placeholderHour, hour.Format("15"),
		placeholderGUID, guidWildcard,
	)
	return r.Replace(template)
}

func globOne(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, err
	}
	return matches, nil
}
