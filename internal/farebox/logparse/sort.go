package logparse

import "sort"

// SortEvents orders rows for replay and display:
//
//   - rows with parsed timestamps come first, ordered by time;
//   - rows with unparseable timestamps come after all parsed rows,
//     ordered lexicographically by their raw timestamp string;
//   - ties keep input (append) order — the sort is stable.
//
// This is the documented tie-break for opaque timestamps: they are
// treated as not orderable against parsed values, only among
// themselves.
func SortEvents(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Event, rows[j].Event
		switch {
		case a.TimeParsed && b.TimeParsed:
			return a.Time.Before(b.Time)
		case a.TimeParsed:
			return true
		case b.TimeParsed:
			return false
		default:
			return a.TimeRaw < b.TimeRaw
		}
	})
}
