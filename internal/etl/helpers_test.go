package etl

// helpers_test.go holds small fixtures shared across the package tests.

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// testReporter captures reported entries for assertions.
type testReporter struct {
	infos []reportEntry
	warns []reportEntry
}

type reportEntry struct {
	msg  string
	args []any
}

func (r *testReporter) Info(msg string, args ...any) {
	r.infos = append(r.infos, reportEntry{msg: msg, args: args})
}

func (r *testReporter) Warn(msg string, args ...any) {
	r.warns = append(r.warns, reportEntry{msg: msg, args: args})
}

// warnCount returns the value of the "count" attribute of the first warning
// whose message matches, or -1 when no such warning was reported.
func (r *testReporter) warnCount(msg string) int {
	for _, w := range r.warns {
		if w.msg != msg {
			continue
		}
		for i := 0; i+1 < len(w.args); i += 2 {
			if w.args[i] == "count" {
				if n, ok := w.args[i+1].(int); ok {
					return n
				}
			}
		}
	}
	return -1
}

func validInt8(v int64) pgtype.Int8 {
	return pgtype.Int8{Int64: v, Valid: true}
}

func validDate(year int, month time.Month, day int) pgtype.Date {
	return pgtype.Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}
