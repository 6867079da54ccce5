// internal/generators/expressions.go
package generators

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * Date and time expressions are parsed by a small recursive-descent parser:
 *
 *   date_expr  -> base (op duration)*
 *               | (op duration)+
 *               | ('next' | 'last') offset (op duration)*
 *               | empty
 *   base       -> 'now' | 'today' | 'yesterday' | 'tomorrow'
 *   op         -> '+' | '-'
 *   duration   -> INT ('day' | 'week' | 'month' | 'year') 's'?
 *   offset     -> day | week | month | year | fortnight | <weekday> | <month name>
 *
 *   time_expr  -> time_base (op duration)*
 *               | (op duration)+
 *               | ('next' | 'last') ('hour' | 'minute' | 'second' | 'millisecond') (op duration)*
 *               | empty
 *   time_base  -> 'now' | 'midnight' | 'noon' | INT "o'clock" ('am' | 'pm')?
 *
 * Evaluation applies the adjustments left to right. Weekday and month
 * anchors scan strictly forward for "next" and strictly backward for "last".
 */

type operation int

const (
	opPlus operation = iota
	opMinus
)

type offsetKind int

const (
	offsetDay offsetKind = iota
	offsetWeek
	offsetMonth
	offsetYear
	offsetWeekday
	offsetMonthName
	offsetHour
	offsetMinute
	offsetSecond
	offsetMillisecond
)

type adjustment struct {
	kind    offsetKind
	value   int
	op      operation
	weekday time.Weekday
	month   time.Month
}

type lexer struct {
	input string
	index int
}

func (l *lexer) empty() bool       { return l.index >= len(l.input) }
func (l *lexer) remainder() string { return l.input[l.index:] }

func (l *lexer) skipWhitespace() {
	for l.index < len(l.input) && unicode.IsSpace(rune(l.input[l.index])) {
		l.index++
	}
}

func (l *lexer) matchString(s string) bool {
	if strings.HasPrefix(l.input[l.index:], s) {
		l.index += len(s)
		return true
	}
	return false
}

// matchWord matches s followed by an optional "s".
func (l *lexer) matchWord(s string) bool {
	if l.matchString(s) {
		l.matchString("s")
		return true
	}
	return false
}

func (l *lexer) matchChar(c byte) bool {
	if l.index < len(l.input) && l.input[l.index] == c {
		l.index++
		return true
	}
	return false
}

func (l *lexer) parseInt() (int, error) {
	start := l.index
	if l.index < len(l.input) && l.input[l.index] == '-' {
		l.index++
	}
	for l.index < len(l.input) && l.input[l.index] >= '0' && l.input[l.index] <= '9' {
		l.index++
	}
	n, err := strconv.Atoi(l.input[start:l.index])
	if err != nil {
		l.index = start
		return 0, fmt.Errorf("Was expecting an integer at index %d", start)
	}
	return n, nil
}

func (l *lexer) op() (operation, bool) {
	l.skipWhitespace()
	switch {
	case l.matchChar('+'):
		return opPlus, true
	case l.matchChar('-'):
		return opMinus, true
	}
	return 0, false
}

func (l *lexer) nextOrLast() (operation, bool) {
	l.skipWhitespace()
	switch {
	case l.matchString("next"):
		return opPlus, true
	case l.matchString("last"):
		return opMinus, true
	}
	return 0, false
}

// ops parses (op duration)*.
func (l *lexer) ops(durationType func() (offsetKind, bool)) ([]adjustment, error) {
	var adj []adjustment
	for {
		op, ok := l.op()
		if !ok {
			return adj, nil
		}
		l.skipWhitespace()
		n, err := l.parseInt()
		if err != nil {
			return nil, err
		}
		l.skipWhitespace()
		kind, ok := durationType()
		if !ok {
			return nil, fmt.Errorf("Was expecting a duration type at index %d", l.index)
		}
		adj = append(adj, adjustment{kind: kind, value: n, op: op})
	}
}

func (l *lexer) finish(adj []adjustment) ([]adjustment, error) {
	l.skipWhitespace()
	if !l.empty() {
		return nil, fmt.Errorf("Unexpected characters '%s' at index %d", l.remainder(), l.index)
	}
	return adj, nil
}

func expressionError(err error) error {
	return types.NewEvalError(types.ErrInvalidExpression, "Error parsing expression: "+err.Error())
}

type dateBase int

const (
	dateNow dateBase = iota
	dateToday
	dateYesterday
	dateTomorrow
)

var weekdays = []struct {
	names []string
	day   time.Weekday
}{
	{[]string{"monday", "mon"}, time.Monday},
	{[]string{"tuesday", "tues"}, time.Tuesday},
	{[]string{"wednesday", "wed"}, time.Wednesday},
	{[]string{"thursday", "thurs"}, time.Thursday},
	{[]string{"friday", "fri"}, time.Friday},
	{[]string{"saturday", "sat"}, time.Saturday},
	{[]string{"sunday", "sun"}, time.Sunday},
}

var months = []struct {
	names []string
	month time.Month
}{
	{[]string{"january", "jan"}, time.January},
	{[]string{"february", "feb"}, time.February},
	{[]string{"march", "mar"}, time.March},
	{[]string{"april", "apr"}, time.April},
	{[]string{"may"}, time.May},
	{[]string{"june", "jun"}, time.June},
	{[]string{"july", "jul"}, time.July},
	{[]string{"august", "aug"}, time.August},
	{[]string{"september", "sep"}, time.September},
	{[]string{"october", "oct"}, time.October},
	{[]string{"november", "nov"}, time.November},
	{[]string{"december", "dec"}, time.December},
}

func (l *lexer) dateDurationType() (offsetKind, bool) {
	switch {
	case l.matchWord("day"):
		return offsetDay, true
	case l.matchWord("week"):
		return offsetWeek, true
	case l.matchWord("month"):
		return offsetMonth, true
	case l.matchWord("year"):
		return offsetYear, true
	}
	return 0, false
}

func (l *lexer) dateOffset(op operation) (adjustment, error) {
	l.skipWhitespace()
	switch {
	case l.matchString("day"):
		return adjustment{kind: offsetDay, value: 1, op: op}, nil
	case l.matchString("week"):
		return adjustment{kind: offsetWeek, value: 1, op: op}, nil
	case l.matchString("month"):
		return adjustment{kind: offsetMonth, value: 1, op: op}, nil
	case l.matchString("year"):
		return adjustment{kind: offsetYear, value: 1, op: op}, nil
	case l.matchString("fortnight"):
		return adjustment{kind: offsetWeek, value: 2, op: op}, nil
	}
	for _, wd := range weekdays {
		for _, name := range wd.names {
			if l.matchString(name) {
				return adjustment{kind: offsetWeekday, value: 1, op: op, weekday: wd.day}, nil
			}
		}
	}
	for _, m := range months {
		for _, name := range m.names {
			if l.matchString(name) {
				return adjustment{kind: offsetMonthName, value: 1, op: op, month: m.month}, nil
			}
		}
	}
	return adjustment{}, fmt.Errorf("Was expecting an offset type at index %d", l.index)
}

func parseDateExpression(expression string) (dateBase, []adjustment, error) {
	l := &lexer{input: strings.ToLower(expression)}
	l.skipWhitespace()

	base, hasBase := dateNow, false
	switch {
	case l.matchString("now"):
		base, hasBase = dateNow, true
	case l.matchString("today"):
		base, hasBase = dateToday, true
	case l.matchString("yesterday"):
		base, hasBase = dateYesterday, true
	case l.matchString("tomorrow"):
		base, hasBase = dateTomorrow, true
	}
	if hasBase {
		adj, err := l.ops(l.dateDurationType)
		if err != nil {
			return 0, nil, err
		}
		adj, err = l.finish(adj)
		return base, adj, err
	}

	adj, err := l.ops(l.dateDurationType)
	if err != nil {
		return 0, nil, err
	}
	if len(adj) > 0 {
		adj, err = l.finish(adj)
		return dateNow, adj, err
	}

	if op, ok := l.nextOrLast(); ok {
		first, err := l.dateOffset(op)
		if err != nil {
			return 0, nil, err
		}
		rest, err := l.ops(l.dateDurationType)
		if err != nil {
			return 0, nil, err
		}
		adj, err = l.finish(append([]adjustment{first}, rest...))
		return dateNow, adj, err
	}

	adj, err = l.finish(nil)
	return dateNow, adj, err
}

// ExecuteDateExpression evaluates a date expression relative to base. An
// empty expression returns base unchanged.
func ExecuteDateExpression(base time.Time, expression string) (time.Time, error) {
	if strings.TrimSpace(expression) == "" {
		return base, nil
	}
	db, adjustments, err := parseDateExpression(expression)
	if err != nil {
		return time.Time{}, expressionError(err)
	}
	date := base
	switch db {
	case dateYesterday:
		date = date.AddDate(0, 0, -1)
	case dateTomorrow:
		date = date.AddDate(0, 0, 1)
	}
	for _, a := range adjustments {
		date = applyDateAdjustment(date, a)
	}
	return date, nil
}

func applyDateAdjustment(date time.Time, a adjustment) time.Time {
	sign := 1
	if a.op == opMinus {
		sign = -1
	}
	switch a.kind {
	case offsetDay:
		return date.AddDate(0, 0, sign*a.value)
	case offsetWeek:
		return date.AddDate(0, 0, sign*7*a.value)
	case offsetMonth:
		return addMonths(date, sign*a.value)
	case offsetYear:
		return addMonths(date, sign*12*a.value)
	case offsetWeekday:
		d := date.AddDate(0, 0, sign)
		for d.Weekday() != a.weekday {
			d = d.AddDate(0, 0, sign)
		}
		return d
	case offsetMonthName:
		d := addMonths(date, sign)
		d = time.Date(d.Year(), d.Month(), 1, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
		for d.Month() != a.month {
			d = addMonths(d, sign)
		}
		return d
	}
	return date
}

// addMonths shifts by whole months, clamping the day to the end of the
// target month instead of overflowing into the next one.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	lastDay := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return target.AddDate(0, 0, day-1)
}

type timeBaseKind int

const (
	timeNow timeBaseKind = iota
	timeMidnight
	timeNoon
	timeAm
	timePm
	timeNext
)

type timeBase struct {
	kind timeBaseKind
	hour int
}

func (l *lexer) timeDurationType() (offsetKind, bool) {
	switch {
	case l.matchWord("hour"):
		return offsetHour, true
	case l.matchWord("minute"):
		return offsetMinute, true
	case l.matchWord("second"):
		return offsetSecond, true
	case l.matchWord("millisecond"):
		return offsetMillisecond, true
	}
	return 0, false
}

func (l *lexer) timeBase() (*timeBase, error) {
	l.skipWhitespace()
	if l.index < len(l.input) && l.input[l.index] >= '0' && l.input[l.index] <= '9' {
		hour, err := l.parseInt()
		if err != nil {
			return nil, err
		}
		l.skipWhitespace()
		if !l.matchString("o'clock") {
			return nil, fmt.Errorf("Was expecting a clock hour at index %d", l.index)
		}
		if hour < 1 || hour > 12 {
			return nil, fmt.Errorf("Hour must be between 1 and 12, got %d", hour)
		}
		l.skipWhitespace()
		switch {
		case l.matchString("am"):
			return &timeBase{kind: timeAm, hour: hour}, nil
		case l.matchString("pm"):
			return &timeBase{kind: timePm, hour: hour}, nil
		}
		return &timeBase{kind: timeNext, hour: hour}, nil
	}
	switch {
	case l.matchString("now"):
		return &timeBase{kind: timeNow}, nil
	case l.matchString("midnight"):
		return &timeBase{kind: timeMidnight}, nil
	case l.matchString("noon"):
		return &timeBase{kind: timeNoon}, nil
	}
	return nil, nil
}

func (l *lexer) timeOffset(op operation) (adjustment, error) {
	l.skipWhitespace()
	switch {
	case l.matchString("hour"):
		return adjustment{kind: offsetHour, value: 1, op: op}, nil
	case l.matchString("minute"):
		return adjustment{kind: offsetMinute, value: 1, op: op}, nil
	case l.matchString("second"):
		return adjustment{kind: offsetSecond, value: 1, op: op}, nil
	case l.matchString("millisecond"):
		return adjustment{kind: offsetMillisecond, value: 1, op: op}, nil
	}
	return adjustment{}, fmt.Errorf("Was expecting an offset type at index %d", l.index)
}

func parseTimeExpression(expression string) (timeBase, []adjustment, error) {
	l := &lexer{input: strings.ToLower(expression)}

	base, err := l.timeBase()
	if err != nil {
		return timeBase{}, nil, err
	}
	if base != nil {
		adj, err := l.ops(l.timeDurationType)
		if err != nil {
			return timeBase{}, nil, err
		}
		adj, err = l.finish(adj)
		return *base, adj, err
	}

	adj, err := l.ops(l.timeDurationType)
	if err != nil {
		return timeBase{}, nil, err
	}
	if len(adj) > 0 {
		adj, err = l.finish(adj)
		return timeBase{kind: timeNow}, adj, err
	}

	if op, ok := l.nextOrLast(); ok {
		first, err := l.timeOffset(op)
		if err != nil {
			return timeBase{}, nil, err
		}
		rest, err := l.ops(l.timeDurationType)
		if err != nil {
			return timeBase{}, nil, err
		}
		adj, err = l.finish(append([]adjustment{first}, rest...))
		return timeBase{kind: timeNow}, adj, err
	}

	adj, err = l.finish(nil)
	return timeBase{kind: timeNow}, adj, err
}

// ExecuteTimeExpression evaluates a time expression relative to base. An
// empty expression returns base unchanged.
func ExecuteTimeExpression(base time.Time, expression string) (time.Time, error) {
	if strings.TrimSpace(expression) == "" {
		return base, nil
	}
	tb, adjustments, err := parseTimeExpression(expression)
	if err != nil {
		return time.Time{}, expressionError(err)
	}
	midnight := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, base.Location())
	noon := midnight.Add(12 * time.Hour)
	t := base
	switch tb.kind {
	case timeMidnight:
		t = midnight
	case timeNoon:
		t = noon
	case timeAm:
		t = midnight.Add(time.Duration(tb.hour%12) * time.Hour)
	case timePm:
		t = noon.Add(time.Duration(tb.hour%12) * time.Hour)
	case timeNext:
		if base.Before(noon) {
			t = noon.Add(time.Duration(tb.hour%12) * time.Hour)
		} else {
			t = midnight.Add(time.Duration(tb.hour%12) * time.Hour)
		}
	}
	for _, a := range adjustments {
		d := time.Duration(a.value)
		switch a.kind {
		case offsetHour:
			d *= time.Hour
		case offsetMinute:
			d *= time.Minute
		case offsetSecond:
			d *= time.Second
		case offsetMillisecond:
			d *= time.Millisecond
		}
		if a.op == opMinus {
			d = -d
		}
		t = t.Add(d)
	}
	return t, nil
}

// ExecuteDateTimeExpression evaluates "<date expression> @ <time
// expression>". Either side may be omitted.
func ExecuteDateTimeExpression(base time.Time, expression string) (time.Time, error) {
	if strings.TrimSpace(expression) == "" {
		return base, nil
	}
	datePart, timePart, hasTime := strings.Cut(expression, "@")
	date, err := ExecuteDateExpression(base, datePart)
	if err != nil {
		return time.Time{}, err
	}
	if !hasTime {
		return date, nil
	}
	return ExecuteTimeExpression(date, timePart)
}
