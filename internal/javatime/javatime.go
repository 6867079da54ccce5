// internal/javatime/javatime.go

// Package javatime translates Java DateTimeFormatter patterns (as stored in
// contract files) into Go time layouts.
package javatime

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

/*
 * Pattern letters are consumed in runs ("yyyy", "MM"). Each run maps to the
 * closest Go layout element:
 *
 *   y/u  yy -> 06, otherwise 2006     M/L  1 -> 1, 01, Jan, January
 *   d    2, 02                        D    002
 *   H/k  15                           h/K  3, 03
 *   m    4, 04                        s    5, 05
 *   S    fractional digits after "."  a    PM
 *   E    Mon, Monday                  z    MST
 *   Z    -0700 (ZZZZZ -07:00)         X/x  Z07, Z0700, Z07:00 / -07, -0700, -07:00
 *
 * Quoted text ('T') is literal and '' is a single quote. Any other letter is
 * rejected so a pattern never silently matches the wrong shape.
 */

var layoutCache sync.Map // pattern -> string

// Layout converts a Java date/time pattern into a Go layout.
func Layout(pattern string) (string, error) {
	if cached, ok := layoutCache.Load(pattern); ok {
		return cached.(string), nil
	}
	layout, err := convert(pattern)
	if err != nil {
		return "", err
	}
	layoutCache.Store(pattern, layout)
	return layout, nil
}

// Parse parses value using a Java pattern.
func Parse(pattern, value string) (time.Time, error) {
	layout, err := Layout(pattern)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("Unable to parse the date: %s", value)
	}
	return t, nil
}

// Format renders t using a Java pattern.
func Format(pattern string, t time.Time) (string, error) {
	layout, err := Layout(pattern)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}

func convert(pattern string) (string, error) {
	runes := []rune(pattern)
	var b strings.Builder
	for i := 0; i < len(runes); {
		c := runes[i]
		if c == '\'' {
			if i+1 < len(runes) && runes[i+1] == '\'' {
				b.WriteRune('\'')
				i += 2
				continue
			}
			end := i + 1
			for end < len(runes) && runes[end] != '\'' {
				end++
			}
			if end >= len(runes) {
				return "", fmt.Errorf("unterminated quote in date pattern %q", pattern)
			}
			b.WriteString(string(runes[i+1 : end]))
			i = end + 1
			continue
		}
		if !isLetter(c) {
			b.WriteRune(c)
			i++
			continue
		}
		n := 1
		for i+n < len(runes) && runes[i+n] == c {
			n++
		}
		elem, err := element(c, n, i > 0 && runes[i-1] == '.')
		if err != nil {
			return "", fmt.Errorf("date pattern %q: %w", pattern, err)
		}
		b.WriteString(elem)
		i += n
	}
	return b.String(), nil
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func element(c rune, n int, afterDot bool) (string, error) {
	switch c {
	case 'y', 'u':
		if n == 2 {
			return "06", nil
		}
		return "2006", nil
	case 'M', 'L':
		switch n {
		case 1:
			return "1", nil
		case 2:
			return "01", nil
		case 3:
			return "Jan", nil
		default:
			return "January", nil
		}
	case 'd':
		if n == 1 {
			return "2", nil
		}
		return "02", nil
	case 'D':
		return "002", nil
	case 'H', 'k':
		return "15", nil
	case 'h', 'K':
		if n == 1 {
			return "3", nil
		}
		return "03", nil
	case 'm':
		if n == 1 {
			return "4", nil
		}
		return "04", nil
	case 's':
		if n == 1 {
			return "5", nil
		}
		return "05", nil
	case 'S':
		if !afterDot {
			return "", fmt.Errorf("fraction of second must follow a '.'")
		}
		return strings.Repeat("0", n), nil
	case 'a':
		return "PM", nil
	case 'E':
		if n >= 4 {
			return "Monday", nil
		}
		return "Mon", nil
	case 'z':
		return "MST", nil
	case 'Z':
		if n >= 4 {
			return "-07:00", nil
		}
		return "-0700", nil
	case 'X':
		switch n {
		case 1:
			return "Z07", nil
		case 2:
			return "Z0700", nil
		default:
			return "Z07:00", nil
		}
	case 'x':
		switch n {
		case 1:
			return "-07", nil
		case 2:
			return "-0700", nil
		default:
			return "-07:00", nil
		}
	}
	return "", fmt.Errorf("unsupported pattern letter '%c'", c)
}
