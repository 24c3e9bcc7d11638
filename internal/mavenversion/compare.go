package mavenversion

import (
	"strings"
	"unicode"
)

var qualifiers = []string{"alpha", "beta", "milestone", "rc", "snapshot", "", "sp"}

var qualifierAliases = map[string]string{
	"ga":      "",
	"final":   "",
	"release": "",
	"cr":      "rc",
}

// releaseIndex is the comparable form of the empty (release) qualifier.
const releaseIndex = "5"

type item interface {
	// compare returns <0, 0 or >0. other may be nil.
	compare(other item) int
	isNull() bool
}

type intItem string

func newIntItem(digits string) intItem {
	trimmed := strings.TrimLeft(digits, "0")

	return intItem(trimmed)
}

func (i intItem) isNull() bool { return i == "" }

func (i intItem) compare(other item) int {
	switch o := other.(type) {
	case nil:
		if i.isNull() {
			return 0
		}

		return 1
	case intItem:
		if len(i) != len(o) {
			return sign(len(i) - len(o))
		}

		return strings.Compare(string(i), string(o))
	default:
		return 1
	}
}

type stringItem string

func newStringItem(value string, followedByDigit bool) stringItem {
	if followedByDigit && len(value) == 1 {
		switch value {
		case "a":
			value = "alpha"
		case "b":
			value = "beta"
		case "m":
			value = "milestone"
		}
	}

	if alias, ok := qualifierAliases[value]; ok {
		value = alias
	}

	return stringItem(value)
}

func comparableQualifier(q string) string {
	for i, known := range qualifiers {
		if known == q {
			return string(rune('0' + i))
		}
	}

	return string(rune('0'+len(qualifiers))) + "-" + q
}

func (s stringItem) isNull() bool { return comparableQualifier(string(s)) == releaseIndex }

func (s stringItem) compare(other item) int {
	switch o := other.(type) {
	case nil:
		return strings.Compare(comparableQualifier(string(s)), releaseIndex)
	case stringItem:
		return strings.Compare(comparableQualifier(string(s)), comparableQualifier(string(o)))
	default:
		return -1
	}
}

type listItem struct {
	items []item
}

func (l *listItem) isNull() bool { return len(l.items) == 0 }

func (l *listItem) normalize() {
	for i := len(l.items) - 1; i >= 0; i-- {
		last := l.items[i]

		if last.isNull() {
			l.items = append(l.items[:i], l.items[i+1:]...)

			continue
		}

		if _, ok := last.(*listItem); !ok {
			break
		}
	}
}

func (l *listItem) compare(other item) int {
	switch o := other.(type) {
	case nil:
		if len(l.items) == 0 {
			return 0
		}

		return l.items[0].compare(nil)
	case intItem:
		return -1
	case stringItem:
		return 1
	case *listItem:
		for i := 0; i < len(l.items) || i < len(o.items); i++ {
			var left, right item
			if i < len(l.items) {
				left = l.items[i]
			}

			if i < len(o.items) {
				right = o.items[i]
			}

			var result int
			if left == nil {
				result = -right.compare(nil)
			} else {
				result = left.compare(right)
			}

			if result != 0 {
				return result
			}
		}

		return 0
	default:
		return 0
	}
}

func parse(version string) *listItem {
	version = strings.ToLower(version)

	root := new(listItem)
	list := root
	stack := []*listItem{root}

	var (
		isDigit bool
		start   int
	)

	parseItem := func(digit bool, buf string) item {
		if digit {
			return newIntItem(buf)
		}

		return newStringItem(buf, false)
	}

	push := func() {
		next := new(listItem)
		list.items = append(list.items, next)
		list = next
		stack = append(stack, next)
	}

	runes := []rune(version)
	for i, c := range runes {
		switch {
		case c == '.':
			if i == start {
				list.items = append(list.items, intItem(""))
			} else {
				list.items = append(list.items, parseItem(isDigit, string(runes[start:i])))
			}

			start = i + 1
		case c == '-':
			if i == start {
				list.items = append(list.items, intItem(""))
			} else {
				list.items = append(list.items, parseItem(isDigit, string(runes[start:i])))
			}

			start = i + 1

			push()
		case unicode.IsDigit(c):
			if !isDigit && i > start {
				list.items = append(list.items, newStringItem(string(runes[start:i]), true))
				start = i

				push()
			}

			isDigit = true
		default:
			if isDigit && i > start {
				list.items = append(list.items, parseItem(true, string(runes[start:i])))
				start = i

				push()
			}

			isDigit = false
		}
	}

	if len(runes) > start {
		list.items = append(list.items, parseItem(isDigit, string(runes[start:])))
	}

	for i := len(stack) - 1; i >= 0; i-- {
		stack[i].normalize()
	}

	return root
}

// Compare returns -1, 0 or 1 depending on whether a sorts before, equal to
// or after b.
func Compare(a, b string) int {
	return sign(parse(a).compare(parse(b)))
}

// Max returns the highest version. Among equal versions the first one wins.
// It returns an empty string for an empty input.
func Max(versions []string) string {
	var highest string

	for i, v := range versions {
		if i == 0 || Compare(v, highest) > 0 {
			highest = v
		}
	}

	return highest
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
