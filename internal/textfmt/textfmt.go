// Package textfmt implements the small printf subset used in two places:
// TEXT-mode message substitution (a site's own format string, e.g.
// "Processing item %d") and the decoder CLI's line pattern (tokens %t
// %T %r %l %f %L %m %%, default "[%t] [%l] [%f:%L] %m").
//
// Per spec.md §9 ("Maintain the rule that the tag list is derived at
// compile time... not from parsing the format string at run time"),
// argument *type* always comes from the site's registered ArgTypes, not
// from the conversion letter written in the format string — the letter
// and any flags/width only affect presentation, the same way a %d next
// to an already-typed int64 value doesn't change what value gets
// printed, only how.
//
// Built fresh for this package: no example repo carries a printf-subset
// engine, so the outer token scanner is hand-rolled here and delegates
// all actual numeric/string rendering to the standard library's fmt,
// which already implements flag/width semantics correctly.
package textfmt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nanolog/nanolog/internal/marshaltypes"
)

// ErrMissingArgument is returned when the format string contains more
// non-%% conversions than there are supplied values.
var ErrMissingArgument = errors.New("textfmt: format string references more arguments than were supplied")

// Substitute renders format by walking it left to right, copying literal
// text through, expanding "%%" to a literal percent, and replacing every
// other "%<flags><width><conv>" run with the next value in values,
// formatted according to its ArgType in argTypes (not according to
// <conv>, which spec.md §9 treats as presentation only).
func Substitute(format string, argTypes []marshaltypes.ArgType, values []any) (string, error) {
	var out strings.Builder
	argIdx := 0

	i := 0
	for i < len(format) {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			out.WriteByte('%')
			i += 2
			continue
		}

		spec, consumed := scanSpec(format[i:])
		i += consumed

		if argIdx >= len(argTypes) || argIdx >= len(values) {
			return out.String(), ErrMissingArgument
		}
		t := argTypes[argIdx]
		v := values[argIdx]
		argIdx++

		out.WriteString(render(spec, t, v))
	}
	return out.String(), nil
}

// spec is one parsed "%<flags><width><conv>" run.
type spec struct {
	flags string // subset of "-0+ #" in the order they appeared
	width string // decimal digits, empty if unspecified
	conv  byte   // d, l, u, f, s, or p (informational only — see package doc)
}

// scanSpec parses the specifier starting at s[0]=='%' and returns it
// plus the number of bytes consumed, including the leading '%'.
func scanSpec(s string) (spec, int) {
	i := 1
	var sp spec
	for i < len(s) && strings.IndexByte("-0+ #", s[i]) >= 0 {
		sp.flags += string(s[i])
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	sp.width = s[start:i]
	if i < len(s) {
		sp.conv = s[i]
		i++
	}
	return sp, i
}

// render formats v (of type t) using spec's flags/width, choosing the
// underlying fmt verb from t rather than from spec.conv.
func render(sp spec, t marshaltypes.ArgType, v any) string {
	verbPrefix := "%" + sp.flags + sp.width
	switch {
	case t.IsSigned():
		return fmt.Sprintf(verbPrefix+"d", v)
	case t.IsUnsigned() && t != marshaltypes.ArgPointer:
		return fmt.Sprintf(verbPrefix+"d", v)
	case t == marshaltypes.ArgPointer:
		return fmt.Sprintf("0x"+verbPrefix+"x", v)
	case t.IsDouble():
		return fmt.Sprintf(verbPrefix+"f", v)
	case t.IsString():
		return fmt.Sprintf(verbPrefix+"s", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Line is the decoder CLI's per-entry rendering context, substituted
// into a line pattern using tokens %t %T %r %l %f %L %m %% (spec.md
// §6's decoder CLI section).
type Line struct {
	AbsoluteTime string // %t: formatted wall-clock time
	RawTicks     uint64 // %T: the entry's raw timestamp field
	RelativeTicks uint64 // %r: ticks elapsed since the file's start_ticks
	Level        string // %l
	Filename     string // %f
	LineNo       uint32 // %L
	Message      string // %m: the site's format string after Substitute
}

// FormatLine expands pattern against l.
func FormatLine(pattern string, l Line) string {
	var out strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		if c != '%' || i+1 >= len(pattern) {
			out.WriteByte(c)
			i++
			continue
		}
		switch pattern[i+1] {
		case 't':
			out.WriteString(l.AbsoluteTime)
		case 'T':
			fmt.Fprintf(&out, "%d", l.RawTicks)
		case 'r':
			fmt.Fprintf(&out, "%d", l.RelativeTicks)
		case 'l':
			out.WriteString(l.Level)
		case 'f':
			out.WriteString(l.Filename)
		case 'L':
			fmt.Fprintf(&out, "%d", l.LineNo)
		case 'm':
			out.WriteString(l.Message)
		case '%':
			out.WriteByte('%')
		default:
			out.WriteByte('%')
			out.WriteByte(pattern[i+1])
		}
		i += 2
	}
	return out.String()
}

// DefaultPattern is the decoder CLI's default line pattern (spec.md §6).
const DefaultPattern = "[%t] [%l] [%f:%L] %m"
