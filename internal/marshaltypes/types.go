// Package marshaltypes holds the small set of value types shared between
// the registry, marshaller, codec, and wire packages, kept separate to
// avoid import cycles between them.
package marshaltypes

// Level is a log severity. The builtin levels ride inside dictionary
// entries, not inside each event (spec.md §3).
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the canonical textual name used in dictionaries and
// decoder output.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "LEVEL" // overridden by a registered custom level name
	}
}

// ArgType tags the type of one positional logging argument.
type ArgType uint8

const (
	ArgNone ArgType = iota
	ArgInt32
	ArgInt64
	ArgUint32
	ArgUint64
	ArgDouble
	ArgString
	ArgPointer
)

// IsString reports whether t is the string argument type (strings are
// handled in codec pass 2, never compressed alongside integers).
func (t ArgType) IsString() bool { return t == ArgString }

// IsSigned reports whether t is a signed integer type.
func (t ArgType) IsSigned() bool { return t == ArgInt32 || t == ArgInt64 }

// IsUnsigned reports whether t is an unsigned integer or pointer type.
func (t ArgType) IsUnsigned() bool { return t == ArgUint32 || t == ArgUint64 || t == ArgPointer }

// IsDouble reports whether t is the double type.
func (t ArgType) IsDouble() bool { return t == ArgDouble }
