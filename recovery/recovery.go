package recovery

// Strategy decides what a parser component does when it meets malformed input.
type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	case ActionWarn:
		return "warn"
	default:
		return "unknown"
	}
}

type Context interface{ Done() <-chan struct{} }

// Allows reports whether the strategy lets the caller continue past err.
// A nil strategy is strict.
func Allows(s Strategy, ctx Context, err error, loc Location) bool {
	if s == nil {
		return false
	}
	return s.OnError(ctx, err, loc) != ActionFail
}

// IsTolerant reports whether s belongs to the tolerant family of strategies.
func IsTolerant(s Strategy) bool {
	if t, ok := s.(interface{ Tolerant() bool }); ok {
		return t.Tolerant()
	}
	return false
}
