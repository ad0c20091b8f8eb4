package analysis

// Outcome is what every stage returns. A degraded outcome still carries a
// usable value (the stage's fallback) plus the reason it was needed.
type Outcome[T any] struct {
	Value    T
	Degraded bool
	Reason   string
}

func Succeed[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

func Degrade[T any](fallback T, reason string) Outcome[T] {
	return Outcome[T]{Value: fallback, Degraded: true, Reason: reason}
}
