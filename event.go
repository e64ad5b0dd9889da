package vplay

// Event is the unit carried on every queue between pipeline stages. Once an
// event with EndOfStream set was sent on a queue, no more data follows.
type Event[T any] struct {
	Data        T
	EndOfStream bool
}

func Data[T any](v T) Event[T] {
	return Event[T]{Data: v}
}

func EndOfStream[T any]() Event[T] {
	return Event[T]{EndOfStream: true}
}
