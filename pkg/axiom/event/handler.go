package event

import "context"

// Handler processes a delivered event. The bus stores handlers with set
// semantics, so implementations must be comparable; pointer receivers are,
// plain funcs are not. Adapt funcs with HandlerOf.
type Handler interface {
	Handle(ctx context.Context, evt *Event) error
}

type funcHandler struct {
	fn func(ctx context.Context, evt *Event) error
}

func (h *funcHandler) Handle(ctx context.Context, evt *Event) error {
	return h.fn(ctx, evt)
}

// HandlerOf adapts fn to the Handler interface. Each call yields a distinct
// handler identity; keep the returned value if you intend to unsubscribe.
func HandlerOf(fn func(ctx context.Context, evt *Event) error) Handler {
	return &funcHandler{fn: fn}
}
