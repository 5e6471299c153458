package reconcile

import "github.com/lgc202/promptlog/llm/schema"

// Reconciler binds a response Shape to how its buffered values (R) and
// streamed chunks (C) are summarized.
type Reconciler[R, C any] struct {
	shape   Shape
	resolve func(R) Result
	fold    func(*Accumulator, C)
}

var (
	Chat = Reconciler[schema.ChatCompletion, schema.ChatCompletionChunk]{
		shape:   ShapeChat,
		resolve: resolveChat,
		fold:    foldChat,
	}
	Completion = Reconciler[schema.Completion, schema.Completion]{
		shape:   ShapeCompletion,
		resolve: resolveCompletion,
		fold:    foldCompletion,
	}
)

func (r Reconciler[R, C]) Shape() Shape { return r.shape }

// Static reconciles a buffered response. resp and err are the provider's
// return values. On error it returns err unchanged and a Future already
// settled with it; otherwise the tagged response and a Future already settled
// with its Result.
func (r Reconciler[R, C]) Static(resp R, err error, feedbackKey string) (Tagged[R], *Future, error) {
	if err != nil {
		return Tagged[R]{FeedbackKey: feedbackKey}, Settled(Result{}, err), err
	}
	return Tagged[R]{Value: resp, FeedbackKey: feedbackKey}, Settled(r.resolve(resp), nil), nil
}

// Stream reconciles a streamed response. src and err are the provider's
// return values. Nothing is read from src until the caller pulls from the
// returned Stream. On error it returns a nil Stream, err unchanged and a
// Future already settled with it.
func (r Reconciler[R, C]) Stream(src Source[C], err error, feedbackKey string) (*Stream[C], *Future, error) {
	if err != nil {
		return nil, Settled(Result{}, err), err
	}
	s := newStream(src, feedbackKey, r.fold)
	return s, s.future, nil
}

// Accumulate folds chunks into a fresh Accumulator, for callers that already
// hold a complete chunk list.
func (r Reconciler[R, C]) Accumulate(chunks ...C) Result {
	var a Accumulator
	for _, c := range chunks {
		r.fold(&a, c)
	}
	return a.Result()
}
