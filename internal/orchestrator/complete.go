package orchestrator

import (
	"context"
	"time"

	"github.com/ShayCichocki/heavysql/internal/api"
)

// completeWithin makes one model call bounded by timeout. It returns as soon
// as the deadline passes or ctx is cancelled, even if the client ignores ctx.
func completeWithin(ctx context.Context, client api.Completer, req api.CompletionRequest, timeout time.Duration) (string, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type reply struct {
		text string
		err  error
	}
	replyCh := make(chan reply, 1)
	go func() {
		text, err := client.Complete(callCtx, req)
		replyCh <- reply{text: text, err: err}
	}()

	select {
	case r := <-replyCh:
		return r.text, r.err
	case <-callCtx.Done():
		return "", callCtx.Err()
	}
}
