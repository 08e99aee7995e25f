package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func blockingBackend() BackendFunc {
	return func(ctx context.Context, model string, p Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
}

func TestInvoke_ReturnsText(t *testing.T) {
	inv := Invoker{Backend: script(reply{text: `{"a":1}`})}
	text, err := inv.Invoke(context.Background(), "m", Prompt{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)
}

func TestInvoke_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	inv := Invoker{Backend: blockingBackend()}
	start := time.Now()
	_, err := inv.Invoke(context.Background(), "m", Prompt{}, 20*time.Millisecond)

	var ae *AttemptError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindTimeout, ae.Kind)
	assert.Less(t, time.Since(start), time.Second)
}

func TestInvoke_Canceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Invoker{Backend: blockingBackend()}.Invoke(ctx, "m", Prompt{}, time.Second)

	var ae *AttemptError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindCanceled, ae.Kind)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestInvoke_Classification(t *testing.T) {
	tests := []struct {
		name   string
		reply  reply
		kind   AttemptKind
		status int
	}{
		{"status error", reply{err: statusErr(503)}, KindTransport, 503},
		{"wrapped status error", reply{err: errors.Join(errors.New("call"), statusErr(429))}, KindTransport, 429},
		{"plain error", reply{err: errors.New("connection refused")}, KindTransport, 0},
		{"empty text", reply{text: "  \n\t"}, KindEmptyResponse, 0},
		{"empty envelope", reply{err: ErrEmptyResponse}, KindEmptyResponse, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Invoker{Backend: script(tt.reply)}.Invoke(context.Background(), "m", Prompt{}, time.Second)
			var ae *AttemptError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.kind, ae.Kind)
			assert.Equal(t, tt.status, ae.Status)
		})
	}
}
