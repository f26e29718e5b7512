package consumer

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	ids []string
	err error
}

func (f *fakeRecorder) Record(ctx context.Context, entityID string) (int64, error) {
	if entityID == "" {
		return 0, apperrors.ErrInvalidInput
	}
	if f.err != nil {
		return 0, f.err
	}
	f.ids = append(f.ids, entityID)
	return 1, nil
}

func TestHandleHeartbeat(t *testing.T) {
	rec := &fakeRecorder{}
	h := HandleHeartbeat(rec)
	ctx := context.Background()

	require.NoError(t, h(ctx, []byte("from-key"), nil))
	require.NoError(t, h(ctx, []byte("ignored"), []byte(`{"entity_id":"from-body"}`)))
	require.NoError(t, h(ctx, []byte("key-wins-on-empty-body"), []byte(`{}`)))
	require.NoError(t, h(ctx, []byte("bad"), []byte(`{`)))
	require.NoError(t, h(ctx, nil, nil))

	require.Equal(t, []string{"from-key", "from-body", "key-wins-on-empty-body"}, rec.ids)
}

func TestHandleHeartbeatStoreFailure(t *testing.T) {
	storeErr := apperrors.Store("recording heartbeat", errors.New("connection refused"))
	h := HandleHeartbeat(&fakeRecorder{err: storeErr})

	err := h(context.Background(), []byte("job-1"), nil)
	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}
