package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	committed []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestProcessCommitsEvenWhenHandlerFails(t *testing.T) {
	r := &fakeReader{}
	var handled []string
	c := &Consumer{
		reader: r,
		handler: func(ctx context.Context, key, value []byte) error {
			handled = append(handled, string(key))
			if string(key) == "job-2" {
				return errors.New("store unavailable")
			}
			return nil
		},
		logger: newDiscardLogger(),
	}

	ctx := context.Background()
	for i, key := range []string{"job-1", "job-2", "job-3"} {
		c.process(ctx, kafka.Message{Key: []byte(key), Offset: int64(i)})
	}

	require.Equal(t, []string{"job-1", "job-2", "job-3"}, handled)
	require.Equal(t, []int64{0, 1, 2}, r.committed)
}

func TestRunStopsOnCancel(t *testing.T) {
	c := &Consumer{reader: &fakeReader{}, logger: newDiscardLogger()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Run(ctx))
}
