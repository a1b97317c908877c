package future

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	platformerrors "github.com/metastage/metastage/kit/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_ResolveOnce(t *testing.T) {
	f, resolve := New[int]()

	_, _, ok := f.Result()
	require.False(t, ok)

	resolve(1, nil)
	resolve(2, errors.New("ignored"))

	v, err, ok := f.Result()
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestGo_PanicFailsFuture(t *testing.T) {
	var m map[string]int
	f := Go(func() (int, error) {
		m["boom"] = 1
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := f.Await(ctx)
	require.Error(t, err)
	assert.Equal(t, platformerrors.EInternal, platformerrors.ErrorCode(err))
	assert.Contains(t, err.Error(), "panic: assignment to entry in nil map")
}

func TestFuture_AwaitFromManyGoroutines(t *testing.T) {
	f := Go(func() (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "done", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.Await(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "done", v)
		}()
	}
	wg.Wait()
}

func TestFuture_AwaitContextCancelled(t *testing.T) {
	f, _ := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThen(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		in      *Future[int]
		want    string
		wantErr error
	}{
		{
			name: "success maps value",
			in:   Completed(21),
			want: "42",
		},
		{
			name:    "failure passes through",
			in:      Failed[int](boom),
			wantErr: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			out := Then(tt.in, func(v int) (string, error) {
				called = true
				if v*2 == 42 {
					return "42", nil
				}
				return "", nil
			})
			got, err := out.Await(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.False(t, called)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCompose(t *testing.T) {
	out := Compose(Completed(2), func(v int) *Future[int] {
		return Go(func() (int, error) { return v + 1, nil })
	})
	got, err := out.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, got)

	boom := errors.New("boom")
	out = Compose(Completed(2), func(int) *Future[int] { return Failed[int](boom) })
	_, err = out.Await(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestAll(t *testing.T) {
	got, err := All(Completed(1), Go(func() (int, error) { return 2, nil }), Completed(3)).
		Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, got)

	boom := errors.New("boom")
	_, err = All(Completed(1), Failed[int](boom)).Await(context.Background())
	require.ErrorIs(t, err, boom)

	got, err = All[int]().Await(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}
