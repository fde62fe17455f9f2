package screenrelay_test

import (
	"errors"
	"testing"
	"time"

	screenrelay "github.com/e7canasta/orion-care-sensor/modules/screen-relay"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(t *testing.T, e *screenrelay.ContentEnumerator) (*screenrelay.Snapshot, error) {
	t.Helper()
	type result struct {
		snap *screenrelay.Snapshot
		err  error
	}
	ch := make(chan result, 2)
	e.RequestSnapshot(func(s *screenrelay.Snapshot, err error) { ch <- result{s, err} })

	select {
	case r := <-ch:
		select {
		case <-ch:
			t.Fatal("completion invoked twice")
		case <-time.After(20 * time.Millisecond):
		}
		return r.snap, r.err
	case <-time.After(2 * time.Second):
		t.Fatal("completion not invoked")
		return nil, nil
	}
}

func TestContentEnumerator_Snapshot(t *testing.T) {
	c := newContent()
	svc := &fake.Service{Content: c.Content}
	e := screenrelay.NewContentEnumerator(svc)

	snap, err := request(t, e)
	require.NoError(t, err)
	assert.Len(t, snap.Displays, 1)
	assert.Len(t, snap.Windows, 1)
	assert.Len(t, snap.Applications, 3)

	d, err := snap.Display(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), d.ID)

	_, err = snap.Display(1)
	assert.ErrorIs(t, err, screenrelay.ErrContentUnavailable)

	c.release(t)
	assert.Zero(t, c.freed.Load(), "snapshot holds its own references")

	snap.Release()
	snap.Release()
	assert.Equal(t, int32(handles), c.freed.Load())
}

func TestContentEnumerator_NeverCaches(t *testing.T) {
	c := newContent()
	defer c.release(t)
	svc := &fake.Service{Content: c.Content}
	e := screenrelay.NewContentEnumerator(svc)

	for i := 0; i < 3; i++ {
		snap, err := request(t, e)
		require.NoError(t, err)
		snap.Release()
	}
	assert.Equal(t, int32(3), svc.EnumerateCalls.Load())
}

func TestContentEnumerator_Error(t *testing.T) {
	denied := errors.New("not authorized")
	e := screenrelay.NewContentEnumerator(&fake.Service{ContentErr: denied})

	snap, err := request(t, e)

	assert.Nil(t, snap)
	assert.ErrorIs(t, err, screenrelay.ErrContentUnavailable)
	assert.ErrorIs(t, err, denied)
}
