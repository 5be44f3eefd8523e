package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewLocal()

	require.NoError(t, c.Set(ctx, "spec_sheet_1", []byte(`{"file_path":"ficha_tecnica_1.pdf"}`), 0))

	value, ok, err := c.Get(ctx, "spec_sheet_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"file_path":"ficha_tecnica_1.pdf"}`, string(value))
}

func TestLocal_GetMissingKey(t *testing.T) {
	ctx := context.Background()
	c := NewLocal()

	value, ok, err := c.Get(ctx, "spec_sheet_404")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestLocal_EmptyKeyRejected(t *testing.T) {
	ctx := context.Background()
	c := NewLocal()

	_, _, err := c.Get(ctx, "")
	assert.Error(t, err)

	assert.Error(t, c.Set(ctx, "", nil, 0))
	assert.Error(t, c.Delete(ctx, ""))

	_, err = c.SetNX(ctx, "", nil, 0)
	assert.Error(t, err)
}

func TestLocal_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewLocalWithClock(func() time.Time { return now })

	require.NoError(t, c.Set(ctx, "spec_sheet_9", []byte(`{}`), time.Minute))

	_, ok, err := c.Get(ctx, "spec_sheet_9")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)

	_, ok, err = c.Get(ctx, "spec_sheet_9")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired entry should be evicted on read")
}

func TestLocal_SetNX(t *testing.T) {
	ctx := context.Background()
	c := NewLocal()

	set, err := c.SetNX(ctx, "spec_sheet_5", []byte(`first`), 0)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = c.SetNX(ctx, "spec_sheet_5", []byte(`second`), 0)
	require.NoError(t, err)
	assert.False(t, set)

	value, ok, err := c.Get(ctx, "spec_sheet_5")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`first`), value)
}

func TestLocal_SetNXReplacesExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewLocalWithClock(func() time.Time { return now })

	set, err := c.SetNX(ctx, "spec_sheet_7", []byte(`old`), time.Minute)
	require.NoError(t, err)
	require.True(t, set)

	now = now.Add(2 * time.Minute)

	set, err = c.SetNX(ctx, "spec_sheet_7", []byte(`new`), time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	value, ok, err := c.Get(ctx, "spec_sheet_7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`new`), value)
}

func TestLocal_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewLocal()

	require.NoError(t, c.Set(ctx, "spec_sheet_2", []byte(`{}`), 0))
	require.NoError(t, c.Delete(ctx, "spec_sheet_2"))

	_, ok, err := c.Get(ctx, "spec_sheet_2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocal_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewLocal()

	require.NoError(t, c.Set(ctx, "spec_sheet_3", []byte(`abc`), 0))

	value, _, err := c.Get(ctx, "spec_sheet_3")
	require.NoError(t, err)
	value[0] = 'x'

	again, _, err := c.Get(ctx, "spec_sheet_3")
	require.NoError(t, err)
	assert.Equal(t, []byte(`abc`), again)
}
