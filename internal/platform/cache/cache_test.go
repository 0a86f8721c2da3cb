package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

func TestFetchReturnsCachedValue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, time.Minute)

	mock.ExpectGet("policies:org-1:gen").SetVal("3")
	mock.ExpectGet("policies:org-1@3").SetVal(`[{"id":"p1","code":"CL"}]`)

	got, err := Fetch(context.Background(), c, "policies:org-1", func(context.Context) ([]item, error) {
		t.Fatal("loader must not run on a hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "p1", Code: "CL"}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchLoadsAndStoresOnMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, time.Minute)

	mock.ExpectGet("policies:org-1:gen").RedisNil()
	mock.ExpectGet("policies:org-1@0").RedisNil()
	mock.ExpectSet("policies:org-1@0", []byte(`[{"id":"p2","code":"SL"}]`), time.Minute).SetVal("OK")

	got, err := Fetch(context.Background(), c, "policies:org-1", func(context.Context) ([]item, error) {
		return []item{{ID: "p2", Code: "SL"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "SL", got[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchDoesNotCacheLoaderErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, time.Minute)

	mock.ExpectGet("k:gen").RedisNil()
	mock.ExpectGet("k@0").RedisNil()
	boom := errors.New("boom")

	_, err := Fetch(context.Background(), c, "k", func(context.Context) ([]item, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilCacheCallsLoader(t *testing.T) {
	var c *Cache
	got, err := Fetch(context.Background(), c, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	c.Invalidate(context.Background(), "k")
}

func TestInvalidateBumpsGeneration(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, time.Minute)

	mock.ExpectIncr("a:gen").SetVal(1)
	mock.ExpectIncr("b:gen").SetVal(4)
	c.Invalidate(context.Background(), "a", "b")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A load that read the old generation may finish after the writer
// invalidates; its value must not be served afterwards.
func TestStaleLoadAfterInvalidateIsNotServed(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, time.Minute)
	ctx := context.Background()

	mock.ExpectGet("policies:org-1:gen").SetVal("1")
	mock.ExpectGet("policies:org-1@1").RedisNil()
	mock.ExpectIncr("policies:org-1:gen").SetVal(2)
	mock.ExpectSet("policies:org-1@1", []byte(`[{"id":"p1","code":"CL"}]`), time.Minute).SetVal("OK")

	stale, err := Fetch(ctx, c, "policies:org-1", func(context.Context) ([]item, error) {
		c.Invalidate(ctx, "policies:org-1")
		return []item{{ID: "p1", Code: "CL"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "CL", stale[0].Code)

	mock.ExpectGet("policies:org-1:gen").SetVal("2")
	mock.ExpectGet("policies:org-1@2").RedisNil()
	mock.ExpectSet("policies:org-1@2", []byte(`[{"id":"p1","code":"PL"}]`), time.Minute).SetVal("OK")

	fresh, err := Fetch(ctx, c, "policies:org-1", func(context.Context) ([]item, error) {
		return []item{{ID: "p1", Code: "PL"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "PL", fresh[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
