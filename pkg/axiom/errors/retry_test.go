package errors_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	axerrors "github.com/SomeRandomTV/AXIOM/pkg/axiom/errors"
)

// fastRetry keeps test backoffs tiny.
var fastRetry = axerrors.RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
	BackoffFactor:  2.0,
}

func TestWithRetry_SucceedsFirstAttempt(t *testing.T) {
	result := axerrors.WithRetry(fastRetry, func() (int, error) {
		return 42, nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, 42, result.Value)
	assert.Equal(t, 1, result.Attempts)
}

func TestWithRetry_TransientThenSuccess(t *testing.T) {
	attempts := 0
	result := axerrors.WithRetry(fastRetry, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", stderrors.New("database is locked")
		}
		return "done", nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "done", result.Value)
	assert.Equal(t, 3, result.Attempts)
}

func TestWithRetry_PermanentFailsImmediately(t *testing.T) {
	attempts := 0
	result := axerrors.WithRetry(fastRetry, func() (int, error) {
		attempts++
		return 0, stderrors.New("syntax error")
	})

	require.Error(t, result.Err)
	assert.Equal(t, 1, attempts)

	var catErr *axerrors.CategorizedError
	require.ErrorAs(t, result.Err, &catErr)
	assert.Equal(t, axerrors.CategoryPermanent, catErr.Category)
}

func TestWithRetry_ExhaustsTransient(t *testing.T) {
	attempts := 0
	result := axerrors.WithRetry(fastRetry, func() (int, error) {
		attempts++
		return 0, stderrors.New("SQLITE_BUSY")
	})

	require.Error(t, result.Err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, result.Attempts)
}

func TestWithRetry_CustomRetryable(t *testing.T) {
	cfg := fastRetry
	cfg.RetryableFunc = func(error) bool { return false }

	attempts := 0
	result := axerrors.WithRetry(cfg, func() (int, error) {
		attempts++
		return 0, stderrors.New("database is locked")
	})

	require.Error(t, result.Err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryContext_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := axerrors.WithRetryContext(ctx, fastRetry, func(context.Context) (int, error) {
		t.Fatal("fn should not run")
		return 0, nil
	})

	require.Error(t, result.Err)
	assert.Equal(t, 0, result.Attempts)
}

func TestWithRetryContext_CancelledDuringBackoff(t *testing.T) {
	cfg := fastRetry
	cfg.InitialBackoff = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := axerrors.WithRetryContext(ctx, cfg, func(context.Context) (int, error) {
		attempts++
		return 0, stderrors.New("timeout")
	})

	require.Error(t, result.Err)
	assert.Equal(t, 1, attempts)
}

func TestNoRetry(t *testing.T) {
	attempts := 0
	result := axerrors.WithRetry(axerrors.NoRetry, func() (int, error) {
		attempts++
		return 0, stderrors.New("database is locked")
	})

	require.Error(t, result.Err)
	assert.Equal(t, 1, attempts)
}
