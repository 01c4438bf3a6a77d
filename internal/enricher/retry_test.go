/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package enricher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/apperrors"
)

var fastRetry = RetryOptions{
	MaxAttempts:       3,
	InitialBackoff:    time.Millisecond,
	MaxBackoff:        5 * time.Millisecond,
	BackoffMultiplier: 2.0,
}

func TestWithRetry(t *testing.T) {
	transient := &apperrors.TransportError{Service: "elasticsearch", StatusCode: 502, Msg: "bad gateway"}

	tests := []struct {
		name         string
		errs         []error
		wantAttempts int
		wantErr      bool
	}{
		{"success first try", []error{nil}, 1, false},
		{"transport error then success", []error{transient, nil}, 2, false},
		{"transport error exhausts attempts", []error{transient, transient, transient}, 3, true},
		{"schema error not retried", []error{&apperrors.SchemaError{Index: "i", Msg: "missing"}}, 1, true},
		{"format error not retried", []error{&apperrors.GenerationFormatError{Msg: "no JSON object found"}}, 1, true},
		{"plain error not retried", []error{errors.New("boom")}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			got, err := withRetry(context.Background(), zap.NewNop(), fastRetry, func(ctx context.Context) (int, error) {
				err := tt.errs[attempts]
				attempts++
				if err != nil {
					return 0, err
				}
				return 42, nil
			})
			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 42, got)
		})
	}
}

func TestWithRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := withRetry(ctx, zap.NewNop(), fastRetry, func(ctx context.Context) (struct{}, error) {
		attempts++
		return struct{}{}, nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, attempts)
	var cancelled *apperrors.ErrCancelled
	assert.ErrorAs(t, err, &cancelled)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&apperrors.TransportError{Service: "llm", Msg: "timeout"}))
	assert.False(t, isRetryableError(&apperrors.ErrCancelled{Msg: "stop", Err: context.Canceled}))
	assert.False(t, isRetryableError(&apperrors.TransportError{Service: "llm", Msg: "cancelled", Err: context.Canceled}))
	assert.False(t, isRetryableError(&apperrors.SchemaError{Index: "i", Msg: "missing"}))
}
