// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	t.Run("all services initialize successfully", func(t *testing.T) {
		svc1 := &mockInitializer{mockService: mockService{name: "svc1"}}
		svc2 := &mockInitializer{mockService: mockService{name: "svc2"}}
		svc3 := &mockService{name: "non-initializer"}

		err := Init(nil, []Service{svc1, svc2, svc3})

		assert.NoError(t, err)
		assert.Equal(t, 1, svc1.initCount)
		assert.Equal(t, 1, svc2.initCount)
	})

	t.Run("failure shuts down initialized services in reverse order", func(t *testing.T) {
		rec := &recorder{}
		initErr := errors.New("init error")

		svc1 := &mockInitShutdownService{mockShutdowner: mockShutdowner{mockService: mockService{name: "svc1", rec: rec}}}
		svc2 := &mockInitShutdownService{mockShutdowner: mockShutdowner{mockService: mockService{name: "svc2", rec: rec}}}
		svc3 := &mockInitShutdownService{
			mockShutdowner: mockShutdowner{mockService: mockService{name: "svc3", rec: rec}},
			initFn:         func() error { return initErr },
		}
		svc4 := &mockInitShutdownService{mockShutdowner: mockShutdowner{mockService: mockService{name: "svc4", rec: rec}}}

		err := Init(nil, []Service{svc1, svc2, svc3, svc4})

		assert.ErrorIs(t, err, initErr)
		assert.ErrorContains(t, err, "failed to initialize service svc3")
		assert.Equal(t, []string{
			"init:svc1", "init:svc2", "init:svc3",
			"shutdown:svc2", "shutdown:svc1",
		}, rec.Events())
		assert.Equal(t, 0, svc3.shutdownCount, "failed service is not shut down")
		assert.Equal(t, 0, svc4.initCount)
	})

	t.Run("shutdown error does not replace init error", func(t *testing.T) {
		initErr := errors.New("init error")
		shutdownErr := errors.New("shutdown error")

		svc1 := &mockInitShutdownService{
			mockShutdowner: mockShutdowner{
				mockService: mockService{name: "svc1"},
				shutdownFn:  func() error { return shutdownErr },
			},
		}
		svc2 := &mockInitShutdownService{
			mockShutdowner: mockShutdowner{mockService: mockService{name: "svc2"}},
			initFn:         func() error { return initErr },
		}

		err := Init(nil, []Service{svc1, svc2})

		assert.ErrorIs(t, err, initErr)
		assert.NotErrorIs(t, err, shutdownErr)
		assert.Equal(t, 1, svc1.shutdownCount)
	})

	t.Run("non-shutdowner service is skipped during cleanup", func(t *testing.T) {
		initErr := errors.New("init error")
		svc1 := &mockInitializer{mockService: mockService{name: "svc1"}}
		svc2 := &mockInitializer{
			mockService: mockService{name: "svc2"},
			initFn:      func() error { return initErr },
		}

		err := Init(nil, []Service{svc1, svc2})
		assert.ErrorIs(t, err, initErr)
		assert.Equal(t, 1, svc1.initCount)
	})

	t.Run("empty service list completes successfully", func(t *testing.T) {
		assert.NoError(t, Init(nil, []Service{}))
	})
}
