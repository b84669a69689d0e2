// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBoolEnv(t *testing.T) {
	const key = "VMPROF_TEST_BOOL"

	t.Run("unset", func(t *testing.T) {
		assert.True(t, BoolEnv(key, true))
	})

	t.Run("set", func(t *testing.T) {
		t.Setenv(key, "false")
		assert.False(t, BoolEnv(key, true))
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv(key, "nope")
		assert.True(t, BoolEnv(key, true))
	})
}

func TestDurationEnv(t *testing.T) {
	const key = "VMPROF_TEST_DURATION"

	t.Run("unset", func(t *testing.T) {
		assert.Equal(t, time.Second, DurationEnv(key, time.Second))
	})

	t.Run("set", func(t *testing.T) {
		t.Setenv(key, "5ms")
		assert.Equal(t, 5*time.Millisecond, DurationEnv(key, time.Second))
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv(key, "5")
		assert.Equal(t, time.Second, DurationEnv(key, time.Second))
	})
}

func TestStringEnv(t *testing.T) {
	const key = "VMPROF_TEST_STRING"
	assert.Equal(t, "def", StringEnv(key, "def"))
	t.Setenv(key, "")
	assert.Equal(t, "def", StringEnv(key, "def"))
	t.Setenv(key, "value")
	assert.Equal(t, "value", StringEnv(key, "def"))
}
