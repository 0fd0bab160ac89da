package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "attrsync", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestSpanHelpersWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), SpanConnectorFetch)
	require.NotNil(t, span)
	defer span.End()

	require.NotPanics(t, func() {
		RecordError(ctx, nil)
		RecordError(ctx, errors.New("resource unavailable"))
	})

	assert.Equal(t, "", TraceID(ctx))
	assert.Equal(t, "", SpanID(ctx))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name string
		key  string
		got  string
		want string
	}{
		{"Resource", AttrResource, Resource("hr").Value.AsString(), "hr"},
		{"Schema", AttrSchema, Schema("phone").Value.AsString(), "phone"},
		{"AnyType", AttrAnyType, AnyType("USER").Value.AsString(), "USER"},
		{"OwnerKey", AttrOwnerKey, OwnerKey("u-1").Value.AsString(), "u-1"},
		{"AccountID", AttrAccountID, AccountID("U123").Value.AsString(), "U123"},
		{"ObjectClass", AttrObjectClass, ObjectClass("__ACCOUNT__").Value.AsString(), "__ACCOUNT__"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}

	assert.Equal(t, int64(3), AttrCountOf(3).Value.AsInt64())
	assert.True(t, CacheHit(true).Value.AsBool())
	assert.True(t, Found(true).Value.AsBool())
	assert.Equal(t, int64(2), Warnings(2).Value.AsInt64())
}

func TestParseProfileTypes(t *testing.T) {
	types, err := parseProfileTypes([]string{"cpu", "inuse_space"})
	require.NoError(t, err)
	assert.Len(t, types, 2)

	_, err = parseProfileTypes([]string{"bogus"})
	assert.Error(t, err)
}

func TestInitProfilingDisabled(t *testing.T) {
	stop, err := InitProfiling(DefaultProfilingConfig())
	require.NoError(t, err)
	assert.NoError(t, stop())
}
