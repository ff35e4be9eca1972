package xfault_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omeyang/xcachekit/pkg/resilience/xfault"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		kind        xfault.Kind
		severity    xfault.Severity
		recoverable bool
	}{
		{"quota", errors.New("storage quota exceeded"), xfault.KindStorage, xfault.SeverityHigh, false},
		{"closed", errors.New("xcache: cache closed"), xfault.KindStorage, xfault.SeverityHigh, false},
		{"timeout", errors.New("network timeout"), xfault.KindNetwork, xfault.SeverityMedium, true},
		{"refused", errors.New("dial tcp: Connection Refused"), xfault.KindNetwork, xfault.SeverityMedium, true},
		{"deadline", fmt.Errorf("load: %w", context.DeadlineExceeded), xfault.KindNetwork, xfault.SeverityMedium, true},
		{"net_error", &net.DNSError{Err: "no such host", Name: "x"}, xfault.KindNetwork, xfault.SeverityMedium, true},
		{"json", errors.New("JSON: unexpected end"), xfault.KindSerialization, xfault.SeverityMedium, true},
		{"marshal", errors.New("cannot unmarshal value"), xfault.KindSerialization, xfault.SeverityMedium, true},
		{"validation", errors.New("xcache: empty key"), xfault.KindValidation, xfault.SeverityLow, true},
		{"invalid", errors.New("invalid ttl"), xfault.KindValidation, xfault.SeverityLow, true},
		{"unknown", errors.New("something odd"), xfault.KindUnknown, xfault.SeverityMedium, true},
		{"nil", nil, xfault.KindUnknown, xfault.SeverityMedium, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := xfault.Classify(tt.err)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.severity, c.Severity)
			assert.Equal(t, tt.recoverable, c.Recoverable)
			if tt.err != nil {
				assert.Equal(t, tt.recoverable, xfault.IsRecoverable(tt.err))
			}
		})
	}
}

func TestClassify_KeepsHandledKind(t *testing.T) {
	fe := &xfault.Error{Kind: xfault.KindStorage, Severity: xfault.SeverityCritical, Err: errors.New("network")}
	c := xfault.Classify(fmt.Errorf("wrapped: %w", fe))
	assert.Equal(t, xfault.KindStorage, c.Kind)
	assert.Equal(t, xfault.SeverityCritical, c.Severity)
	assert.False(t, c.Recoverable)
}

func TestClassificationOf(t *testing.T) {
	assert.False(t, xfault.ClassificationOf(xfault.KindStorage).Recoverable)
	assert.Equal(t, xfault.KindUnknown, xfault.ClassificationOf("Bogus").Kind)
}

func TestError_Format(t *testing.T) {
	base := errors.New("boom")
	fe := &xfault.Error{Kind: xfault.KindNetwork, Op: "get", Key: "user:1", Err: base, Recoverable: true}
	assert.Equal(t, `xfault: [NetworkError] get key="user:1": boom`, fe.Error())
	assert.ErrorIs(t, fe, base)
	assert.True(t, fe.Retryable())
}
