// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nodeerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindStorageTransient, "x"))
}

func TestErrorMessageIncludesUnderlying(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(base, KindStorageTransient, "bulk insert failed")
	assert.Equal(t, "bulk insert failed: connection refused", err.Error())
}

func TestGetKind(t *testing.T) {
	err := New(KindTaskExit, "capture task exited early")
	assert.Equal(t, KindTaskExit, GetKind(err))
	assert.Equal(t, KindUnknown, GetKind(errors.New("plain")))
}

func TestUnwrapChain(t *testing.T) {
	base := errors.New("root cause")
	err := Wrapf(base, KindParseReject, "frame too short: %d bytes", 10)
	assert.ErrorIs(t, err, base)
}

func TestAttr(t *testing.T) {
	err := Attr(New(KindFirewallDeny, "denied"), "node_id", int16(3))
	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, int16(3), e.Attributes["node_id"])
}
