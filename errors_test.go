package contextual

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinel(t *testing.T) {
	err := newError(KindMalformedSplitterOutput, StateSplitting, errors.New("no JSON object"))

	assert.ErrorIs(t, err, ErrMalformedSplitterOutput)
	assert.NotErrorIs(t, err, ErrMalformedClassifierOutput)
	assert.Equal(t, "SPLITTING: malformed splitter output: no JSON object", err.Error())

	wrapped := fmt.Errorf("chat: %w", err)
	assert.ErrorIs(t, wrapped, ErrMalformedSplitterOutput)
	assert.Equal(t, KindMalformedSplitterOutput, KindOf(wrapped))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(newError(KindEmptyInput, StateStart, nil)))
	assert.False(t, IsClientError(newError(KindGatewayTimeout, StateSearching, nil)))
	assert.False(t, IsClientError(errors.New("boom")))
	assert.False(t, IsClientError(nil))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "GatewayTimeout", KindGatewayTimeout.String())
	assert.Equal(t, "NoSearchResults", KindNoSearchResults.String())
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
}
