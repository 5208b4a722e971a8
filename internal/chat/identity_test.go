package chat

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewIdentityIsAnonymous verifies a fresh identity has no name and a
// distinct id.
func TestNewIdentityIsAnonymous(t *testing.T) {
	a := NewIdentity("127.0.0.1:1000")
	b := NewIdentity("127.0.0.1:1000")

	name, named := a.Name()
	assert.False(t, named)
	assert.Empty(t, name)
	assert.Equal(t, "127.0.0.1:1000", a.Addr())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.True(t, strings.HasPrefix(a.String(), "anonymous@"))
}

// TestIdentityAssignOnce verifies the unset to claimed transition happens at
// most once.
func TestIdentityAssignOnce(t *testing.T) {
	id := NewIdentity("")

	require.NoError(t, id.assign("alice"))
	err := id.assign("bob")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyNamed))

	name, named := id.Name()
	assert.True(t, named)
	assert.Equal(t, "alice", name)
	assert.True(t, strings.HasPrefix(id.String(), "alice@"))
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxLen  int
		wantErr bool
	}{
		{name: "plain", input: "alice"},
		{name: "inner spaces", input: "alice smith"},
		{name: "unicode at limit", input: strings.Repeat("é", 4), maxLen: 4},
		{name: "empty", input: "", wantErr: true},
		{name: "blank", input: "   \t", wantErr: true},
		{name: "too long", input: strings.Repeat("a", DefaultMaxNameLength+1), wantErr: true},
		{name: "over custom limit", input: "abcde", maxLen: 4, wantErr: true},
		{name: "control character", input: "ali\x07ce", wantErr: true},
		{name: "newline", input: "alice\nbob", wantErr: true},
		{name: "invalid utf8", input: "\xff\xfe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input, tt.maxLen)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidName))
				return
			}
			require.NoError(t, err)
		})
	}
}
