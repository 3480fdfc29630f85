// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeyshare.
//
// go-passkeyshare is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	u, err := NewUser("  Bob ", " Bob User ")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)
	assert.Equal(t, "Bob User", u.DisplayName)
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.IsAdmin)
	assert.False(t, u.Created.IsZero())
	assert.Equal(t, "UTC", u.Created.Location().String())
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple", input: "bob", want: "bob"},
		{name: "mixed case", input: "Mary.Jane", want: "mary.jane"},
		{name: "digits and dash", input: "user-42_x", want: "user-42_x"},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace", input: "   ", wantErr: true},
		{name: "space inside", input: "bob smith", wantErr: true},
		{name: "leading dot", input: ".bob", wantErr: true},
		{name: "slash", input: "bob/../x", wantErr: true},
		{name: "too long", input: strings.Repeat("a", MaxUsernameLength+1), wantErr: true},
		{name: "max length", input: strings.Repeat("a", MaxUsernameLength), want: strings.Repeat("a", MaxUsernameLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateUsername(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidUsername)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "two words", input: "Bob User"},
		{name: "accented", input: "Zoë O'Brien"},
		{name: "empty", input: "", wantErr: true},
		{name: "markup", input: "<script>", wantErr: true},
		{name: "leading punctuation", input: "-bob", wantErr: true},
		{name: "too long", input: strings.Repeat("é", MaxDisplayNameLength+1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateDisplayName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDisplayName)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUserIs(t *testing.T) {
	a := &User{ID: "1"}
	b := &User{ID: "1"}
	c := &User{ID: "2"}
	var nilUser *User

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
	assert.False(t, a.Is(nil))
	assert.False(t, nilUser.Is(a))
}
