package snapshot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	list := List{"14.03.22 05-06-2024", "10.00.00 05-06-2024", "09.00.00 04-06-2024"}

	tests := []struct {
		name    string
		token   string
		want    ID
		wantErr error
	}{
		{name: "first is newest", token: "1", want: "14.03.22 05-06-2024"},
		{name: "last index", token: "3", want: "09.00.00 04-06-2024"},
		{name: "plus sign", token: "+2", want: "10.00.00 05-06-2024"},
		{name: "literal", token: "10.00.00 05-06-2024", want: "10.00.00 05-06-2024"},
		{name: "zero", token: "0", wantErr: ErrInvalidIndex},
		{name: "negative", token: "-1", wantErr: ErrInvalidIndex},
		{name: "past end", token: "4", wantErr: ErrInvalidIndex},
		{name: "overflow", token: "99999999999999999999999", wantErr: ErrInvalidIndex},
		{name: "unknown literal", token: "yesterday", wantErr: ErrSaveNotFound},
		{name: "partial literal", token: "14.03.22", wantErr: ErrSaveNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.token, list)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "ожидалась %v, получена %v", tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_ErrorFields(t *testing.T) {
	list := List{"a"}

	_, err := Resolve("7", list)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindInvalidIndex, e.Kind)
	assert.Equal(t, "7", e.Index, "{index} должен содержать исходный токен")

	_, err = Resolve("nope", list)
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindSaveNotFound, e.Kind)
	assert.Equal(t, "nope", e.Save)
}

func TestResolve_EmptyList(t *testing.T) {
	_, err := Resolve("1", List{})
	assert.ErrorIs(t, err, ErrNoSaves)
}

func TestResolve_FirstAlwaysNewest(t *testing.T) {
	ids := []ID{"01.00.00 02-06-2024", "23.59.59 01-06-2024", "00.00.00 03-06-2024"}
	Sort(ids)

	got, err := Resolve("1", List(ids))
	require.NoError(t, err)
	assert.Equal(t, ID("00.00.00 03-06-2024"), got)
}

func TestErrorKinds(t *testing.T) {
	err := &Error{Kind: KindNotFound, Player: "Alice", Save: "x"}
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrSaveNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "Alice")

	assert.True(t, IsTargetFacing(&Error{Kind: KindApplyFailed}))
	assert.True(t, IsTargetFacing(&Error{Kind: KindDeserialization}))
	assert.False(t, IsTargetFacing(&Error{Kind: KindSaveNotFound}))
}
