package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addReelBody struct {
	ReelID   string `json:"reel_id" validate:"required,max=64"`
	Position *int   `json:"position,omitempty" validate:"omitempty,min=0"`
}

func TestPlaygroundV10_Struct(t *testing.T) {
	v := NewValidator()

	assert.Nil(t, v.Struct(&addReelBody{ReelID: "r1"}))

	negative := -1
	errs := v.Struct(&addReelBody{Position: &negative})
	require.Len(t, errs, 2)
	assert.Equal(t, "reel_id", errs[0].Domain)
	assert.Equal(t, "position", errs[1].Domain)
}

func TestPlaygroundV10_Empty(t *testing.T) {
	v := NewValidator()

	assert.Nil(t, v.Empty("id", "c1"))
	errs := v.Empty("id", "")
	require.Len(t, errs, 1)
	assert.Equal(t, "id is required", errs[0].Reason)
}
