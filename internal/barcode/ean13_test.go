package barcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Run("generated codes are well formed", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			code := Generate()
			require.Len(t, code, CodeLength)
			assert.True(t, Valid(code), "generated code %q failed validation", code)
		}
	})

	t.Run("digits only", func(t *testing.T) {
		code := Generate()
		for _, c := range code {
			assert.GreaterOrEqual(t, c, '0')
			assert.LessOrEqual(t, c, '9')
		}
	})
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		// 4006381333931 is a published EAN-13 example with check digit 1.
		{name: "known good code", code: "4006381333931", want: true},
		{name: "all zeros", code: "0000000000000", want: true},
		{name: "wrong check digit", code: "4006381333932", want: false},
		{name: "too short", code: "400638133393", want: false},
		{name: "too long", code: "40063813339311", want: false},
		{name: "empty", code: "", want: false},
		{name: "non digit", code: "40063813339a1", want: false},
		{name: "non digit check position", code: "400638133393x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.code))
		})
	}
}
