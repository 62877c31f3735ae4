package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	examplePayload = "01100102025120600010000100351"
	exampleSerial  = "011001020251206000100001003517"
)

func TestComputeWorkedExample(t *testing.T) {
	digit, err := Compute(examplePayload)
	require.NoError(t, err)
	assert.Equal(t, 7, digit)

	full, err := Append(examplePayload)
	require.NoError(t, err)
	assert.Equal(t, exampleSerial, full)
	assert.True(t, Verify(exampleSerial))
}

func TestComputeKnownValues(t *testing.T) {
	tests := []struct {
		payload string
		want    int
	}{
		{"7992739871", 3},
		{"0", 0},
		{"1", 8},
		{"9", 1},
		{"00000", 0},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := Compute(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeRejectsNonDigits(t *testing.T) {
	for _, in := range []string{"", "12a4", " 123", "12-3"} {
		_, err := Compute(in)
		assert.ErrorIs(t, err, ErrNotDigits, "input %q", in)
	}
}

func TestVerifyDetectsSingleDigitErrors(t *testing.T) {
	for i := 0; i < len(exampleSerial); i++ {
		for d := byte('0'); d <= '9'; d++ {
			if exampleSerial[i] == d {
				continue
			}
			mutated := []byte(exampleSerial)
			mutated[i] = d
			assert.False(t, Verify(string(mutated)), "flip at %d to %c", i, d)
		}
	}
}

func TestVerifyMalformed(t *testing.T) {
	assert.False(t, Verify(""))
	assert.False(t, Verify("7"))
	assert.False(t, Verify("01100102025120600010000100351x"))
	assert.False(t, Verify("0110010202512060001000010035a7"))
}
