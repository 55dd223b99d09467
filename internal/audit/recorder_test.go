package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "", maskPhone(""))
	assert.Equal(t, "***", maskPhone("123"))
	assert.Equal(t, "****", maskPhone("1234"))
	assert.Equal(t, "*********5678", maskPhone("2348012345678"))
}
