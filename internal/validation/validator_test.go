package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeRequest struct {
	Type string `validate:"required,oneof=ping http https tcp"`
	Port int    `validate:"omitempty,min=1,max=65535"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(&probeRequest{Type: "tcp", Port: 22}))

	err := Struct(&probeRequest{Type: "udp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type must be one of: ping, http, https, tcp")

	err = Struct(&probeRequest{Type: "tcp", Port: 70000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be at most 65535")
}

func TestVar_Alphanumeric(t *testing.T) {
	assert.NoError(t, Var("id", "0f1e2d3c4b5a69788796a5b4c3d2e1f0", "required,alphanum"))

	err := Var("id", "../../etc/passwd", "required,alphanum")
	require.Error(t, err)
	assert.Equal(t, "id must be alphanumeric", err.Error())

	err = Var("id", "", "required,alphanum")
	require.Error(t, err)
	assert.Equal(t, "id is required", err.Error())
}

func TestVar_DriveID(t *testing.T) {
	assert.NoError(t, Var("id", "1AbC-d_EfGh", "required,driveid"))
	assert.Error(t, Var("id", "abc/def", "required,driveid"))
	assert.Error(t, Var("id", "abc def", "required,driveid"))
}
