//go:build NOTENSORFLOW
// +build NOTENSORFLOW

package backbone

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenTensorFlowUnsupported(t *testing.T) {
	for _, c := range []string{
		"name: ResNet50\ntype: savedmodel\ninputOperationName: in\noutputOperationName: out\n",
		"name: ResNet50\ntype: graph\nmodelFile: r50.pb\ninputOperationName: in\noutputOperationName: out\n",
	} {
		b, err := Open(writeConfig(t, c))
		assert.Nil(t, b)
		assert.True(t, errors.Is(err, ErrUnsupportedType), c)
	}
}
