//go:build NOTENSORFLOW
// +build NOTENSORFLOW

package backbone

import (
	"fmt"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/model"
)

func openTensorFlow(cfg Config) (model.Backbone, error) {
	return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, cfg.Type, cfg.Name)
}
