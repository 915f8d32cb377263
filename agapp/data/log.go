package data

import (
	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/event"
)

var log = event.Log
