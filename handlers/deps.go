package handlers

import (
	"feastflow-api/delivery"
	"feastflow-api/notify"
	"feastflow-api/payments"
	"feastflow-api/ws"

	"github.com/sirupsen/logrus"
)

// Collaborators wired at boot. Nil hub/notifier simply means no broadcast,
// which keeps handler tests free of wiring they don't exercise.
var (
	log       = logrus.StandardLogger()
	hub       *ws.Hub
	notifier  notify.Notifier
	gateway   payments.Gateway
	estimator *delivery.Estimator
)

// Deps carries the external collaborators the handlers depend on.
type Deps struct {
	Log       *logrus.Logger
	Hub       *ws.Hub
	Notifier  notify.Notifier
	Gateway   payments.Gateway
	Estimator *delivery.Estimator
}

// Init wires collaborators into the handler package.
func Init(d Deps) {
	if d.Log != nil {
		log = d.Log
	}
	hub = d.Hub
	notifier = d.Notifier
	gateway = d.Gateway
	estimator = d.Estimator
}
