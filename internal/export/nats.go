package export

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"DHTSpectra/internal/config"
	"DHTSpectra/internal/model"
)

// NATSPublisher publishes completed records to a NATS subject tree as JSON.
// It implements model.Sink.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// NewNATSPublisher connects to the configured NATS server.
func NewNATSPublisher(cfg config.NATSConfig) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	subject := cfg.SubjectPrefix
	if subject == "" {
		subject = "dhtspectra"
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// PublishSample publishes one system sample to <prefix>.samples.
func (p *NATSPublisher) PublishSample(s *model.Sample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject+".samples", data)
}

// PublishWindow publishes one traffic window to <prefix>.windows.
func (p *NATSPublisher) PublishWindow(w *model.TrafficWindow) error {
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject+".windows", data)
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
