package events

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/jittakal/audiobuf/pkg/event"
)

// DefaultSource is the CloudEvents source used when none is configured.
const DefaultSource = "audiobuf"

// NewCloudEvent wraps a lifecycle notification in a CloudEvents 1.0 envelope.
func NewCloudEvent(source string, ev event.Lifecycle) (cloudevents.Event, error) {
	if source == "" {
		source = DefaultSource
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	ce := cloudevents.NewEvent()
	ce.SetSpecVersion(cloudevents.VersionV1)
	ce.SetID(uuid.New().String())
	ce.SetType(string(ev.Kind))
	ce.SetSource(source)
	ce.SetSubject(ev.Subject())
	ce.SetTime(ev.Time)
	if err := ce.SetData(cloudevents.ApplicationJSON, ev); err != nil {
		return ce, fmt.Errorf("failed to set event data: %w", err)
	}
	if err := ce.Validate(); err != nil {
		return ce, fmt.Errorf("invalid cloud event: %w", err)
	}
	return ce, nil
}
