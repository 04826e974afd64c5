// Package watch delivers test definition changes to interested callers.
package watch

import (
	"context"
	"encoding/json"

	"github.com/mind-engage/testgrade/internal/exam"
)

// DefaultTopic is the topic or channel prefix definition changes are
// published on.
const DefaultTopic = "test-definition-changed"

// Bus carries saved definitions to listeners of the same test id.
type Bus interface {
	Publish(ctx context.Context, d exam.Definition) error
	// Listen returns a channel of later published versions of testID. The
	// channel is closed once ctx is done or the bus is closed.
	Listen(ctx context.Context, testID string) (<-chan exam.Definition, error)
	Close() error
}

func encode(d exam.Definition) ([]byte, error) {
	return json.Marshal(d)
}

func decode(b []byte) (exam.Definition, error) {
	return exam.Decode(b)
}
