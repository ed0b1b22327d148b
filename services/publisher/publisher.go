package publisher

import "context"

// Message keys written into stream entries
const (
	KeyWeeklyDigest   = "b64_weekly_digest"
	KeyPipelineResult = "b64_pipeline_result"
)

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to a stream
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
