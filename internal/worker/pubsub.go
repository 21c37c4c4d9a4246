package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	rebuildJob       *RebuildJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RebuildJob       *RebuildJob
	Logger           zerolog.Logger
}

// RebuildMessage represents a graph rebuild job message.
type RebuildMessage struct {
	JobType string `json:"job_type"`
	Force   bool   `json:"force,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A rebuild holds one message for the whole pipeline run, so allow long
	// extensions and keep the outstanding window small.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 15 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		rebuildJob:       cfg.RebuildJob,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	var rebuildMsg RebuildMessage
	if err := json.Unmarshal(msg.Data, &rebuildMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	var err error
	switch rebuildMsg.JobType {
	case "graph_rebuild":
		err = h.handleGraphRebuild(ctx, rebuildMsg)
	case "health_check":
		err = h.handleHealthCheck(ctx)
	default:
		logger.Warn().Str("job_type", rebuildMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("job_type", rebuildMsg.JobType).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleGraphRebuild(ctx context.Context, msg RebuildMessage) error {
	h.logger.Info().
		Bool("force", msg.Force).
		Msg("starting graph rebuild")

	result, err := h.rebuildJob.Run(ctx, msg.Force)
	if err != nil {
		return err
	}

	if result.Skipped {
		h.logger.Info().Msg("graph rebuild skipped, current graph is fresh")
		return nil
	}

	event := h.logger.Info().Str("graph_version", result.GraphVersion)
	if result.Pipeline != nil {
		event = event.
			Dur("duration", result.Pipeline.Duration).
			Int("stages", result.Pipeline.StagesExecuted)
	}
	event.Msg("graph rebuild completed")

	return nil
}

// handleHealthCheck verifies the worker can reach its data sources without
// mutating anything. The staleness probe touches both the source manifest
// and the graph metadata store.
func (h *PubSubHandler) handleHealthCheck(ctx context.Context) error {
	h.logger.Debug().Msg("running health check")

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := h.rebuildJob.orchestrator.RebuildNeeded(checkCtx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	h.logger.Debug().Msg("health check passed")
	return nil
}
