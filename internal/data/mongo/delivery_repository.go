package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mortgage-deed-signing/internal/domain/notification"
)

const (
	// DeliveryCollectionName is the name of the notification delivery collection in MongoDB
	DeliveryCollectionName = "notification_deliveries"
)

// DeliveryRepository implements notification.DeliveryRepository for MongoDB
type DeliveryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewDeliveryRepository creates a new MongoDB delivery repository
func NewDeliveryRepository(logger *slog.Logger, db *mongo.Database) *DeliveryRepository {
	return &DeliveryRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique request_id index and the per-deed listing index.
func (r *DeliveryRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(DeliveryCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "deed_id", Value: 1}, {Key: "queued_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create delivery indexes: %w", err)
	}
	return nil
}

// Create stores a new delivery document after checking for duplicates.
// Returns ErrDuplicateDelivery if a delivery with the same request ID exists.
func (r *DeliveryRepository) Create(ctx context.Context, d *notification.Delivery) error {
	collection := r.db.Collection(DeliveryCollectionName)

	existing, err := r.GetByRequestID(ctx, d.RequestID)
	if err != nil && !errors.Is(err, notification.ErrDeliveryNotFound{}) {
		r.logger.Error("Failed to check for existing delivery",
			"request_id", d.RequestID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing delivery: %w", err)
	}
	if existing != nil {
		return notification.ErrDuplicateDelivery{RequestID: d.RequestID}
	}

	if _, err := collection.InsertOne(ctx, d); err != nil {
		// Lost a race against a concurrent insert of the same request.
		if mongo.IsDuplicateKeyError(err) {
			return notification.ErrDuplicateDelivery{RequestID: d.RequestID}
		}
		r.logger.Error("Failed to create delivery",
			"request_id", d.RequestID.String(),
			"error", err)
		return fmt.Errorf("failed to create delivery: %w", err)
	}

	return nil
}

// GetByRequestID returns ErrDeliveryNotFound if no document exists for the request.
func (r *DeliveryRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*notification.Delivery, error) {
	collection := r.db.Collection(DeliveryCollectionName)

	var d notification.Delivery
	err := collection.FindOne(ctx, bson.M{"request_id": requestID}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notification.ErrDeliveryNotFound{RequestID: requestID}
		}
		r.logger.Error("Failed to get delivery",
			"request_id", requestID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	return &d, nil
}

// ListByDeedID returns a page of a deed's deliveries, newest first.
func (r *DeliveryRepository) ListByDeedID(ctx context.Context, deedID int64, limit, offset int) ([]*notification.Delivery, error) {
	collection := r.db.Collection(DeliveryCollectionName)

	opts := options.Find().
		SetSort(bson.D{{Key: "queued_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, bson.M{"deed_id": deedID}, opts)
	if err != nil {
		r.logger.Error("Failed to list deliveries",
			"deed_id", deedID,
			"error", err)
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer cursor.Close(ctx)

	deliveries := make([]*notification.Delivery, 0)
	if err := cursor.All(ctx, &deliveries); err != nil {
		r.logger.Error("Failed to decode deliveries",
			"deed_id", deedID,
			"error", err)
		return nil, fmt.Errorf("failed to decode deliveries: %w", err)
	}

	return deliveries, nil
}

func (r *DeliveryRepository) CountByDeedID(ctx context.Context, deedID int64) (int64, error) {
	collection := r.db.Collection(DeliveryCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"deed_id": deedID})
	if err != nil {
		r.logger.Error("Failed to count deliveries",
			"deed_id", deedID,
			"error", err)
		return 0, fmt.Errorf("failed to count deliveries: %w", err)
	}

	return count, nil
}

// Complete moves a QUEUED delivery to status. A delivery that is already
// final is left untouched; a missing one yields ErrDeliveryNotFound.
func (r *DeliveryRepository) Complete(ctx context.Context, requestID uuid.UUID, status notification.DeliveryStatus, reason string, at time.Time) error {
	if !status.Final() {
		return fmt.Errorf("cannot complete delivery with non-final status %q", status)
	}

	collection := r.db.Collection(DeliveryCollectionName)

	filter := bson.M{
		"request_id": requestID,
		"status":     notification.DeliveryQueued,
	}
	set := bson.M{
		"status":       status,
		"completed_at": at.UTC(),
	}
	if reason != "" {
		set["failure_reason"] = reason
	}

	result, err := collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		r.logger.Error("Failed to complete delivery",
			"request_id", requestID.String(),
			"status", string(status),
			"error", err)
		return fmt.Errorf("failed to complete delivery: %w", err)
	}

	if result.MatchedCount == 0 {
		existing, err := r.GetByRequestID(ctx, requestID)
		if err != nil {
			return err
		}
		r.logger.Debug("Delivery already completed",
			"request_id", requestID.String(),
			"status", string(existing.Status))
	}

	return nil
}

var _ notification.DeliveryRepository = (*DeliveryRepository)(nil)
