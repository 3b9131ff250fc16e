package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionProducts        = "products"
	collectionStockMovements  = "stockMovements"
	collectionStockAlerts     = "stockAlerts"
	collectionInventoryAlerts = "inventoryAlerts"
	collectionRestockRequests = "restockRequests"
	collectionNotifications   = "notifications"
)

// MongoStore keeps each entity in its own collection. Batches run inside a
// multi-document transaction, which needs a replica set deployment.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database)}
}

// EnsureIndexes creates the indexes the store relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(collectionStockMovements).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "idempotency_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("stock movement indexes: %w", err)
	}

	_, err = s.db.Collection(collectionNotifications).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("notification indexes: %w", err)
	}
	return nil
}

type productDoc struct {
	ID             string                `bson:"_id"`
	Name           string                `bson:"name"`
	CategoryID     string                `bson:"category_id"`
	Stock          int                   `bson:"stock"`
	Price          primitive.Decimal128  `bson:"price"`
	CompareAtPrice *primitive.Decimal128 `bson:"compare_at_price,omitempty"`
	IsActive       bool                  `bson:"is_active"`
	UpdatedBy      string                `bson:"updated_by"`
	UpdatedAt      time.Time             `bson:"updated_at"`
}

func (d productDoc) toProduct() (*types.Product, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid product id %q: %w", d.ID, err)
	}
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return nil, fmt.Errorf("invalid price for product %s: %w", d.ID, err)
	}
	product := &types.Product{
		ID:         id,
		Name:       d.Name,
		CategoryID: d.CategoryID,
		Stock:      d.Stock,
		Price:      price,
		IsActive:   d.IsActive,
		UpdatedBy:  d.UpdatedBy,
		UpdatedAt:  d.UpdatedAt,
	}
	if d.CompareAtPrice != nil {
		compareAt, err := decimal.NewFromString(d.CompareAtPrice.String())
		if err != nil {
			return nil, fmt.Errorf("invalid compare_at_price for product %s: %w", d.ID, err)
		}
		product.CompareAtPrice = &compareAt
	}
	return product, nil
}

type stockAlertDoc struct {
	ProductID string    `bson:"_id"`
	Threshold int       `bson:"threshold"`
	IsActive  bool      `bson:"is_active"`
	UpdatedBy string    `bson:"updated_by"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d stockAlertDoc) toStockAlert() (*types.StockAlert, error) {
	id, err := uuid.Parse(d.ProductID)
	if err != nil {
		return nil, fmt.Errorf("invalid stock alert id %q: %w", d.ProductID, err)
	}
	return &types.StockAlert{
		ProductID: id,
		Threshold: d.Threshold,
		IsActive:  d.IsActive,
		UpdatedBy: d.UpdatedBy,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

type stockMovementDoc struct {
	ID             string    `bson:"_id"`
	ProductID      string    `bson:"product_id"`
	PreviousStock  int       `bson:"previous_stock"`
	NewStock       int       `bson:"new_stock"`
	Quantity       int       `bson:"quantity"`
	Operation      string    `bson:"operation"`
	Reason         string    `bson:"reason"`
	PerformedBy    string    `bson:"performed_by"`
	OrderID        string    `bson:"order_id,omitempty"`
	IdempotencyKey string    `bson:"idempotency_key,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
}

type notificationDoc struct {
	ID          string            `bson:"_id"`
	Type        string            `bson:"type"`
	Status      string            `bson:"status"`
	Recipient   string            `bson:"recipient"`
	Subject     string            `bson:"subject"`
	Message     string            `bson:"message"`
	TemplateID  string            `bson:"template_id,omitempty"`
	Data        map[string]string `bson:"data,omitempty"`
	Error       string            `bson:"error,omitempty"`
	ProviderRef string            `bson:"provider_ref,omitempty"`
	CreatedBy   string            `bson:"created_by"`
	CreatedAt   time.Time         `bson:"created_at"`
	SentAt      *time.Time        `bson:"sent_at,omitempty"`
}

func (d notificationDoc) toNotification() (*types.Notification, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid notification id %q: %w", d.ID, err)
	}
	return &types.Notification{
		ID:          id,
		Type:        types.NotificationType(d.Type),
		Status:      types.NotificationStatus(d.Status),
		Recipient:   d.Recipient,
		Subject:     d.Subject,
		Message:     d.Message,
		TemplateID:  d.TemplateID,
		Data:        d.Data,
		Error:       d.Error,
		ProviderRef: d.ProviderRef,
		CreatedBy:   d.CreatedBy,
		CreatedAt:   d.CreatedAt,
		SentAt:      d.SentAt,
	}, nil
}

func (s *MongoStore) GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	var doc productDoc
	err := s.db.Collection(collectionProducts).FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("product receive error: %w", err)
	}
	return doc.toProduct()
}

func (s *MongoStore) ListActiveProducts(ctx context.Context) ([]*types.Product, error) {
	cursor, err := s.db.Collection(collectionProducts).Find(ctx,
		bson.M{"is_active": true},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("products retrieval error: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*types.Product
	for cursor.Next(ctx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("product decode error: %w", err)
		}
		product, err := doc.toProduct()
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, cursor.Err()
}

func (s *MongoStore) GetStockAlert(ctx context.Context, productID uuid.UUID) (*types.StockAlert, error) {
	var doc stockAlertDoc
	err := s.db.Collection(collectionStockAlerts).FindOne(ctx, bson.M{"_id": productID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stock alert receive error: %w", err)
	}
	return doc.toStockAlert()
}

func (s *MongoStore) ListActiveStockAlerts(ctx context.Context) ([]*types.StockAlert, error) {
	cursor, err := s.db.Collection(collectionStockAlerts).Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("stock alerts retrieval error: %w", err)
	}
	defer cursor.Close(ctx)

	var alerts []*types.StockAlert
	for cursor.Next(ctx) {
		var doc stockAlertDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("stock alert decode error: %w", err)
		}
		alert, err := doc.toStockAlert()
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, cursor.Err()
}

func (s *MongoStore) MovementExists(ctx context.Context, idempotencyKey string) (bool, error) {
	count, err := s.db.Collection(collectionStockMovements).CountDocuments(ctx,
		bson.M{"idempotency_key": idempotencyKey},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("movement lookup error: %w", err)
	}
	return count > 0, nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, query NotificationQuery) ([]*types.Notification, error) {
	filter := bson.M{}
	if query.Type != "" {
		filter["type"] = string(query.Type)
	}
	if query.Status != "" {
		filter["status"] = string(query.Status)
	}
	if query.CreatedBy != "" {
		filter["created_by"] = query.CreatedBy
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}

	cursor, err := s.db.Collection(collectionNotifications).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("notifications retrieval error: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []*types.Notification
	for cursor.Next(ctx) {
		var doc notificationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("notification decode error: %w", err)
		}
		n, err := doc.toNotification()
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, cursor.Err()
}

func (s *MongoStore) NewBatch() Batch {
	return &mongoBatch{store: s}
}

type mongoBatch struct {
	writeSet
	store *MongoStore
}

func (b *mongoBatch) Commit(ctx context.Context) error {
	if err := b.validate(); err != nil {
		return err
	}

	session, err := b.store.client.StartSession()
	if err != nil {
		return fmt.Errorf("session start error: %w", err)
	}
	defer session.EndSession(ctx)

	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, w := range b.writes {
			if err := b.store.applyWrite(sc, w, now); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateMovement) {
			return err
		}
		return fmt.Errorf("batch commit error: %w", err)
	}
	return nil
}

func (s *MongoStore) applyWrite(ctx context.Context, w pendingWrite, now time.Time) error {
	switch w.kind {
	case writeProductStock:
		result, err := s.db.Collection(collectionProducts).UpdateOne(ctx,
			bson.M{"_id": w.product.ID.String()},
			bson.M{"$set": bson.M{
				"stock":      w.product.Stock,
				"updated_by": w.product.UpdatedBy,
				"updated_at": now,
			}},
		)
		if err != nil {
			return fmt.Errorf("product stock update error: %w", err)
		}
		if result.MatchedCount == 0 {
			return ErrNotFound
		}
		w.product.UpdatedAt = now

	case writeStockMovement:
		m := w.movement
		doc := stockMovementDoc{
			ID:             m.ID.String(),
			ProductID:      m.ProductID.String(),
			PreviousStock:  m.PreviousStock,
			NewStock:       m.NewStock,
			Quantity:       m.Quantity,
			Operation:      string(m.Operation),
			Reason:         m.Reason,
			PerformedBy:    m.PerformedBy,
			IdempotencyKey: m.IdempotencyKey,
			CreatedAt:      now,
		}
		if m.OrderID != nil {
			doc.OrderID = m.OrderID.String()
		}
		if _, err := s.db.Collection(collectionStockMovements).InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrDuplicateMovement
			}
			return fmt.Errorf("stock movement insert error: %w", err)
		}
		m.CreatedAt = now

	case writeStockAlert:
		a := w.stockAlert
		_, err := s.db.Collection(collectionStockAlerts).ReplaceOne(ctx,
			bson.M{"_id": a.ProductID.String()},
			stockAlertDoc{
				ProductID: a.ProductID.String(),
				Threshold: a.Threshold,
				IsActive:  a.IsActive,
				UpdatedBy: a.UpdatedBy,
				UpdatedAt: now,
			},
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("stock alert upsert error: %w", err)
		}
		a.UpdatedAt = now

	case writeInventoryAlert:
		a := w.alert
		_, err := s.db.Collection(collectionInventoryAlerts).InsertOne(ctx, bson.M{
			"_id":           a.ID.String(),
			"type":          a.Type,
			"product_id":    a.ProductID.String(),
			"product_name":  a.ProductName,
			"current_stock": a.CurrentStock,
			"threshold":     a.Threshold,
			"priority":      string(a.Priority),
			"read":          a.Read,
			"created_at":    now,
		})
		if err != nil {
			return fmt.Errorf("inventory alert insert error: %w", err)
		}
		a.CreatedAt = now

	case writeRestockRequest:
		r := w.restock
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.UpdatedAt = now
		_, err := s.db.Collection(collectionRestockRequests).InsertOne(ctx, bson.M{
			"_id":                r.ID.String(),
			"product_id":         r.ProductID.String(),
			"product_name":       r.ProductName,
			"current_stock":      r.CurrentStock,
			"requested_quantity": r.RequestedQuantity,
			"priority":           string(r.Priority),
			"status":             string(r.Status),
			"notes":              r.Notes,
			"requested_by":       r.RequestedBy,
			"created_at":         r.CreatedAt,
			"updated_at":         r.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("restock request insert error: %w", err)
		}

	case writeNotification:
		n := w.notification
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		doc := notificationDoc{
			ID:          n.ID.String(),
			Type:        string(n.Type),
			Status:      string(n.Status),
			Recipient:   n.Recipient,
			Subject:     n.Subject,
			Message:     n.Message,
			TemplateID:  n.TemplateID,
			Data:        n.Data,
			Error:       n.Error,
			ProviderRef: n.ProviderRef,
			CreatedBy:   n.CreatedBy,
			CreatedAt:   n.CreatedAt,
			SentAt:      n.SentAt,
		}
		_, err := s.db.Collection(collectionNotifications).ReplaceOne(ctx,
			bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("notification save error: %w", err)
		}
	}
	return nil
}
