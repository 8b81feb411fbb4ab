// Package mongo stores user carts in MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

const cartsCollection = "carts"

// Connect opens a client and returns the named database.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	return client.Database(database), nil
}

type cartDocument struct {
	UserID    string         `bson:"_id"`
	Items     []itemDocument `bson:"items"`
	UpdatedAt time.Time      `bson:"updatedAt"`
}

type itemDocument struct {
	ProductID string               `bson:"productId"`
	Name      string               `bson:"name"`
	Image     string               `bson:"image,omitempty"`
	Price     primitive.Decimal128 `bson:"price"`
	Quantity  int                  `bson:"quantity"`
}

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository on a MongoDB collection keyed
// by user ID.
type CartRepository struct {
	collection *mongo.Collection
}

// NewCartRepository returns a CartRepository using the carts collection of db.
func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{collection: db.Collection(cartsCollection)}
}

// FindUserCart returns cart.ErrNotFound when the user has no cart document.
func (r *CartRepository) FindUserCart(ctx context.Context, userID string) ([]cart.LineItem, error) {
	var doc cartDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("finding cart: %w", err)
	}

	items := make([]cart.LineItem, len(doc.Items))
	for i, it := range doc.Items {
		price, err := decimal.NewFromString(it.Price.String())
		if err != nil {
			return nil, fmt.Errorf("cart item %q price: %w", it.ProductID, err)
		}
		items[i] = cart.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     price,
			Quantity:  it.Quantity,
		}
	}
	return items, nil
}

// SaveUserCart replaces the user's cart.
func (r *CartRepository) SaveUserCart(ctx context.Context, userID string, items []cart.LineItem) error {
	doc := cartDocument{
		UserID:    userID,
		Items:     make([]itemDocument, len(items)),
		UpdatedAt: time.Now().UTC(),
	}
	for i, it := range items {
		price, err := primitive.ParseDecimal128(it.Price.String())
		if err != nil {
			return fmt.Errorf("cart item %q price: %w", it.ProductID, err)
		}
		doc.Items[i] = itemDocument{
			ProductID: it.ProductID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     price,
			Quantity:  it.Quantity,
		}
	}

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": userID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving cart: %w", err)
	}
	return nil
}

// Ping checks that the primary of the cart store answers.
func (r *CartRepository) Ping(ctx context.Context) error {
	if err := r.collection.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}
