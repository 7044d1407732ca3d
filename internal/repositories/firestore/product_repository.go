package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/harvestlink/api/internal/domain"
	pfirestore "github.com/harvestlink/api/internal/platform/firestore"
)

const productsCollection = "products"

type productDocument struct {
	SellerID  string    `firestore:"seller_id"`
	Name      string    `firestore:"name"`
	Unit      string    `firestore:"unit,omitempty"`
	UnitPrice int64     `firestore:"unit_price"`
	Available int       `firestore:"available"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func decodeProduct(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:        id,
		SellerID:  doc.SellerID,
		Name:      doc.Name,
		Unit:      doc.Unit,
		UnitPrice: doc.UnitPrice,
		Available: doc.Available,
		UpdatedAt: doc.UpdatedAt,
	}
}

// ProductRepository reads the "products" catalog collection and applies
// availability adjustments.
type ProductRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository builds a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository: firestore provider is required")
	}
	return &ProductRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
	}, nil
}

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if tx, ok := txFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, productID)
		if err != nil {
			return domain.Product{}, err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return domain.Product{}, pfirestore.WrapError("products.get", err)
		}
		doc, err := r.base.Decode(ctx, snap)
		if err != nil {
			return domain.Product{}, fmt.Errorf("products: decode %s: %w", productID, err)
		}
		return decodeProduct(snap.Ref.ID, doc.Data), nil
	}

	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(doc.ID, doc.Data), nil
}

// ApplyAvailabilityDelta buffers an atomic availability increment without
// reading the document, so it may follow other writes in a joined transaction.
// Callers guard against negative availability with a transactional FindByID
// before their first write; the optimistic retry keeps the pair consistent.
func (r *ProductRepository) ApplyAvailabilityDelta(ctx context.Context, productID string, delta int, now time.Time) error {
	if delta == 0 {
		return nil
	}
	ref, err := r.base.DocumentRef(ctx, productID)
	if err != nil {
		return err
	}
	return runInTransaction(ctx, r.provider, func(_ context.Context, tx *firestore.Transaction) error {
		err := tx.Update(ref, []firestore.Update{
			{Path: "available", Value: firestore.Increment(delta)},
			{Path: "updated_at", Value: now.UTC()},
		})
		return pfirestore.WrapError("products.adjust", err)
	})
}
