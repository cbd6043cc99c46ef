package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionNameAccounts = "accounts"

// Repository is the MongoDB-backed account store.
type Repository struct {
	db *mongo.Database
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{db: db}
}

func (r *Repository) collection() *mongo.Collection {
	return r.db.Collection(collectionNameAccounts)
}

// EnsureIndexes creates the indexes the repository relies on. The unique email
// index is what closes the check-then-insert race between concurrent
// registrations for the same address.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection().Indexes().CreateMany(
		ctx, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "verificationToken", Value: 1}},
				Options: options.Index().SetPartialFilterExpression(
					bson.M{"verificationToken": bson.M{"$exists": true}},
				),
			},
			{
				Keys: bson.D{{Key: "resetToken", Value: 1}},
				Options: options.Index().SetPartialFilterExpression(
					bson.M{"resetToken": bson.M{"$exists": true}},
				),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	return nil
}

// Create inserts a new account with verification pending.
func (r *Repository) Create(ctx context.Context, email, passwordHash, verificationToken string) (*Account, error) {
	now := time.Now()
	acc := &Account{
		Email:             email,
		PasswordHash:      passwordHash,
		Verified:          false,
		VerificationToken: &verificationToken,
		Credits:           0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	res, err := r.collection().InsertOne(ctx, acc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	acc.ID = res.InsertedID.(primitive.ObjectID)
	return acc, nil
}

// GetByEmail retrieves an account by its (already normalized) email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetByID retrieves an account by its hex object ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Account, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": objID})
}

// GetByVerificationToken retrieves the account holding the given pending
// verification token. Consumed tokens are removed from the document, so a
// second lookup with the same token fails.
func (r *Repository) GetByVerificationToken(ctx context.Context, token string) (*Account, error) {
	return r.findOne(ctx, bson.M{"verificationToken": token})
}

// GetByResetToken retrieves the account holding the given reset token.
func (r *Repository) GetByResetToken(ctx context.Context, token string) (*Account, error) {
	return r.findOne(ctx, bson.M{"resetToken": token})
}

// MarkVerified flips the account to verified and clears the token field.
func (r *Repository) MarkVerified(ctx context.Context, id string) error {
	return r.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"verified": true, "updatedAt": time.Now()},
		"$unset": bson.M{"verificationToken": ""},
	})
}

// SetVerificationToken overwrites the pending verification token.
func (r *Repository) SetVerificationToken(ctx context.Context, id string, token string) error {
	return r.updateOne(ctx, id, bson.M{
		"$set": bson.M{"verificationToken": token, "updatedAt": time.Now()},
	})
}

// SetResetToken overwrites the reset token and expiry. Any previously issued
// token is superseded: only the stored value matches on lookup.
func (r *Repository) SetResetToken(ctx context.Context, id string, token string, expiresAt time.Time) error {
	return r.updateOne(ctx, id, bson.M{
		"$set": bson.M{
			"resetToken":          token,
			"resetTokenExpiresAt": expiresAt,
			"updatedAt":           time.Now(),
		},
	})
}

// UpdatePassword replaces the password hash and removes both reset fields,
// making the consumed token permanently invalid.
func (r *Repository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"passwordHash": passwordHash, "updatedAt": time.Now()},
		"$unset": bson.M{"resetToken": "", "resetTokenExpiresAt": ""},
	})
}

func (r *Repository) findOne(ctx context.Context, filter bson.M) (*Account, error) {
	var acc Account
	err := r.collection().FindOne(ctx, filter).Decode(&acc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &acc, nil
}

func (r *Repository) updateOne(ctx context.Context, id string, update bson.M) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
