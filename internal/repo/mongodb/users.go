// Package mongodb stores users as documents with the friend set embedded as
// an array of ids, the shape the service started out with.
package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/friendhub/internal/domain/user"
	"github.com/geocoder89/friendhub/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const usersCollection = "users"

type userDocument struct {
	ID             string    `bson:"_id"`
	Email          string    `bson:"email"`
	EmailLower     string    `bson:"emailLower"`
	PasswordHash   string    `bson:"password"`
	Name           string    `bson:"name"`
	ProfilePicture string    `bson:"profilePicture"`
	Department     string    `bson:"department"`
	About          string    `bson:"about"`
	Hobbies        []string  `bson:"hobbies"`
	Friends        []string  `bson:"friends"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

func toDocument(u user.User) userDocument {
	friends := u.Friends
	if friends == nil {
		friends = []string{}
	}

	return userDocument{
		ID:             u.ID,
		Email:          u.Email,
		EmailLower:     normalizeEmail(u.Email),
		PasswordHash:   u.PasswordHash,
		Name:           u.Name,
		ProfilePicture: u.ProfilePicture,
		Department:     u.Department,
		About:          u.About,
		Hobbies:        u.Hobbies,
		Friends:        friends,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (d userDocument) toUser() user.User {
	friends := d.Friends
	if friends == nil {
		friends = []string{}
	}

	return user.User{
		ID:             d.ID,
		Email:          d.Email,
		PasswordHash:   d.PasswordHash,
		Name:           d.Name,
		ProfilePicture: d.ProfilePicture,
		Department:     d.Department,
		About:          d.About,
		Hobbies:        d.Hobbies,
		Friends:        friends,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type UsersRepo struct {
	db   *mongo.Database
	coll *mongo.Collection
	prom *observability.Prom
}

func NewUsersRepo(db *mongo.Database, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		db:   db,
		coll: db.Collection(usersCollection),
		prom: prom,
	}
}

// EnsureIndexes creates the unique email index and the ordering index used by listings.
func (r *UsersRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "emailLower", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_email_uniq"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("users_created_at_idx"),
		},
	})
	return err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	if err := user.Validate(u); err != nil {
		return user.User{}, err
	}

	doc := toDocument(u)

	err := r.prom.ObserveDB("users.create", func() error {
		_, err := r.coll.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return user.ErrEmailTaken
		}
		return err
	})

	if err != nil {
		return user.User{}, err
	}

	return doc.toUser(), nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_email", bson.M{"emailLower": normalizeEmail(email)})
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_id", bson.M{"_id": id})
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.M) (user.User, error) {
	var doc userDocument

	err := r.prom.ObserveDB(op, func() error {
		err := r.coll.FindOne(ctx, filter).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.ErrNotFound
		}
		return err
	})

	if err != nil {
		return user.User{}, err
	}

	return doc.toUser(), nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	out := make([]user.User, 0)

	err := r.prom.ObserveDB("users.list", func() error {
		cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(creationOrder()))
		if err != nil {
			return err
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var doc userDocument
			if err := cur.Decode(&doc); err != nil {
				return err
			}
			out = append(out, doc.toUser())
		}

		return cur.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *UsersRepo) ListExcluding(ctx context.Context, ids []string) ([]user.Summary, error) {
	if ids == nil {
		ids = []string{}
	}

	out := make([]user.Summary, 0)

	err := r.prom.ObserveDB("users.list_excluding", func() error {
		opts := options.Find().
			SetProjection(bson.M{"name": 1}).
			SetSort(creationOrder())

		cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$nin": ids}}, opts)
		if err != nil {
			return err
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var doc struct {
				ID   string `bson:"_id"`
				Name string `bson:"name"`
			}
			if err := cur.Decode(&doc); err != nil {
				return err
			}
			out = append(out, user.Summary{ID: doc.ID, Name: doc.Name})
		}

		return cur.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// AddFriend uses $addToSet behind a $ne guard so the update is atomic on the
// server and reports whether anything changed.
func (r *UsersRepo) AddFriend(ctx context.Context, userID, friendID string) (bool, error) {
	var added bool

	err := r.prom.ObserveDB("users.add_friend", func() error {
		res, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": userID, "friends": bson.M{"$ne": friendID}},
			bson.M{
				"$addToSet": bson.M{"friends": friendID},
				"$set":      bson.M{"updatedAt": time.Now().UTC()},
			},
		)
		if err != nil {
			return err
		}

		if res.ModifiedCount == 1 {
			added = true
			return nil
		}

		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": userID}, options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if n == 0 {
			return user.ErrNotFound
		}
		return nil
	})

	return added, err
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, readpref.Primary())
}

func creationOrder() bson.D {
	return bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
}
