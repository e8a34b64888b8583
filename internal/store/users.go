package store

import (
	"context"

	"github.com/harentsoaR/hospital-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DoctorSort string

const (
	SortByName      DoctorSort = "name"
	SortByInsertion DoctorSort = "insertion"
)

// DoctorFilter narrows a doctor query. Empty fields match everything.
type DoctorFilter struct {
	Department string
	FullNameCI string
	Sort       DoctorSort
}

type UserRepo struct {
	coll *mongo.Collection
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, u)
	return translate(err)
}

func (r *UserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindByEmail expects an already lower-cased email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepo) FindDoctors(ctx context.Context, f DoctorFilter) ([]models.User, error) {
	filter := bson.M{"role": models.RoleDoctor}
	if f.Department != "" {
		filter["doctorDepartment"] = f.Department
	}
	if f.FullNameCI != "" {
		filter["fullNameCI"] = f.FullNameCI
	}

	sort := bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	if f.Sort == SortByName {
		sort = bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}, {Key: "_id", Value: 1}}
	}

	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	doctors := make([]models.User, 0)
	if err := cursor.All(ctx, &doctors); err != nil {
		return nil, err
	}
	return doctors, nil
}
