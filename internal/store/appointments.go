package store

import (
	"context"
	"time"

	"github.com/harentsoaR/hospital-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AppointmentUpdate is a partial update; nil fields are left unchanged.
type AppointmentUpdate struct {
	Status     *models.AppointmentStatus
	HasVisited *bool
	UpdatedAt  time.Time
}

type AppointmentRepo struct {
	coll *mongo.Collection
}

func (r *AppointmentRepo) Create(ctx context.Context, apt *models.Appointment) error {
	if apt.ID.IsZero() {
		apt.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, apt)
	return translate(err)
}

// List returns every appointment, newest first.
func (r *AppointmentRepo) List(ctx context.Context) ([]models.Appointment, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	appointments := make([]models.Appointment, 0)
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *AppointmentRepo) Update(ctx context.Context, id primitive.ObjectID, u AppointmentUpdate) (*models.Appointment, error) {
	set := bson.M{"updatedAt": u.UpdatedAt}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.HasVisited != nil {
		set["hasVisited"] = *u.HasVisited
	}

	var apt models.Appointment
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&apt)
	if err != nil {
		return nil, translate(err)
	}
	return &apt, nil
}

func (r *AppointmentRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
