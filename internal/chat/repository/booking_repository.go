package repository

import (
	"context"
	"fmt"

	"tour_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	// BookingsCollection bookings written by the booking site
	BookingsCollection = "bookings"
	// ToursCollection tour catalog
	ToursCollection = "tours"

	paymentStatusPaid = "paid"
)

// BookingRepository read side of the booking collections
type BookingRepository interface {
	FindPaidGroups(ctx context.Context, email string) ([]domain.Group, error)
}

type bookingDocument struct {
	ID       interface{} `bson:"_id"`
	TourID   interface{} `bson:"tourId"`
	Title    string      `bson:"title"`
	TourName string      `bson:"tourName"`
}

type tourDocument struct {
	ID     primitive.ObjectID `bson:"_id"`
	Title  string             `bson:"title"`
	Images []string           `bson:"images"`
}

type mongoBookingRepository struct {
	bookings *mongo.Collection
	tours    *mongo.Collection
}

// NewMongoBookingRepository create a BookingRepository
func NewMongoBookingRepository(db *mongo.Database) BookingRepository {
	return &mongoBookingRepository{
		bookings: db.Collection(BookingsCollection),
		tours:    db.Collection(ToursCollection),
	}
}

func (r *mongoBookingRepository) FindPaidGroups(ctx context.Context, email string) ([]domain.Group, error) {
	cur, err := r.bookings.Find(ctx, bson.M{"userEmail": email, "paymentStatus": paymentStatusPaid})
	if err != nil {
		return nil, fmt.Errorf("find paid bookings: %w", err)
	}
	var bookings []bookingDocument
	if err := cur.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(bookings))
	for _, b := range bookings {
		if id, ok := toObjectID(b.TourID); ok {
			ids = append(ids, id)
		}
	}

	tours := map[primitive.ObjectID]tourDocument{}
	if len(ids) > 0 {
		tcur, err := r.tours.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, fmt.Errorf("find tours: %w", err)
		}
		var docs []tourDocument
		if err := tcur.All(ctx, &docs); err != nil {
			return nil, fmt.Errorf("decode tours: %w", err)
		}
		for _, t := range docs {
			tours[t.ID] = t
		}
	}

	return buildGroups(bookings, tours), nil
}

// buildGroups one group per booking, tour title and first image when the tour resolves
func buildGroups(bookings []bookingDocument, tours map[primitive.ObjectID]tourDocument) []domain.Group {
	groups := make([]domain.Group, 0, len(bookings))
	for _, b := range bookings {
		g := domain.Group{
			ID:    idString(b.ID),
			Image: domain.DefaultImage,
		}

		var tour tourDocument
		var found bool
		if id, ok := toObjectID(b.TourID); ok {
			tour, found = tours[id]
		}

		switch {
		case found && tour.Title != "":
			g.TourName = tour.Title
		case b.Title != "":
			g.TourName = b.Title
		case b.TourName != "":
			g.TourName = b.TourName
		default:
			g.TourName = domain.UnknownTour
		}
		if found && len(tour.Images) > 0 && tour.Images[0] != "" {
			g.Image = tour.Images[0]
		}

		groups = append(groups, g)
	}
	return groups
}

func toObjectID(v interface{}) (primitive.ObjectID, bool) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id, true
	case string:
		oid, err := primitive.ObjectIDFromHex(id)
		return oid, err == nil
	default:
		return primitive.NilObjectID, false
	}
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

type memoryBookingRepository struct {
	groups map[string][]domain.Group
}

// NewMemoryBookingRepository fixed email to groups table, used with the memory store
func NewMemoryBookingRepository(groups map[string][]domain.Group) BookingRepository {
	if groups == nil {
		groups = map[string][]domain.Group{}
	}
	return &memoryBookingRepository{groups: groups}
}

func (r *memoryBookingRepository) FindPaidGroups(ctx context.Context, email string) ([]domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Group, len(r.groups[email]))
	copy(out, r.groups[email])
	return out, nil
}
