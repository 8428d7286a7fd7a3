package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"boop/server/internal/geo"
	"boop/server/internal/models"
	"boop/server/internal/store"
)

const (
	usersCollection  = "users"
	groupsCollection = "groups"
)

type userDoc struct {
	ID                string            `bson:"_id"`
	Name              string            `bson:"name"`
	Email             string            `bson:"email"`
	ProfilePicture    *string           `bson:"profile_picture,omitempty"`
	Location          *models.GeoJSON   `bson:"location,omitempty"`
	LocationUpdatedAt *time.Time        `bson:"location_updated_at,omitempty"`
	GroupID           *string           `bson:"group_id"`
	Thresholds        models.Thresholds `bson:"thresholds"`
	Privacy           models.Privacy    `bson:"privacy"`
	CreatedAt         time.Time         `bson:"created_at"`
	UpdatedAt         time.Time         `bson:"updated_at"`
}

func (d *userDoc) toModel() *models.User {
	return &models.User{
		ID:                d.ID,
		Name:              d.Name,
		Email:             d.Email,
		ProfilePicture:    d.ProfilePicture,
		Location:          d.Location.Point(),
		LocationUpdatedAt: d.LocationUpdatedAt,
		GroupID:           d.GroupID,
		Thresholds:        d.Thresholds,
		Privacy:           d.Privacy,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type boopDoc struct {
	ID        string          `bson:"id"`
	Booper    string          `bson:"booper"`
	Boopee    string          `bson:"boopee"`
	Timestamp time.Time       `bson:"timestamp"`
	Location  *models.GeoJSON `bson:"location,omitempty"`
}

type groupDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Users     []string  `bson:"users"`
	BoopLog   []boopDoc `bson:"boop_log"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d *groupDoc) toModel() *models.Group {
	g := &models.Group{
		ID:        d.ID,
		Name:      d.Name,
		Members:   append([]string{}, d.Users...),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, b := range d.BoopLog {
		g.BoopLog = append(g.BoopLog, b.toModel())
	}
	return g
}

func (b boopDoc) toModel() models.BoopRecord {
	return models.BoopRecord{
		ID:        b.ID,
		Booper:    b.Booper,
		Boopee:    b.Boopee,
		Timestamp: b.Timestamp,
		Location:  b.Location.Point(),
	}
}

// Store keeps users and groups as documents, the way the mobile backend
// always has. Locations are GeoJSON points under a 2dsphere index.
type Store struct {
	db     *mongo.Database
	users  *mongo.Collection
	groups *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New creates the store and makes sure the geo index exists
func New(ctx context.Context, db *mongo.Database) (*Store, error) {
	s := &Store{
		db:     db,
		users:  db.Collection(usersCollection),
		groups: db.Collection(groupsCollection),
	}

	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create location index: %w", err)
	}
	return s, nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": uid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toModel(), nil
}

func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	set := bson.M{
		"name":            user.Name,
		"email":           user.Email,
		"profile_picture": user.ProfilePicture,
		"thresholds":      user.Thresholds,
		"privacy":         user.Privacy,
		"updated_at":      user.UpdatedAt,
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": user.CreatedAt, "group_id": nil},
	}
	if user.Location != nil {
		set["location"] = models.PointToGeoJSON(user.Location)
		set["location_updated_at"] = user.LocationUpdatedAt
	} else {
		update["$unset"] = bson.M{"location": "", "location_updated_at": ""}
	}

	_, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *Store) SetLocation(ctx context.Context, uid string, p geo.Point, at time.Time) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": bson.M{
		"location":            models.PointToGeoJSON(&p),
		"location_updated_at": at,
		"updated_at":          at,
	}})
	if err != nil {
		return fmt.Errorf("failed to set location: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// FindWithinRadius uses $nearSphere, so results come back nearest first and
// need no bounding box.
func (s *Store) FindWithinRadius(ctx context.Context, center geo.Point, radius float64, exclude string) ([]models.Candidate, error) {
	filter := bson.M{
		"_id":                              bson.M{"$ne": exclude},
		"privacy.share_location":           true,
		"privacy.proximity_alerts_enabled": true,
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry":    models.PointToGeoJSON(&center),
				"$maxDistance": radius,
			},
		},
	}
	opts := options.Find().SetProjection(bson.M{"name": 1, "location": 1, "group_id": 1, "privacy": 1})

	cursor, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby users: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Candidate
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode nearby user: %w", err)
		}
		if doc.Location == nil {
			continue
		}
		c := models.Candidate{
			UID:                    doc.ID,
			Name:                   doc.Name,
			Location:               *doc.Location.Point(),
			ProximityAlertsEnabled: doc.Privacy.ProximityAlertsEnabled,
		}
		if doc.GroupID != nil {
			c.GroupID = *doc.GroupID
		}
		out = append(out, c)
	}
	return out, cursor.Err()
}

func (s *Store) getGroupDoc(ctx context.Context, groupID string, projection bson.M) (*groupDoc, error) {
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}
	var doc groupDoc
	err := s.groups.FindOne(ctx, bson.M{"_id": groupID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &doc, nil
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	doc, err := s.getGroupDoc(ctx, groupID, nil)
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// CreateGroup claims each member with a conditional update and undoes the
// claims if any member is missing or already grouped.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	members := make([]string, 0, len(group.Members))
	seen := make(map[string]bool, len(group.Members))
	for _, uid := range group.Members {
		if !seen[uid] {
			seen[uid] = true
			members = append(members, uid)
		}
	}

	now := time.Now()
	doc := groupDoc{ID: group.ID, Name: group.Name, Users: members, BoopLog: []boopDoc{}, CreatedAt: now, UpdatedAt: now}
	if _, err := s.groups.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	var claimed []string
	rollback := func(cause error) error {
		if len(claimed) > 0 {
			_, _ = s.users.UpdateMany(ctx,
				bson.M{"_id": bson.M{"$in": claimed}, "group_id": group.ID},
				bson.M{"$set": bson.M{"group_id": nil}})
		}
		_, _ = s.groups.DeleteOne(ctx, bson.M{"_id": group.ID})
		return cause
	}

	for _, uid := range members {
		res, err := s.users.UpdateOne(ctx,
			bson.M{"_id": uid, "group_id": nil},
			bson.M{"$set": bson.M{"group_id": group.ID, "updated_at": now}})
		if err != nil {
			return rollback(fmt.Errorf("failed to set group for %s: %w", uid, err))
		}
		if res.MatchedCount == 0 {
			if _, err := s.GetUser(ctx, uid); err != nil {
				return rollback(fmt.Errorf("member %s: %w", uid, err))
			}
			return rollback(fmt.Errorf("member %s: %w", uid, store.ErrAlreadyMember))
		}
		claimed = append(claimed, uid)
	}

	group.Members = members
	group.CreatedAt, group.UpdatedAt = now, now
	return nil
}

func (s *Store) SharedGroup(ctx context.Context, uidA, uidB string) (string, error) {
	cursor, err := s.users.Find(ctx,
		bson.M{"_id": bson.M{"$in": []string{uidA, uidB}}},
		options.Find().SetProjection(bson.M{"group_id": 1}))
	if err != nil {
		return "", fmt.Errorf("failed to query groups: %w", err)
	}
	defer cursor.Close(ctx)

	groups := make(map[string]*string, 2)
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return "", fmt.Errorf("failed to decode user: %w", err)
		}
		groups[doc.ID] = doc.GroupID
	}
	if err := cursor.Err(); err != nil {
		return "", err
	}

	a, okA := groups[uidA]
	b, okB := groups[uidB]
	if !okA || !okB {
		return "", store.ErrUserNotFound
	}
	if a == nil || b == nil || *a != *b {
		return "", nil
	}
	return *a, nil
}

func (s *Store) Members(ctx context.Context, groupID string) ([]string, error) {
	doc, err := s.getGroupDoc(ctx, groupID, bson.M{"users": 1})
	if err != nil {
		return nil, err
	}
	return append([]string{}, doc.Users...), nil
}

func (s *Store) AppendBoop(ctx context.Context, groupID string, rec models.BoopRecord) error {
	entry := boopDoc{
		ID:        rec.ID,
		Booper:    rec.Booper,
		Boopee:    rec.Boopee,
		Timestamp: rec.Timestamp,
		Location:  models.PointToGeoJSON(rec.Location),
	}
	res, err := s.groups.UpdateOne(ctx, bson.M{"_id": groupID}, bson.M{
		"$push": bson.M{"boop_log": entry},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to append boop: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrGroupNotFound
	}
	return nil
}

func (s *Store) BoopLog(ctx context.Context, groupID string) ([]models.BoopRecord, error) {
	doc, err := s.getGroupDoc(ctx, groupID, bson.M{"boop_log": 1})
	if err != nil {
		return nil, err
	}
	out := make([]models.BoopRecord, 0, len(doc.BoopLog))
	for _, b := range doc.BoopLog {
		out = append(out, b.toModel())
	}
	return out, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}
