package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/Dan9191/rent-service/internal/models"
	"github.com/Dan9191/rent-service/internal/timeutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	customersCollection = "customers"
	backupCollection    = "customers_backup"
)

type customerDocument struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty"`
	Name                  string             `bson:"name"`
	PhoneNumber           string             `bson:"phoneNumber"`
	Address               string             `bson:"address"`
	TaxOrIDNumber         string             `bson:"aadharNumber"`
	YearsOfEngagement     string             `bson:"yearOfEngagement"`
	AdvancedMoney         bsonAmount         `bson:"advancedMoney"`
	StartingRent          bsonAmount         `bson:"startingRent"`
	CurrentRent           bsonAmount         `bson:"currentRent"`
	IncreasePercentage    bsonAmount         `bson:"increasePercentage"`
	PreviousIncrementDate time.Time          `bson:"previousIncrementDate"`
	YearsUntilIncrease    int                `bson:"yearsUntilIncrease"`
	CreatedAt             time.Time          `bson:"createdAt"`
	UpdatedAt             time.Time          `bson:"updatedAt"`
}

type backupDocument struct {
	customerDocument `bson:",inline"`
	OriginalID       primitive.ObjectID `bson:"originalId"`
	BackedUpAt       time.Time          `bson:"backedUpAt"`
}

// bsonAmount is written as Decimal128. It also reads the doubles, integers
// and numeric strings found in documents written by the original app.
type bsonAmount decimal.Decimal

func (a bsonAmount) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d, err := primitive.ParseDecimal128(decimal.Decimal(a).String())
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode amount %s: %w", decimal.Decimal(a), err)
	}
	return bson.MarshalValue(d)
}

func (a *bsonAmount) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	var (
		d   decimal.Decimal
		err error
	)
	switch t {
	case bsontype.Null, bsontype.Undefined:
		d = decimal.Zero
	case bsontype.Decimal128:
		d, err = decimal.NewFromString(raw.Decimal128().String())
	case bsontype.Double:
		f := raw.Double()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("amount %v is not a number", f)
		}
		d = decimal.NewFromFloat(f)
	case bsontype.Int32:
		d = decimal.NewFromInt32(raw.Int32())
	case bsontype.Int64:
		d = decimal.NewFromInt(raw.Int64())
	case bsontype.String:
		s := strings.TrimSpace(raw.StringValue())
		if s == "" {
			d = decimal.Zero
		} else {
			d, err = decimal.NewFromString(s)
		}
	default:
		return fmt.Errorf("cannot decode %s into an amount", t)
	}
	if err != nil {
		return fmt.Errorf("failed to decode amount: %w", err)
	}
	*a = bsonAmount(d)
	return nil
}

func toDocument(c *models.Customer) (*customerDocument, error) {
	doc := &customerDocument{
		Name:                  c.Name,
		PhoneNumber:           c.PhoneNumber,
		Address:               c.Address,
		TaxOrIDNumber:         c.TaxOrIDNumber,
		YearsOfEngagement:     string(c.YearsOfEngagement),
		PreviousIncrementDate: c.PreviousIncrementDate,
		YearsUntilIncrease:    c.YearsUntilIncrease,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
	if c.ID != "" {
		oid, err := primitive.ObjectIDFromHex(c.ID)
		if err != nil {
			return nil, ErrNotFound
		}
		doc.ID = oid
	}
	doc.AdvancedMoney = bsonAmount(c.AdvancedMoney)
	doc.StartingRent = bsonAmount(c.StartingRent)
	doc.CurrentRent = bsonAmount(c.CurrentRent)
	doc.IncreasePercentage = bsonAmount(c.IncreasePercentage)
	return doc, nil
}

func fromDocument(doc *customerDocument) *models.Customer {
	c := &models.Customer{
		ID:                 doc.ID.Hex(),
		Name:               doc.Name,
		PhoneNumber:        doc.PhoneNumber,
		Address:            doc.Address,
		TaxOrIDNumber:      doc.TaxOrIDNumber,
		YearsOfEngagement:  models.FlexString(doc.YearsOfEngagement),
		AdvancedMoney:      decimal.Decimal(doc.AdvancedMoney),
		StartingRent:       decimal.Decimal(doc.StartingRent),
		CurrentRent:        decimal.Decimal(doc.CurrentRent),
		IncreasePercentage: decimal.Decimal(doc.IncreasePercentage),
		YearsUntilIncrease: doc.YearsUntilIncrease,
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
	}
	if !doc.PreviousIncrementDate.IsZero() {
		c.PreviousIncrementDate = timeutil.StartOfDay(doc.PreviousIncrementDate)
	}
	return c
}

// MongoRepository stores customers in a MongoDB collection
type MongoRepository struct {
	coll *mongo.Collection
	log  *logrus.Logger
}

// NewMongoRepository initializes a repository over db's customers collection
func NewMongoRepository(db *mongo.Database, log *logrus.Logger) *MongoRepository {
	return &MongoRepository{coll: db.Collection(customersCollection), log: log}
}

// Migrate creates the name index used by Search
func (r *MongoRepository) Migrate(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}})
	if err != nil {
		return fmt.Errorf("failed to create name index: %w", err)
	}
	return nil
}

// Create inserts a new customer
func (r *MongoRepository) Create(ctx context.Context, c *models.Customer) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	stored := c.Clone()
	stored.ID = ""
	stored.CreatedAt, stored.UpdatedAt = now, now
	doc, err := toDocument(stored)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	c.ID = doc.ID.Hex()
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a customer by id
func (r *MongoRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc customerDocument
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}
	return fromDocument(&doc), nil
}

// Update replaces the stored document, keeping its creation time. The write
// only lands when the stored updatedAt still equals c.UpdatedAt.
func (r *MongoRepository) Update(ctx context.Context, c *models.Customer) error {
	doc, err := toDocument(c)
	if err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	set := bson.M{
		"name":                  doc.Name,
		"phoneNumber":           doc.PhoneNumber,
		"address":               doc.Address,
		"aadharNumber":          doc.TaxOrIDNumber,
		"yearOfEngagement":      doc.YearsOfEngagement,
		"advancedMoney":         doc.AdvancedMoney,
		"startingRent":          doc.StartingRent,
		"currentRent":           doc.CurrentRent,
		"increasePercentage":    doc.IncreasePercentage,
		"previousIncrementDate": doc.PreviousIncrementDate,
		"yearsUntilIncrease":    doc.YearsUntilIncrease,
		"updatedAt":             doc.UpdatedAt,
	}
	var updated struct {
		CreatedAt time.Time `bson:"createdAt"`
		UpdatedAt time.Time `bson:"updatedAt"`
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"createdAt": 1, "updatedAt": 1})
	err = r.coll.FindOneAndUpdate(ctx, versionFilter(doc.ID, c.UpdatedAt), bson.M{"$set": set}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": doc.ID})
		if err != nil {
			return fmt.Errorf("failed to update customer: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = updated.CreatedAt, updated.UpdatedAt
	return nil
}

// versionFilter matches id at the given version. Records written by the
// original app carry no updatedAt, which a null match covers.
func versionFilter(id primitive.ObjectID, updatedAt time.Time) bson.M {
	if updatedAt.IsZero() {
		return bson.M{"_id": id, "updatedAt": nil}
	}
	return bson.M{"_id": id, "updatedAt": updatedAt}
}

// Delete removes a customer
func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Search lists customers whose name contains query, ignoring case
func (r *MongoRepository) Search(ctx context.Context, query string) ([]*models.Customer, error) {
	filter := bson.M{}
	if q := strings.TrimSpace(query); q != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	}
	// ObjectIDs grow with insertion time
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}
	return r.decodeAll(ctx, cur)
}

// decodeAll reads every document of cur. A document that does not decode is
// logged and skipped so one malformed record cannot hide the rest.
func (r *MongoRepository) decodeAll(ctx context.Context, cur *mongo.Cursor) ([]*models.Customer, error) {
	defer cur.Close(ctx)

	customers := []*models.Customer{}
	for cur.Next(ctx) {
		var doc customerDocument
		if err := cur.Decode(&doc); err != nil {
			id := "unknown"
			if oid, ok := cur.Current.Lookup("_id").ObjectIDOK(); ok {
				id = oid.Hex()
			}
			r.log.WithField("customer_id", id).Warnf("Skipping customer that cannot be decoded: %v", err)
			continue
		}
		customers = append(customers, fromDocument(&doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to read customers: %w", err)
	}
	return customers, nil
}

// MongoBackup writes audit copies into the customers_backup collection
type MongoBackup struct {
	coll *mongo.Collection
}

// NewMongoBackup initializes the Mongo backup store
func NewMongoBackup(db *mongo.Database) *MongoBackup {
	return &MongoBackup{coll: db.Collection(backupCollection)}
}

// Mirror upserts the audit copy of c
func (b *MongoBackup) Mirror(ctx context.Context, c *models.Customer) error {
	doc, err := toDocument(c)
	if err != nil {
		return fmt.Errorf("failed to back up customer %s: %w", c.ID, err)
	}
	backup := backupDocument{
		customerDocument: *doc,
		OriginalID:       doc.ID,
		BackedUpAt:       time.Now().UTC(),
	}
	_, err = b.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, backup, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to back up customer %s: %w", c.ID, err)
	}
	return nil
}
