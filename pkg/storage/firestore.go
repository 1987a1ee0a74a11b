package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

const (
	collConfig   = "config"
	collHolidays = "holidays"
	collPrices   = "prices"

	docSettings = "settings"
)

// FirestoreProvider stores everything as JSON strings in Firestore documents:
// settings in config/settings, holiday sets in holidays/{source}-{year} and
// prices in prices/{RFC3339 start}.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Firestore project ID, detected from the environment when empty")
	database := lflag.String("firestore-database", "", "Firestore database ID, the default database when empty")
	emulator := lflag.String("firestore-emulator", "", "Firestore emulator host:port")

	f := &FirestoreProvider{}
	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database
		// the client only reads the emulator address from the environment
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})
	return f
}

// Validate checks the provider configuration. The project ID may be inferred
// from the environment so nothing is required.
func (f *FirestoreProvider) Validate() error {
	return nil
}

// Init connects the client. It must be called before any other method.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to connect to firestore %s/%s: %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close releases the client.
func (f *FirestoreProvider) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}

// decodeJSONDoc unmarshals the "json" field of doc into v.
func decodeJSONDoc(ctx context.Context, doc *firestore.DocumentSnapshot, v any) error {
	raw, err := doc.DataAt("json")
	if err != nil {
		return fmt.Errorf("document %s has no json field: %w", doc.Ref.Path, err)
	}
	s, ok := raw.(string)
	if !ok {
		return fmt.Errorf("document %s json field is %T, not string", doc.Ref.Path, raw)
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "undecodable document", slog.String("path", doc.Ref.Path), slog.Any("error", err))
		return fmt.Errorf("failed to decode %s: %w", doc.Ref.Path, err)
	}
	return nil
}

// getJSONDoc reads ref into v. It returns ErrNotFound when the document
// doesn't exist.
func getJSONDoc(ctx context.Context, ref *firestore.DocumentRef, v any) (*firestore.DocumentSnapshot, error) {
	doc, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref.Path, err)
	}
	if err := decodeJSONDoc(ctx, doc, v); err != nil {
		return nil, err
	}
	return doc, nil
}

// setJSONDoc writes v as the json field of ref together with extra fields.
func setJSONDoc(ctx context.Context, ref *firestore.DocumentRef, v any, extra map[string]any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ref.Path, err)
	}
	data := map[string]any{"json": string(b)}
	for k, val := range extra {
		data[k] = val
	}
	if _, err := ref.Set(ctx, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", ref.Path, err)
	}
	return nil
}

// GetSettings returns the stored settings and their version. Missing
// settings are the zero value at version 0.
func (f *FirestoreProvider) GetSettings(ctx context.Context) (types.Settings, int, error) {
	var s types.Settings
	doc, err := getJSONDoc(ctx, f.client.Collection(collConfig).Doc(docSettings), &s)
	switch {
	case errors.Is(err, ErrNotFound):
		return types.Settings{}, 0, nil
	case err != nil:
		return types.Settings{}, 0, err
	}

	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if n, ok := v.(int64); ok {
			version = int(n)
		}
	}
	return s, version, nil
}

// SetSettings stores the settings at the given version.
func (f *FirestoreProvider) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	return setJSONDoc(ctx, f.client.Collection(collConfig).Doc(docSettings), settings, map[string]any{
		"version": version,
	})
}

func holidayDocID(year int, source string) string {
	return fmt.Sprintf("%s-%d", source, year)
}

// GetHolidaySet returns the stored set of a year and source.
func (f *FirestoreProvider) GetHolidaySet(ctx context.Context, year int, source string) (types.HolidaySet, error) {
	var entries []types.HolidayEntry
	if _, err := getJSONDoc(ctx, f.client.Collection(collHolidays).Doc(holidayDocID(year, source)), &entries); err != nil {
		return nil, err
	}
	return types.HolidaySetFromEntries(entries), nil
}

// SetHolidaySet stores a holiday set, replacing any previous one.
func (f *FirestoreProvider) SetHolidaySet(ctx context.Context, year int, source string, set types.HolidaySet) error {
	return setJSONDoc(ctx, f.client.Collection(collHolidays).Doc(holidayDocID(year, source)), set.Entries(), map[string]any{
		"year":    year,
		"source":  source,
		"updated": time.Now(),
	})
}

func priceDocID(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

// UpsertPrices stores each price under its start so that document ID order
// is time order.
func (f *FirestoreProvider) UpsertPrices(ctx context.Context, prices []types.Price) error {
	coll := f.client.Collection(collPrices)
	for _, p := range prices {
		if err := setJSONDoc(ctx, coll.Doc(priceDocID(p.TSStart)), p, map[string]any{
			"timestamp": p.TSStart,
		}); err != nil {
			return err
		}
	}
	log.Ctx(ctx).DebugContext(ctx, "stored prices", slog.Int("count", len(prices)))
	return nil
}

// GetPriceHistory returns the prices starting within [start, end) by ranging
// over document IDs.
func (f *FirestoreProvider) GetPriceHistory(ctx context.Context, start, end time.Time) ([]types.Price, error) {
	coll := f.client.Collection(collPrices)
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(priceDocID(start))).
		Where(firestore.DocumentID, "<", coll.Doc(priceDocID(end))).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var prices []types.Price
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return prices, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list prices: %w", err)
		}
		var p types.Price
		if err := decodeJSONDoc(ctx, doc, &p); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
}
