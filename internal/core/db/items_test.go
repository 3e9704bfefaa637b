package db

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/solatis/condengine/internal/codec"
	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/definitions"
	"github.com/solatis/condengine/internal/query"
	"github.com/solatis/condengine/internal/types"
)

const fixedUpdatedAt = "2024-03-15T12:00:00Z"

func testProfile() *types.Profile {
	return &types.Profile{
		ID:        "p1",
		ScopeName: "site",
		Properties: map[string]any{
			"city":   "Paris",
			"age":    float64(34),
			"orders": []any{map[string]any{"total": float64(150)}},
		},
		Segments: []string{"gold"},
	}
}

func testBuilder(t *testing.T) *conditions.Builder {
	t.Helper()
	reg, err := definitions.NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("NewBuiltinRegistry() error = %v", err)
	}
	return conditions.NewBuilder(reg)
}

func TestItemStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	p := testProfile()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM item_fields")).
		WithArgs(types.ItemTypeProfile, "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM items")).
		WithArgs(types.ItemTypeProfile, "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO items")).
		WithArgs(types.ItemTypeProfile, "p1", "site", sqlmock.AnyArg(), fixedUpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	for range fieldRows(query.Index(p)) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO item_fields")).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	if err := store.Save(context.Background(), p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestItemStore_SaveRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM item_fields")).WillReturnError(boom)
	mock.ExpectRollback()

	err := store.Save(context.Background(), testProfile())
	if !errors.Is(err, boom) {
		t.Errorf("Save() error = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestItemStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	body, err := codec.MarshalItem(testProfile())
	if err != nil {
		t.Fatalf("MarshalItem() error = %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT body FROM items")).
		WithArgs(types.ItemTypeProfile, "p1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(string(body)))

	item, err := store.Get(context.Background(), types.ItemTypeProfile, "p1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	p, ok := item.(*types.Profile)
	if !ok {
		t.Fatalf("item = %T, want *types.Profile", item)
	}
	if p.ID != "p1" || p.Properties["city"] != "Paris" {
		t.Errorf("profile = %+v", p)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT body FROM items")).
		WithArgs(types.ItemTypeProfile, "missing").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	if _, err := store.Get(context.Background(), types.ItemTypeProfile, "missing"); !errors.Is(err, types.ErrItemNotFound) {
		t.Errorf("Get() error = %v, want ErrItemNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestItemStore_DeleteMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM item_fields")).
		WithArgs(types.ItemTypeProfile, "p9").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM items")).
		WithArgs(types.ItemTypeProfile, "p9").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := store.Delete(context.Background(), types.ItemTypeProfile, "p9"); !errors.Is(err, types.ErrItemNotFound) {
		t.Errorf("Delete() error = %v, want ErrItemNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestItemStore_QueryCount(t *testing.T) {
	store, mock := newMockStore(t)
	c, err := testBuilder(t).ProfileProperty("properties.city").Equals("Paris").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS .n. FROM .items. AS .i.`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(2)))

	n, err := store.QueryCount(context.Background(), c, types.ItemTypeProfile)
	if err != nil {
		t.Fatalf("QueryCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("QueryCount() = %d, want 2", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestItemStore_AggregateQuery(t *testing.T) {
	store, mock := newMockStore(t)
	c, err := testBuilder(t).MatchAll().Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	mock.ExpectQuery(`GROUP BY .v.\..raw_value.`).
		WillReturnRows(sqlmock.NewRows([]string{"value", "n"}).
			AddRow("p1", int64(3)).
			AddRow("p2", int64(1)))

	agg := conditions.Aggregate{Field: "profileId", Size: 100}
	buckets, err := store.AggregateQuery(context.Background(), c, agg, types.ItemTypeEvent)
	if err != nil {
		t.Fatalf("AggregateQuery() error = %v", err)
	}
	if len(buckets) != 2 || buckets["p1"] != 3 || buckets["p2"] != 1 {
		t.Errorf("buckets = %v", buckets)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestItemStore_UnsupportedFilter(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.CountFilter(context.Background(), query.GeoDistance{Field: "properties.location", Meters: 10}, types.ItemTypeProfile)
	if !errors.Is(err, types.ErrUnsupportedFilter) {
		t.Errorf("CountFilter() error = %v, want ErrUnsupportedFilter", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database access: %v", err)
	}
}
