package testing

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/pkg/future"
)

// TestRecord is the record type stored by the MetadataStore suite.
type TestRecord struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Key implements metastore.Record.
func (r *TestRecord) Key() string { return r.ID }

// RecordStore is the part of a metadata store exercised by the suite.
type RecordStore interface {
	Save(ctx context.Context, rec *TestRecord) *future.Future[*TestRecord]
	Delete(ctx context.Context, rec *TestRecord) *future.Future[struct{}]
	Get(key string) (*TestRecord, bool)
	GetAll() []*TestRecord
	WaitForInitialization(maxWait, idle time.Duration) *future.Future[bool]
}

// MetadataStoreFields are records written to the backing topic before the
// store under test is opened.
type MetadataStoreFields struct {
	Records []*TestRecord
	// Deleted keys get a tombstone after all Records were written.
	Deleted []string
}

var recordCmpOptions = cmp.Options{
	cmp.Transformer("Sort", func(in []*TestRecord) []*TestRecord {
		out := append([]*TestRecord(nil), in...)
		sort.Slice(out, func(i, j int) bool {
			return out[i].ID < out[j].ID
		})
		return out
	}),
}

// MetadataStore tests all the store functions.
func MetadataStore(
	init func(MetadataStoreFields, *testing.T) (RecordStore, func()), t *testing.T,
) {
	tests := []struct {
		name string
		fn   func(init func(MetadataStoreFields, *testing.T) (RecordStore, func()),
			t *testing.T)
	}{
		{
			name: "InitialLoad",
			fn:   InitialLoad,
		},
		{
			name: "SaveThenGet",
			fn:   SaveThenGet,
		},
		{
			name: "DeleteRecord",
			fn:   DeleteRecord,
		},
		{
			name: "EmptyKey",
			fn:   EmptyKey,
		},
		{
			name: "InitializeEmptyTopic",
			fn:   InitializeEmptyTopic,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt := tt
			t.Parallel()
			tt.fn(init, t)
		})
	}
}

// InitialLoad testing
func InitialLoad(
	init func(MetadataStoreFields, *testing.T) (RecordStore, func()),
	t *testing.T,
) {
	tests := []struct {
		name   string
		fields MetadataStoreFields
		wants  []*TestRecord
	}{
		{
			name: "last write wins",
			fields: MetadataStoreFields{
				Records: []*TestRecord{
					{ID: "a", Value: "1"},
					{ID: "b", Value: "1"},
					{ID: "a", Value: "2"},
				},
			},
			wants: []*TestRecord{
				{ID: "a", Value: "2"},
				{ID: "b", Value: "1"},
			},
		},
		{
			name: "tombstones remove keys",
			fields: MetadataStoreFields{
				Records: []*TestRecord{
					{ID: "a", Value: "1"},
					{ID: "b", Value: "1"},
				},
				Deleted: []string{"a"},
			},
			wants: []*TestRecord{
				{ID: "b", Value: "1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, done := init(tt.fields, t)
			defer done()

			ok, err := s.WaitForInitialization(awaitTimeout, time.Second).Await(awaitContext(t))
			if err != nil {
				t.Fatalf("failed to initialize: %v", err)
			}
			if !ok {
				t.Fatal("store did not report initialization")
			}

			if diff := cmp.Diff(s.GetAll(), tt.wants, recordCmpOptions...); diff != "" {
				t.Errorf("records are different -got/+want\ndiff %s", diff)
			}
		})
	}
}

// SaveThenGet testing
func SaveThenGet(
	init func(MetadataStoreFields, *testing.T) (RecordStore, func()),
	t *testing.T,
) {
	s, done := init(MetadataStoreFields{}, t)
	defer done()
	ctx := awaitContext(t)

	rec := &TestRecord{ID: "topic-1", Value: "v1"}
	saved, err := s.Save(ctx, rec).Await(ctx)
	if err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if diff := cmp.Diff(saved, rec); diff != "" {
		t.Errorf("saved record is different -got/+want\ndiff %s", diff)
	}

	// no waiting: the save future only resolves once the view contains it.
	got, ok := s.Get("topic-1")
	if !ok {
		t.Fatal("record not visible after save resolved")
	}
	if diff := cmp.Diff(got, rec); diff != "" {
		t.Errorf("read record is different -got/+want\ndiff %s", diff)
	}

	update := &TestRecord{ID: "topic-1", Value: "v2"}
	if _, err := s.Save(ctx, update).Await(ctx); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	got, _ = s.Get("topic-1")
	if got.Value != "v2" {
		t.Errorf("expected updated value v2, got %q", got.Value)
	}
}

// DeleteRecord testing
func DeleteRecord(
	init func(MetadataStoreFields, *testing.T) (RecordStore, func()),
	t *testing.T,
) {
	s, done := init(MetadataStoreFields{
		Records: []*TestRecord{{ID: "a", Value: "1"}, {ID: "b", Value: "2"}},
	}, t)
	defer done()
	ctx := awaitContext(t)

	if _, err := s.WaitForInitialization(awaitTimeout, time.Second).Await(ctx); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}

	if _, err := s.Delete(ctx, &TestRecord{ID: "a"}).Await(ctx); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("deleted record still visible")
	}

	want := []*TestRecord{{ID: "b", Value: "2"}}
	if diff := cmp.Diff(s.GetAll(), want, recordCmpOptions...); diff != "" {
		t.Errorf("records are different -got/+want\ndiff %s", diff)
	}
}

// EmptyKey testing
func EmptyKey(
	init func(MetadataStoreFields, *testing.T) (RecordStore, func()),
	t *testing.T,
) {
	s, done := init(MetadataStoreFields{}, t)
	defer done()
	ctx := awaitContext(t)

	_, err := s.Save(ctx, &TestRecord{Value: "no key"}).Await(ctx)
	if code := errors.ErrorCode(err); code != errors.EInvalid {
		t.Fatalf("expected error code %q, got %q (%v)", errors.EInvalid, code, err)
	}
}

// InitializeEmptyTopic testing
func InitializeEmptyTopic(
	init func(MetadataStoreFields, *testing.T) (RecordStore, func()),
	t *testing.T,
) {
	s, done := init(MetadataStoreFields{}, t)
	defer done()

	const maxWait = 10 * time.Second
	start := time.Now()
	ok, err := s.WaitForInitialization(maxWait, 50*time.Millisecond).Await(awaitContext(t))
	if err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	if !ok {
		t.Fatal("empty store did not report initialization")
	}
	if took := time.Since(start); took >= maxWait {
		t.Fatalf("initialization waited for max wait (%s)", took)
	}
}
