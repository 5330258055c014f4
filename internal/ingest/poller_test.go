package ingest_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/footbar/fulfillment/internal/fulfill"
	"github.com/footbar/fulfillment/internal/ingest"
	"github.com/footbar/fulfillment/internal/pkg/distlock"
	"github.com/footbar/fulfillment/internal/order"
)

// memLedgerStore is an in-memory ledger store.
type memLedgerStore struct {
	mu      sync.Mutex
	ledgers map[string]*ingest.Ledger
	saves   int
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{ledgers: make(map[string]*ingest.Ledger)}
}

func (m *memLedgerStore) Load(_ context.Context, source string) (*ingest.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.ledgers[source]; ok {
		cp := *l
		cp.ProcessedIDs = append([]string(nil), l.ProcessedIDs...)
		return &cp, nil
	}
	return &ingest.Ledger{}, nil
}

func (m *memLedgerStore) Save(_ context.Context, source string, l *ingest.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	cp.ProcessedIDs = append([]string(nil), l.ProcessedIDs...)
	m.ledgers[source] = &cp
	m.saves++
	return nil
}

// fakeSource serves a fixed list of fetched orders filtered by since.
type fakeSource struct {
	name    string
	orders  []ingest.Fetched
	fetches int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchSince(_ context.Context, since time.Time) ([]ingest.Fetched, error) {
	f.fetches++
	var out []ingest.Fetched
	for _, o := range f.orders {
		if o.Timestamp.After(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

// fakeProcessor fulfills everything except ids listed in fail.
type fakeProcessor struct {
	processed []string
	fail      map[string]error
}

func (p *fakeProcessor) Process(_ context.Context, o order.Order) (*fulfill.Result, error) {
	if err, ok := p.fail[o.ID]; ok {
		return nil, err
	}
	p.processed = append(p.processed, o.ID)
	return &fulfill.Result{TotalKeys: 1, Details: []fulfill.Detail{{Sku: "METEOR-APP", Key: "K", QuantitySent: 1}}}, nil
}

func ts(minute int) time.Time {
	return time.Date(2026, 8, 1, 10, minute, 0, 0, time.UTC)
}

func fetchedOrder(id string, minute int) ingest.Fetched {
	return ingest.Fetched{
		ID:        id,
		Timestamp: ts(minute),
		Order: order.Order{
			ID: id, Source: order.SourceDecathlon, Email: "jo@example.com",
			Lines: []order.Line{{Sku: "METEOR-APP", Quantity: 1}},
		},
	}
}

func TestPollProcessesNewOrders(t *testing.T) {
	store := newMemLedgerStore()
	proc := &fakeProcessor{}
	poller := ingest.NewPoller(store, proc, distlock.NewLocalLocker())
	src := &fakeSource{name: "decathlon", orders: []ingest.Fetched{
		fetchedOrder("a", 1), fetchedOrder("b", 2),
	}}

	summary, err := poller.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Processed != 2 || summary.Failures != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(proc.processed) != 2 {
		t.Fatalf("expected 2 fulfillments, got %v", proc.processed)
	}

	ledger, _ := store.Load(context.Background(), "decathlon")
	if !ledger.LastSeen.Equal(ts(2)) {
		t.Fatalf("watermark not advanced: %v", ledger.LastSeen)
	}
}

func TestPollIdempotent(t *testing.T) {
	store := newMemLedgerStore()
	proc := &fakeProcessor{}
	poller := ingest.NewPoller(store, proc, distlock.NewLocalLocker())
	src := &fakeSource{name: "decathlon", orders: []ingest.Fetched{
		fetchedOrder("a", 1), fetchedOrder("b", 2),
	}}

	if _, err := poller.Run(context.Background(), src); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before, _ := store.Load(context.Background(), "decathlon")

	summary, err := poller.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatalf("second pass must process zero orders, got %d", summary.Processed)
	}
	if len(proc.processed) != 2 {
		t.Fatalf("orders fulfilled twice: %v", proc.processed)
	}

	after, _ := store.Load(context.Background(), "decathlon")
	if len(after.ProcessedIDs) != len(before.ProcessedIDs) {
		t.Fatalf("processed set changed on idempotent pass: %v vs %v",
			before.ProcessedIDs, after.ProcessedIDs)
	}
}

func TestPollAdvancesPerOrder(t *testing.T) {
	store := newMemLedgerStore()
	poller := ingest.NewPoller(store, &fakeProcessor{}, distlock.NewLocalLocker())
	src := &fakeSource{name: "decathlon", orders: []ingest.Fetched{
		fetchedOrder("a", 1), fetchedOrder("b", 2), fetchedOrder("c", 3),
	}}

	if _, err := poller.Run(context.Background(), src); err != nil {
		t.Fatalf("run: %v", err)
	}
	// One save per successful order, not one batched save at the end.
	if store.saves != 3 {
		t.Fatalf("expected 3 ledger saves, got %d", store.saves)
	}
}

func TestPollFailureHoldsWatermark(t *testing.T) {
	store := newMemLedgerStore()
	proc := &fakeProcessor{fail: map[string]error{"b": errors.New("pool exhausted")}}
	poller := ingest.NewPoller(store, proc, distlock.NewLocalLocker())
	src := &fakeSource{name: "decathlon", orders: []ingest.Fetched{
		fetchedOrder("a", 1), fetchedOrder("b", 2), fetchedOrder("c", 3),
	}}

	summary, err := poller.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Processed != 2 || summary.Failures != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	ledger, _ := store.Load(context.Background(), "decathlon")
	// Watermark stops before the failed order so "b" is re-fetched...
	if !ledger.LastSeen.Equal(ts(1)) {
		t.Fatalf("watermark must hold at the failure, got %v", ledger.LastSeen)
	}
	// ...while the later success "c" stays deduplicated by id.
	if ledger.IsNew("c") {
		t.Fatal("order c must be in the processed set")
	}

	// Next poll: b succeeds, c is a duplicate.
	proc.fail = nil
	summary, err = poller.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Processed != 1 || summary.Duplicates != 1 {
		t.Fatalf("retry pass wrong: %+v", summary)
	}
}

func TestPollUpstreamFetchErrorSkipsOrder(t *testing.T) {
	store := newMemLedgerStore()
	proc := &fakeProcessor{}
	poller := ingest.NewPoller(store, proc, distlock.NewLocalLocker())

	broken := fetchedOrder("b", 2)
	broken.Err = errors.New("detail fetch timed out")
	src := &fakeSource{name: "fnac", orders: []ingest.Fetched{
		fetchedOrder("a", 1), broken,
	}}

	summary, err := poller.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Processed != 1 || summary.Failures != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(proc.processed) != 1 || proc.processed[0] != "a" {
		t.Fatalf("only order a should be fulfilled, got %v", proc.processed)
	}

	ledger, _ := store.Load(context.Background(), "fnac")
	if !ledger.IsNew("b") {
		t.Fatal("failed order must not enter the processed set")
	}
}

func TestRunRejectsOverlappingPass(t *testing.T) {
	store := newMemLedgerStore()
	locker := distlock.NewLocalLocker()
	poller := ingest.NewPoller(store, &fakeProcessor{}, locker)
	src := &fakeSource{name: "decathlon"}

	held := locker.Lock("ledger:decathlon")
	ok, err := held.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("setup lock: ok=%v err=%v", ok, err)
	}
	defer held.Release(context.Background())

	_, err = poller.Run(context.Background(), src)
	if !errors.Is(err, ingest.ErrPassInProgress) {
		t.Fatalf("expected ErrPassInProgress, got %v", err)
	}
}
