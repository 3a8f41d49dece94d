package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/inhousecard/paycore/gateway"
)

// fakeSource serves canned payment details keyed by payment id.
type fakeSource struct {
	details map[string]*gateway.PaymentDetails
	err     error
	calls   int
}

func (f *fakeSource) Initialize(conf map[string]string) error { return nil }
func (f *fakeSource) Name() string                            { return "fake" }

func (f *fakeSource) PaymentDetails(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	details, ok := f.details[paymentID]
	if !ok {
		return nil, errors.New("payment not found")
	}
	return details, nil
}

// memOrderStore is an in-memory OrderStore with atomic updates.
type memOrderStore struct {
	mu       sync.Mutex
	orders   map[string]*Order
	writeErr error
	writes   int
}

func newMemOrderStore(orders ...*Order) *memOrderStore {
	s := &memOrderStore{orders: make(map[string]*Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memOrderStore) Get(ctx context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *memOrderStore) ApplyPayment(ctx context.Context, id string, update PaymentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	order, ok := s.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	s.writes++
	order.Status = update.Status
	order.PaymentStatus = update.PaymentStatus
	order.PaymentExternalID = update.PaymentExternalID
	order.PaymentMethod = update.PaymentMethod
	details := update.Details
	order.PaymentDetails = &details
	confirmed := update.ConfirmedAt
	order.PaymentConfirmedAt = &confirmed
	order.UpdatedAt = time.Now().UTC()
	return nil
}

// memAuditStore records appended entries.
type memAuditStore struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (s *memAuditStore) Append(ctx context.Context, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memAuditStore) byOutcome(outcome AuditOutcome) []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []AuditEntry
	for _, e := range s.entries {
		if e.Outcome == outcome {
			matched = append(matched, e)
		}
	}
	return matched
}

func paymentNotification(t *testing.T, id string) Notification {
	t.Helper()
	return Normalize([]byte(`{"topic":"payment","id":"` + id + `"}`))
}

func TestEngineProcessApprovedPayment(t *testing.T) {
	source := &fakeSource{details: map[string]*gateway.PaymentDetails{
		"123": {
			ID:                "123",
			Status:            "approved",
			StatusDetail:      "accredited",
			PaymentTypeID:     "account_money",
			PaymentMethodID:   "pix",
			TransactionAmount: 99.9,
			Installments:      1,
			ExternalReference: "order-1",
		},
	}}
	orders := newMemOrderStore(&Order{ID: "order-1", Status: StatusPending})
	audit := &memAuditStore{}
	engine := NewEngine(source, orders, audit, time.Second)

	err := engine.Process(context.Background(), paymentNotification(t, "123"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	order, _ := orders.Get(context.Background(), "order-1")
	if order.Status != StatusPaid {
		t.Errorf("order status = %s, want %s", order.Status, StatusPaid)
	}
	if order.PaymentStatus != "approved" {
		t.Errorf("payment status = %s, want approved", order.PaymentStatus)
	}
	if order.PaymentExternalID != "123" {
		t.Errorf("payment external id = %s, want 123", order.PaymentExternalID)
	}
	if order.PaymentDetails == nil || order.PaymentDetails.TransactionAmount != 99.9 {
		t.Error("payment details snapshot not written")
	}

	successes := audit.byOutcome(OutcomeSuccess)
	if len(successes) != 1 {
		t.Fatalf("success audit entries = %d, want 1", len(successes))
	}
	detail := successes[0].Detail
	if detail["old_status"] != "pending" || detail["new_status"] != "paid" {
		t.Errorf("success entry detail = %v, want pending -> paid", detail)
	}
	if successes[0].OrderID != "order-1" {
		t.Errorf("success entry order id = %s, want order-1", successes[0].OrderID)
	}
}

func TestEngineProcessIdempotentRedelivery(t *testing.T) {
	source := &fakeSource{details: map[string]*gateway.PaymentDetails{
		"123": {ID: "123", Status: "approved", ExternalReference: "order-1"},
	}}
	orders := newMemOrderStore(&Order{ID: "order-1", Status: StatusPending})
	audit := &memAuditStore{}
	engine := NewEngine(source, orders, audit, time.Second)

	n := paymentNotification(t, "123")
	for i := 0; i < 3; i++ {
		if err := engine.Process(context.Background(), n); err != nil {
			t.Fatalf("Process() call %d error = %v", i, err)
		}
	}

	order, _ := orders.Get(context.Background(), "order-1")
	if order.Status != StatusPaid {
		t.Errorf("order status after redelivery = %s, want %s", order.Status, StatusPaid)
	}

	// Redelivery is not suppressed: each call re-executes the write and
	// appends its own audit entry, but the state converges.
	if orders.writes != 3 {
		t.Errorf("order writes = %d, want 3", orders.writes)
	}
	if got := len(audit.byOutcome(OutcomeSuccess)); got != 3 {
		t.Errorf("success audit entries = %d, want 3", got)
	}
}

func TestEngineProcessNoRegressionFromPaid(t *testing.T) {
	// A later notification repeating the same gateway outcome self-loops;
	// the freshly fetched details always carry the authoritative status,
	// so the order can never regress to a stale one.
	source := &fakeSource{details: map[string]*gateway.PaymentDetails{
		"123": {ID: "123", Status: "approved", ExternalReference: "order-1"},
	}}
	orders := newMemOrderStore(&Order{ID: "order-1", Status: StatusPaid, PaymentStatus: "approved"})
	audit := &memAuditStore{}
	engine := NewEngine(source, orders, audit, time.Second)

	if err := engine.Process(context.Background(), paymentNotification(t, "123")); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	order, _ := orders.Get(context.Background(), "order-1")
	if order.Status != StatusPaid {
		t.Errorf("order status = %s, want %s", order.Status, StatusPaid)
	}
	// The write still ran: stale partial updates must self-heal.
	if orders.writes != 1 {
		t.Errorf("order writes = %d, want 1", orders.writes)
	}
}

func TestEngineProcessOrderNotFound(t *testing.T) {
	source := &fakeSource{details: map[string]*gateway.PaymentDetails{
		"123": {ID: "123", Status: "approved", ExternalReference: "order-missing"},
	}}
	orders := newMemOrderStore()
	audit := &memAuditStore{}
	engine := NewEngine(source, orders, audit, time.Second)

	err := engine.Process(context.Background(), paymentNotification(t, "123"))
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("Process() error = %v, want ErrOrderNotFound", err)
	}

	if orders.writes != 0 {
		t.Errorf("order writes = %d, want 0", orders.writes)
	}
	errEntries := audit.byOutcome(OutcomeError)
	if len(errEntries) != 1 {
		t.Fatalf("error audit entries = %d, want 1", len(errEntries))
	}
	if errEntries[0].OrderID != "order-missing" {
		t.Errorf("error entry order id = %s, want order-missing", errEntries[0].OrderID)
	}
}

func TestEngineProcessReferenceMissing(t *testing.T) {
	source := &fakeSource{details: map[string]*gateway.PaymentDetails{
		"123": {ID: "123", Status: "approved"},
	}}
	orders := newMemOrderStore(&Order{ID: "order-1", Status: StatusPending})
	audit := &memAuditStore{}
	engine := NewEngine(source, orders, audit, time.Second)

	err := engine.Process(context.Background(), paymentNotification(t, "123"))
	if !errors.Is(err, ErrReferenceMissing) {
		t.Fatalf("Process() error = %v, want ErrReferenceMissing", err)
	}
	if orders.writes != 0 {
		t.Errorf("order writes = %d, want 0", orders.writes)
	}
	if got := len(audit.byOutcome(OutcomeError)); got != 1 {
		t.Errorf("error audit entries = %d, want 1", got)
	}
}

func TestEngineProcessUpstreamFetchFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("gateway unreachable")}
	orders := newMemOrderStore(&Order{ID: "order-1", Status: StatusPending})
	audit := &memAuditStore{}
	engine := NewEngine(source, orders, audit, time.Second)

	err := engine.Process(context.Background(), paymentNotification(t, "123"))
	if !errors.Is(err, ErrUpstreamFetch) {
		t.Fatalf("Process() error = %v, want ErrUpstreamFetch", err)
	}
	if orders.writes != 0 {
		t.Errorf("order writes = %d, want 0", orders.writes)
	}
	if got := len(audit.byOutcome(OutcomeError)); got != 1 {
		t.Errorf("error audit entries = %d, want 1", got)
	}
}

func TestEngineProcessStoreWriteFailure(t *testing.T) {
	source := &fakeSource{details: map[string]*gateway.PaymentDetails{
		"123": {ID: "123", Status: "approved", ExternalReference: "order-1"},
	}}
	orders := newMemOrderStore(&Order{ID: "order-1", Status: StatusPending})
	orders.writeErr = errors.New("disk full")
	audit := &memAuditStore{}
	engine := NewEngine(source, orders, audit, time.Second)

	err := engine.Process(context.Background(), paymentNotification(t, "123"))
	if !errors.Is(err, ErrStoreWrite) {
		t.Fatalf("Process() error = %v, want ErrStoreWrite", err)
	}

	// State stays pre-transition.
	order, _ := orders.Get(context.Background(), "order-1")
	if order.Status != StatusPending {
		t.Errorf("order status = %s, want %s", order.Status, StatusPending)
	}
	if got := len(audit.byOutcome(OutcomeError)); got != 1 {
		t.Errorf("error audit entries = %d, want 1", got)
	}
}

func TestEngineProcessIgnoresIrrelevantNotification(t *testing.T) {
	source := &fakeSource{}
	orders := newMemOrderStore(&Order{ID: "order-1", Status: StatusPending})
	audit := &memAuditStore{}
	engine := NewEngine(source, orders, audit, time.Second)

	n := Normalize([]byte(`{"topic":"chargebacks","id":"9"}`))
	if err := engine.Process(context.Background(), n); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if source.calls != 0 {
		t.Errorf("gateway calls = %d, want 0", source.calls)
	}
	if orders.writes != 0 {
		t.Errorf("order writes = %d, want 0", orders.writes)
	}
	if got := len(audit.byOutcome(OutcomeInfo)); got != 1 {
		t.Errorf("info audit entries = %d, want 1", got)
	}
}

func TestEngineProcessCancelledPayment(t *testing.T) {
	source := &fakeSource{details: map[string]*gateway.PaymentDetails{
		"55": {ID: "55", Status: "refunded", ExternalReference: "order-2"},
	}}
	orders := newMemOrderStore(&Order{ID: "order-2", Status: StatusPaid, PaymentStatus: "approved"})
	audit := &memAuditStore{}
	engine := NewEngine(source, orders, audit, time.Second)

	if err := engine.Process(context.Background(), paymentNotification(t, "55")); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	order, _ := orders.Get(context.Background(), "order-2")
	if order.Status != StatusCancelled {
		t.Errorf("order status = %s, want %s", order.Status, StatusCancelled)
	}
	if order.PaymentStatus != "refunded" {
		t.Errorf("payment status = %s, want refunded", order.PaymentStatus)
	}
}

func TestEngineAuditFailureDoesNotBlock(t *testing.T) {
	source := &fakeSource{details: map[string]*gateway.PaymentDetails{
		"123": {ID: "123", Status: "approved", ExternalReference: "order-1"},
	}}
	orders := newMemOrderStore(&Order{ID: "order-1", Status: StatusPending})
	audit := &memAuditStore{err: errors.New("index unavailable")}
	engine := NewEngine(source, orders, audit, time.Second)

	if err := engine.Process(context.Background(), paymentNotification(t, "123")); err != nil {
		t.Fatalf("Process() error = %v, audit failures must not block reconciliation", err)
	}

	order, _ := orders.Get(context.Background(), "order-1")
	if order.Status != StatusPaid {
		t.Errorf("order status = %s, want %s", order.Status, StatusPaid)
	}
}

func TestEngineRecordEntries(t *testing.T) {
	audit := &memAuditStore{}
	engine := NewEngine(&fakeSource{}, newMemOrderStore(), audit, time.Second)
	n := paymentNotification(t, "7")

	engine.RecordReceived(context.Background(), n)
	engine.RecordAuthFailure(context.Background(), n)

	if got := len(audit.byOutcome(OutcomeReceived)); got != 1 {
		t.Errorf("received entries = %d, want 1", got)
	}
	failures := audit.byOutcome(OutcomeError)
	if len(failures) != 1 {
		t.Fatalf("error entries = %d, want 1", len(failures))
	}
	if failures[0].Detail["error"] != "invalid webhook signature" {
		t.Errorf("auth failure detail = %v", failures[0].Detail)
	}
	for _, e := range audit.entries {
		if e.ID == "" || e.Timestamp.IsZero() {
			t.Error("audit entries must carry their own id and timestamp")
		}
	}
}
