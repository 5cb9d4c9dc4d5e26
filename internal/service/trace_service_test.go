package service

import (
	"errors"
	"testing"

	"github.com/hongquyngo/production/internal/apperrors"
	"github.com/hongquyngo/production/internal/model/entity"
	"github.com/hongquyngo/production/internal/testutil"
)

func TestBatchGenealogy(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "SRC-A", 100, testutil.Date(2027, 1, 1))
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "SRC-B", 100, testutil.Date(2026, 11, 1))

	order := createOrder(t, svc, f, 2)
	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := svc.Production.Complete(order.ID, CompleteOrderRequest{
		ProducedQty: 2,
		BatchNo:     "FG-001",
	}, "test-user-001"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// Backward: what went into FG-001.
	sources, err := svc.Trace.GetBatchSources("FG-001")
	if err != nil {
		t.Fatalf("GetBatchSources failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	bySource := map[string]BatchSource{}
	for _, s := range sources {
		bySource[s.SourceBatch] = s
	}
	if s, ok := bySource["SRC-A"]; !ok || s.Quantity != 4 {
		t.Errorf("SRC-A source = %+v, want qty 4 (2 per unit x 2)", s)
	}
	if s, ok := bySource["SRC-B"]; !ok || s.Quantity != 2 {
		t.Errorf("SRC-B source = %+v, want qty 2", s)
	}

	// Batch info reflects the production-in row.
	info, err := svc.Trace.GetBatchInfo("FG-001")
	if err != nil {
		t.Fatalf("GetBatchInfo failed: %v", err)
	}
	if info.ProductID != f.output.ID || info.Quantity != 2 {
		t.Errorf("batch info = %+v, want output product with qty 2", info)
	}
	// Kitting inherits the earliest source expiry.
	if info.ExpiredDate == nil || !info.ExpiredDate.Equal(*testutil.Date(2026, 11, 1)) {
		t.Errorf("batch expiry = %v, want 2026-11-01", info.ExpiredDate)
	}

	// Forward: where the batch currently sits.
	locations, err := svc.Trace.GetBatchLocations("FG-001")
	if err != nil {
		t.Fatalf("GetBatchLocations failed: %v", err)
	}
	if len(locations) != 1 {
		t.Fatalf("got %d locations, want 1", len(locations))
	}
	if locations[0].Quantity != 2 || locations[0].Status != "AVAILABLE" {
		t.Errorf("location = %+v, want qty 2 AVAILABLE", locations[0])
	}

	receipt, err := svc.Trace.GetReceiptByBatch("FG-001")
	if err != nil {
		t.Fatalf("GetReceiptByBatch failed: %v", err)
	}
	if receipt.ManufacturingOrderID != order.ID {
		t.Errorf("receipt order = %s, want %s", receipt.ManufacturingOrderID, order.ID)
	}
}

func TestBatchInfoNotFound(t *testing.T) {
	svc, _ := newTestServices(t)
	_, err := svc.Trace.GetBatchInfo("NO-SUCH-BATCH")
	var nf *apperrors.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("got %v, want NotFoundError", err)
	}
}

func TestReceiptByBatchNotFound(t *testing.T) {
	svc, _ := newTestServices(t)
	_, err := svc.Trace.GetReceiptByBatch("NO-SUCH-BATCH")
	var nf *apperrors.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("got %v, want NotFoundError", err)
	}
}

func TestBatchLocationsExcludeDrainedLots(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	// Exact-fit lot: fully drained by the issue.
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "DRAIN-A", 2, nil)
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "SRC-B", 100, nil)

	order := createOrder(t, svc, f, 1) // needs A:2, B:1
	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	locations, err := svc.Trace.GetBatchLocations("DRAIN-A")
	if err != nil {
		t.Fatalf("GetBatchLocations failed: %v", err)
	}
	if len(locations) != 0 {
		t.Errorf("drained batch still reports %d locations, want 0", len(locations))
	}
}
