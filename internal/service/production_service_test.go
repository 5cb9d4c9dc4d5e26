package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/hongquyngo/production/internal/apperrors"
	"github.com/hongquyngo/production/internal/model/entity"
	"github.com/hongquyngo/production/internal/repository"
	"github.com/hongquyngo/production/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestServices(t *testing.T) (*Services, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return NewServices(repos, db, nil, zap.NewNop(), 3), db
}

// orderFixture wires a complete build-one-output scenario:
// two raw materials, one bom, source + target warehouse.
type orderFixture struct {
	output   *entity.Product
	matA     *entity.Product
	matB     *entity.Product
	bom      *entity.BOMHeader
	srcWH    *entity.Warehouse
	targetWH *entity.Warehouse
}

func seedOrderFixture(t *testing.T, db *gorm.DB, bomType string) *orderFixture {
	t.Helper()
	f := &orderFixture{
		output:   testutil.SeedProduct(t, db, "PT-OUT-001", "Combo Pack"),
		matA:     testutil.SeedProduct(t, db, "PT-MAT-A", "Material A"),
		matB:     testutil.SeedProduct(t, db, "PT-MAT-B", "Material B"),
		srcWH:    testutil.SeedWarehouse(t, db, "WH-SRC", "entity-001"),
		targetWH: testutil.SeedWarehouse(t, db, "WH-TGT", "entity-001"),
	}
	f.bom = testutil.SeedBOM(t, db, bomType, f.output.ID, 1, []testutil.BOMLine{
		{MaterialID: f.matA.ID, Quantity: 2},
		{MaterialID: f.matB.ID, Quantity: 1},
	})
	return f
}

func createOrder(t *testing.T, svc *Services, f *orderFixture, plannedQty float64) *entity.ManufacturingOrder {
	t.Helper()
	order, err := svc.Production.Create(CreateOrderRequest{
		BOMHeaderID:       f.bom.ID,
		PlannedQty:        plannedQty,
		WarehouseID:       f.srcWH.ID,
		TargetWarehouseID: f.targetWH.ID,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("Create order failed: %v", err)
	}
	return order
}

func outLotRows(t *testing.T, db *gorm.DB, orderFixtureWH string) []entity.InventoryHistory {
	t.Helper()
	var rows []entity.InventoryHistory
	if err := db.Where("movement_type = ? AND warehouse_id = ?",
		entity.MovementProductionOut, orderFixtureWH).Find(&rows).Error; err != nil {
		t.Fatalf("load ledger rows: %v", err)
	}
	return rows
}

func TestCreateOrderExplodesRequirements(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)

	order := createOrder(t, svc, f, 4)

	if order.Status != entity.OrderStatusConfirmed {
		t.Errorf("new order status = %s, want CONFIRMED", order.Status)
	}
	if order.OrderNo == "" || order.OrderNo[:3] != "MO-" {
		t.Errorf("order no %q missing MO- prefix", order.OrderNo)
	}
	if order.EntityID != "entity-001" {
		t.Errorf("order entity = %s, want entity-001 (from source warehouse)", order.EntityID)
	}

	materials, err := svc.Production.GetMaterials(order.ID)
	if err != nil {
		t.Fatalf("GetMaterials failed: %v", err)
	}
	if len(materials) != 2 {
		t.Fatalf("got %d material lines, want 2", len(materials))
	}
	byMaterial := map[string]entity.OrderMaterial{}
	for _, m := range materials {
		byMaterial[m.MaterialID] = m
	}
	if got := byMaterial[f.matA.ID].RequiredQty; got != 8 {
		t.Errorf("material A required = %v, want 8 (2 per unit x 4)", got)
	}
	if got := byMaterial[f.matB.ID].RequiredQty; got != 4 {
		t.Errorf("material B required = %v, want 4", got)
	}
	for _, m := range materials {
		if m.Status != entity.MaterialStatusPending || m.IssuedQty != 0 {
			t.Errorf("material %s: status=%s issued=%v, want PENDING/0", m.MaterialID, m.Status, m.IssuedQty)
		}
	}
}

func TestCreateOrderRejectsInactiveBOM(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	db.Model(f.bom).Update("status", entity.BOMStatusDraft)

	_, err := svc.Production.Create(CreateOrderRequest{
		BOMHeaderID:       f.bom.ID,
		PlannedQty:        1,
		WarehouseID:       f.srcWH.ID,
		TargetWarehouseID: f.targetWH.ID,
	}, "test-user-001")

	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError for inactive bom", err)
	}
}

func TestCreateOrderRejectsUnknownPriority(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)

	_, err := svc.Production.Create(CreateOrderRequest{
		BOMHeaderID:       f.bom.ID,
		PlannedQty:        1,
		WarehouseID:       f.srcWH.ID,
		TargetWarehouseID: f.targetWH.ID,
		Priority:          "RUSH",
	}, "test-user-001")

	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError for unknown priority", err)
	}
}

func TestIssueMaterialsFollowsFEFO(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)

	// Two lots of A: the earlier-expiring one must drain first.
	lotEarly := testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A-EARLY", 5, testutil.Date(2026, 9, 10))
	lotLate := testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A-LATE", 10, testutil.Date(2026, 12, 1))
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 10, nil)

	order := createOrder(t, svc, f, 4) // needs A:8, B:4

	result, err := svc.Production.IssueMaterials(order.ID, "test-user-001")
	if err != nil {
		t.Fatalf("IssueMaterials failed: %v", err)
	}
	if result.IssueNo == "" || result.IssueNo[:3] != "MI-" {
		t.Errorf("issue no %q missing MI- prefix", result.IssueNo)
	}

	var early, late entity.InventoryHistory
	db.First(&early, "id = ?", lotEarly.ID)
	db.First(&late, "id = ?", lotLate.ID)
	if early.Remain != 0 {
		t.Errorf("early lot remain = %v, want 0 (drained first)", early.Remain)
	}
	if late.Remain != 7 {
		t.Errorf("late lot remain = %v, want 7 (10 - 3)", late.Remain)
	}

	// Ledger: one PRODUCTION_OUT row per consumed lot, negative qty, remain 0.
	outs := outLotRows(t, db, f.srcWH.ID)
	if len(outs) != 3 { // A-early, A-late, B
		t.Fatalf("got %d PRODUCTION_OUT rows, want 3", len(outs))
	}
	groupID := outs[0].GroupID
	for _, row := range outs {
		if row.Quantity >= 0 || row.Remain != 0 {
			t.Errorf("out row %s: qty=%v remain=%v, want negative qty and remain 0", row.BatchNo, row.Quantity, row.Remain)
		}
		if row.SourceLotID == "" {
			t.Errorf("out row %s missing source lot reference", row.BatchNo)
		}
		if row.GroupID != groupID {
			t.Errorf("out row %s group = %s, want all rows in group %s", row.BatchNo, row.GroupID, groupID)
		}
	}

	// Balance law: remaining = stocked - consumed.
	balance, err := svc.Inventory.Balance(f.matA.ID, f.srcWH.ID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 7 {
		t.Errorf("material A balance = %v, want 7", balance)
	}

	// Order moved to IN_PROGRESS and all lines fully issued.
	refreshed, _ := svc.Production.GetByID(order.ID)
	if refreshed.Status != entity.OrderStatusInProgress {
		t.Errorf("order status = %s, want IN_PROGRESS", refreshed.Status)
	}
	materials, _ := svc.Production.GetMaterials(order.ID)
	for _, m := range materials {
		if m.Status != entity.MaterialStatusIssued || m.IssuedQty != m.RequiredQty {
			t.Errorf("material %s: status=%s issued=%v required=%v", m.MaterialID, m.Status, m.IssuedQty, m.RequiredQty)
		}
	}
}

func TestIssueMaterialsInsufficientStockRollsBack(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)

	// A is plentiful, B falls short: the whole issuance must roll back.
	lotA := testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 100, nil)
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 2, nil)

	order := createOrder(t, svc, f, 4) // needs A:8, B:4 but only 2 B available

	_, err := svc.Production.IssueMaterials(order.ID, "test-user-001")
	var insufficient *apperrors.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}
	if insufficient.Required != 4 || insufficient.Available != 2 {
		t.Errorf("error detail required=%v available=%v, want 4/2", insufficient.Required, insufficient.Available)
	}

	// No partial consumption of the sufficient material.
	var a entity.InventoryHistory
	db.First(&a, "id = ?", lotA.ID)
	if a.Remain != 100 {
		t.Errorf("lot A remain = %v after rollback, want 100", a.Remain)
	}
	if outs := outLotRows(t, db, f.srcWH.ID); len(outs) != 0 {
		t.Errorf("got %d PRODUCTION_OUT rows after rollback, want 0", len(outs))
	}
	var issueCount int64
	db.Model(&entity.MaterialIssue{}).Count(&issueCount)
	if issueCount != 0 {
		t.Errorf("got %d material issues after rollback, want 0", issueCount)
	}

	refreshed, _ := svc.Production.GetByID(order.ID)
	if refreshed.Status != entity.OrderStatusConfirmed {
		t.Errorf("order status = %s after failed issue, want CONFIRMED", refreshed.Status)
	}
	materials, _ := svc.Production.GetMaterials(order.ID)
	for _, m := range materials {
		if m.IssuedQty != 0 || m.Status != entity.MaterialStatusPending {
			t.Errorf("material %s mutated by failed issue: status=%s issued=%v", m.MaterialID, m.Status, m.IssuedQty)
		}
	}
}

func TestIssueMaterialsTwiceRejected(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 100, nil)
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 100, nil)
	order := createOrder(t, svc, f, 1)

	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	_, err := svc.Production.IssueMaterials(order.ID, "test-user-001")
	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("second issue got %v, want ValidationError (nothing pending)", err)
	}
}

func TestConcurrentIssueNoDoubleSpend(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)

	// One shared lot of 10 per material; each order needs 8. Only one can win.
	lotA := testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 10, nil)
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 100, nil)

	order1 := createOrder(t, svc, f, 4) // A:8
	order2 := createOrder(t, svc, f, 4) // A:8

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{order1.ID, order2.ID} {
		wg.Add(1)
		go func(i int, orderID string) {
			defer wg.Done()
			_, errs[i] = svc.Production.IssueMaterials(orderID, "test-user-001")
		}(i, id)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		lost++
		var insufficient *apperrors.InsufficientStockError
		if !errors.As(err, &insufficient) {
			t.Errorf("loser got %v, want InsufficientStockError", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("won=%d lost=%d, want exactly one winner", won, lost)
	}

	var a entity.InventoryHistory
	db.First(&a, "id = ?", lotA.ID)
	if a.Remain != 2 {
		t.Errorf("lot A remain = %v, want 2 (10 - 8, consumed once)", a.Remain)
	}
	var consumed float64
	db.Model(&entity.InventoryHistory{}).
		Where("movement_type = ? AND product_id = ?", entity.MovementProductionOut, f.matA.ID).
		Select("COALESCE(SUM(-quantity), 0)").Scan(&consumed)
	if consumed != 8 {
		t.Errorf("total consumed = %v, want 8", consumed)
	}
}

func TestIssueMaterialsToleratesScrapRounding(t *testing.T) {
	svc, db := newTestServices(t)
	output := testutil.SeedProduct(t, db, "PT-OUT-SCRAP", "Scrap Pack")
	mat := testutil.SeedProduct(t, db, "PT-MAT-SCRAP", "Scrap Material")
	src := testutil.SeedWarehouse(t, db, "WH-SCRAP-SRC", "entity-001")
	tgt := testutil.SeedWarehouse(t, db, "WH-SCRAP-TGT", "entity-001")
	bom := testutil.SeedBOM(t, db, entity.BOMTypeKitting, output.ID, 1, []testutil.BOMLine{
		{MaterialID: mat.ID, Quantity: 10, ScrapRate: 5},
	})
	// 10 × 4 × 1.05 在浮点里略大于 42，账面恰好 42 的库存必须仍然够发
	testutil.SeedLot(t, db, mat.ID, src.ID, "LOT-EXACT", 42, nil)

	order, err := svc.Production.Create(CreateOrderRequest{
		BOMHeaderID:       bom.ID,
		PlannedQty:        4,
		WarehouseID:       src.ID,
		TargetWarehouseID: tgt.ID,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("Create order failed: %v", err)
	}
	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue with exact-fit stock failed: %v", err)
	}

	var lot entity.InventoryHistory
	db.Where("movement_type = ? AND batch_no = ?", entity.MovementStockIn, "LOT-EXACT").First(&lot)
	if lot.Remain != 0 {
		t.Errorf("lot remain = %v, want 0 (fully drained)", lot.Remain)
	}
}

func TestCompleteKittingInheritsEarliestExpiry(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)

	earliest := testutil.Date(2026, 10, 15)
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 100, testutil.Date(2027, 3, 1))
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 100, earliest)

	order := createOrder(t, svc, f, 2)
	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	result, err := svc.Production.Complete(order.ID, CompleteOrderRequest{
		ProducedQty: 2,
		BatchNo:     "OUT-20260826-01",
	}, "test-user-001")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.ReceiptNo == "" || result.ReceiptNo[:3] != "PR-" {
		t.Errorf("receipt no %q missing PR- prefix", result.ReceiptNo)
	}

	var lot entity.InventoryHistory
	if err := db.Where("movement_type = ? AND batch_no = ?",
		entity.MovementProductionIn, "OUT-20260826-01").First(&lot).Error; err != nil {
		t.Fatalf("output lot not found: %v", err)
	}
	if lot.WarehouseID != f.targetWH.ID {
		t.Errorf("output lot warehouse = %s, want target warehouse", lot.WarehouseID)
	}
	if lot.Quantity != 2 || lot.Remain != 2 {
		t.Errorf("output lot qty=%v remain=%v, want 2/2", lot.Quantity, lot.Remain)
	}
	if lot.ExpiredDate == nil || !lot.ExpiredDate.Equal(*earliest) {
		t.Errorf("output expiry = %v, want inherited earliest %v", lot.ExpiredDate, earliest)
	}

	refreshed, _ := svc.Production.GetByID(order.ID)
	if refreshed.Status != entity.OrderStatusCompleted {
		t.Errorf("order status = %s, want COMPLETED", refreshed.Status)
	}
	if refreshed.ProducedQty != 2 || refreshed.CompletionDate == nil {
		t.Errorf("order produced=%v completion=%v, want 2 and a date", refreshed.ProducedQty, refreshed.CompletionDate)
	}
}

func TestCompleteKittingSkipsNilExpiryLots(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)

	// 消耗三个批次：2027-03-01、无效期、2026-10-15，继承最早的非空效期
	earliest := testutil.Date(2026, 10, 15)
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A-DATED", 3, testutil.Date(2027, 3, 1))
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A-NODATE", 10, nil)
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 100, earliest)

	order := createOrder(t, svc, f, 2)
	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// 需求 A=4 超过 LOT-A-DATED 的 3，无效期批次确实被消耗
	var filler entity.InventoryHistory
	if err := db.Where("movement_type = ? AND batch_no = ?",
		entity.MovementProductionOut, "LOT-A-NODATE").First(&filler).Error; err != nil {
		t.Fatalf("nil-expiry lot was not consumed: %v", err)
	}

	if _, err := svc.Production.Complete(order.ID, CompleteOrderRequest{
		ProducedQty: 2,
		BatchNo:     "KIT-MIXED-01",
	}, "test-user-001"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	var lot entity.InventoryHistory
	if err := db.Where("movement_type = ? AND batch_no = ?",
		entity.MovementProductionIn, "KIT-MIXED-01").First(&lot).Error; err != nil {
		t.Fatalf("output lot not found: %v", err)
	}
	if lot.ExpiredDate == nil || !lot.ExpiredDate.Equal(*earliest) {
		t.Errorf("output expiry = %v, want %v (nil-expiry lots ignored)", lot.ExpiredDate, earliest)
	}
}

func TestCompleteKittingAllNilExpiryCarriesNone(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 100, nil)
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 100, nil)

	order := createOrder(t, svc, f, 1)
	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := svc.Production.Complete(order.ID, CompleteOrderRequest{
		ProducedQty: 1,
		BatchNo:     "KIT-NODATE-01",
	}, "test-user-001"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	var lot entity.InventoryHistory
	db.Where("movement_type = ? AND batch_no = ?", entity.MovementProductionIn, "KIT-NODATE-01").First(&lot)
	if lot.ExpiredDate != nil {
		t.Errorf("output expiry = %v, want nil when no consumed lot has one", lot.ExpiredDate)
	}
}

func TestCompleteCuttingDoesNotInheritExpiry(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeCutting)
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 100, testutil.Date(2026, 10, 1))
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 100, testutil.Date(2026, 11, 1))

	order := createOrder(t, svc, f, 1)
	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := svc.Production.Complete(order.ID, CompleteOrderRequest{
		ProducedQty: 1,
		BatchNo:     "CUT-001",
	}, "test-user-001"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	var lot entity.InventoryHistory
	db.Where("movement_type = ? AND batch_no = ?", entity.MovementProductionIn, "CUT-001").First(&lot)
	if lot.ExpiredDate != nil {
		t.Errorf("cutting output expiry = %v, want nil (no inheritance)", lot.ExpiredDate)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	order := createOrder(t, svc, f, 1)

	_, err := svc.Production.Complete(order.ID, CompleteOrderRequest{
		ProducedQty: 1,
		BatchNo:     "B-001",
	}, "test-user-001")
	var st *apperrors.InvalidStateTransitionError
	if !errors.As(err, &st) {
		t.Fatalf("complete on CONFIRMED got %v, want InvalidStateTransitionError", err)
	}
}

func TestCompleteIsIdempotentlyRejected(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 100, nil)
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 100, nil)
	order := createOrder(t, svc, f, 1)

	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := svc.Production.Complete(order.ID, CompleteOrderRequest{
		ProducedQty: 1, BatchNo: "B-001",
	}, "test-user-001"); err != nil {
		t.Fatalf("first complete failed: %v", err)
	}

	_, err := svc.Production.Complete(order.ID, CompleteOrderRequest{
		ProducedQty: 1, BatchNo: "B-002",
	}, "test-user-001")
	var st *apperrors.InvalidStateTransitionError
	if !errors.As(err, &st) {
		t.Fatalf("second complete got %v, want InvalidStateTransitionError", err)
	}

	// Exactly one receipt and one output lot.
	var receipts, lots int64
	db.Model(&entity.ProductionReceipt{}).Where("manufacturing_order_id = ?", order.ID).Count(&receipts)
	db.Model(&entity.InventoryHistory{}).Where("movement_type = ?", entity.MovementProductionIn).Count(&lots)
	if receipts != 1 || lots != 1 {
		t.Errorf("receipts=%d output lots=%d after double complete, want 1/1", receipts, lots)
	}
}

func TestCompleteRejectsOverproduction(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 100, nil)
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 100, nil)
	order := createOrder(t, svc, f, 2)

	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	_, err := svc.Production.Complete(order.ID, CompleteOrderRequest{
		ProducedQty: 3,
		BatchNo:     "B-001",
	}, "test-user-001")
	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("overproduction got %v, want ValidationError", err)
	}
}

func TestCancelConfirmedOrder(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	order := createOrder(t, svc, f, 1)

	if err := svc.Production.Cancel(order.ID, "test-user-001"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	refreshed, _ := svc.Production.GetByID(order.ID)
	if refreshed.Status != entity.OrderStatusCancelled {
		t.Errorf("order status = %s, want CANCELLED", refreshed.Status)
	}
}

func TestCancelAfterIssueRejected(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 100, nil)
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 100, nil)
	order := createOrder(t, svc, f, 1)

	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	err := svc.Production.Cancel(order.ID, "test-user-001")
	var st *apperrors.InvalidStateTransitionError
	if !errors.As(err, &st) {
		t.Fatalf("cancel after issue got %v, want InvalidStateTransitionError", err)
	}
}

func TestCancelCompletedOrderRejected(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 100, nil)
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 100, nil)
	order := createOrder(t, svc, f, 1)

	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := svc.Production.Complete(order.ID, CompleteOrderRequest{
		ProducedQty: 1, BatchNo: "B-001",
	}, "test-user-001"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	err := svc.Production.Cancel(order.ID, "test-user-001")
	var st *apperrors.InvalidStateTransitionError
	if !errors.As(err, &st) {
		t.Fatalf("cancel after complete got %v, want InvalidStateTransitionError", err)
	}
}

func TestPreviewRequirementsDoesNotMutate(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	lot := testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 10, nil)

	rows, err := svc.Production.PreviewRequirements(f.bom.ID, 4, f.srcWH.ID)
	if err != nil {
		t.Fatalf("PreviewRequirements failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d preview rows, want 2", len(rows))
	}
	for _, row := range rows {
		switch row.MaterialID {
		case f.matA.ID:
			if row.RequiredQty != 8 || row.Available != 10 || !row.Sufficient {
				t.Errorf("material A preview = %+v, want required 8, available 10, sufficient", row)
			}
		case f.matB.ID:
			if row.RequiredQty != 4 || row.Available != 0 || row.Sufficient {
				t.Errorf("material B preview = %+v, want required 4, available 0, insufficient", row)
			}
		}
	}

	var refreshed entity.InventoryHistory
	db.First(&refreshed, "id = ?", lot.ID)
	if refreshed.Remain != 10 {
		t.Errorf("preview mutated lot: remain = %v, want 10", refreshed.Remain)
	}
}

func TestLedgerRowsAreNeverDeleted(t *testing.T) {
	svc, db := newTestServices(t)
	f := seedOrderFixture(t, db, entity.BOMTypeKitting)
	testutil.SeedLot(t, db, f.matA.ID, f.srcWH.ID, "LOT-A", 100, nil)
	testutil.SeedLot(t, db, f.matB.ID, f.srcWH.ID, "LOT-B", 100, nil)
	order := createOrder(t, svc, f, 2)

	var before int64
	db.Model(&entity.InventoryHistory{}).Count(&before)

	if _, err := svc.Production.IssueMaterials(order.ID, "test-user-001"); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := svc.Production.Complete(order.ID, CompleteOrderRequest{
		ProducedQty: 2, BatchNo: "B-001",
	}, "test-user-001"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	var after int64
	db.Model(&entity.InventoryHistory{}).Count(&after)
	// 2 stock-in + 2 consumption rows + 1 production-in
	if after != before+3 {
		t.Errorf("ledger rows %d -> %d, want append-only growth of 3", before, after)
	}

	// Issued batches stay in the ledger with remain 0 instead of vanishing.
	var drained int64
	db.Model(&entity.InventoryHistory{}).
		Where("movement_type = ? AND remain = 0", entity.MovementStockIn).
		Count(&drained)
	if drained != 0 {
		// Lots here were oversized on purpose, nothing should be fully drained.
		t.Errorf("got %d fully drained lots, want 0", drained)
	}

	mustRemain := []string{"LOT-A", "LOT-B"}
	for _, batch := range mustRemain {
		var n int64
		db.Model(&entity.InventoryHistory{}).
			Where("batch_no = ? AND movement_type = ?", batch, entity.MovementStockIn).
			Count(&n)
		if n != 1 {
			t.Errorf("stock-in row for %s count = %d, want 1", batch, n)
		}
	}
}
