package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hongquyngo/production/internal/config"
	"github.com/hongquyngo/production/internal/middleware"
	"github.com/hongquyngo/production/internal/model/entity"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_production"
	JWTSecret  = "production-jwt-secret-for-tests"
)

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := config.GetEnvOrDefault("DB_HOST", "127.0.0.1")
	port := config.GetEnvOrDefault("DB_PORT", "5432")
	user := config.GetEnvOrDefault("DB_USER", "postgres")
	password := config.GetEnvOrDefault("DB_PASSWORD", "postgres")
	dbname := config.GetEnvOrDefault("DB_NAME", "production")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Open connection with search_path in DSN so ALL pooled connections use test schema.
	// TranslateError must match production: numbering retries key off gorm.ErrDuplicatedKey.
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"iss":   "production",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default test user
func DefaultTestToken() string {
	return GenerateTestToken("test-user-001", "Test Operator", "operator@test.com")
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedProduct creates an approved product
func SeedProduct(t *testing.T, db *gorm.DB, ptCode, name string) *entity.Product {
	t.Helper()
	product := &entity.Product{
		ID:       uuid.NewString(),
		PTCode:   ptCode,
		Name:     name,
		UOM:      "pcs",
		Approved: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}
	return product
}

// SeedWarehouse creates a warehouse bound to a legal entity
func SeedWarehouse(t *testing.T, db *gorm.DB, code, companyID string) *entity.Warehouse {
	t.Helper()
	warehouse := &entity.Warehouse{
		ID:        uuid.NewString(),
		Code:      code,
		Name:      "WH " + code,
		CompanyID: companyID,
	}
	if err := db.Create(warehouse).Error; err != nil {
		t.Fatalf("Failed to seed warehouse: %v", err)
	}
	return warehouse
}

// BOMLine is a material line for SeedBOM
type BOMLine struct {
	MaterialID string
	Quantity   float64
	ScrapRate  float64
}

// SeedBOM creates an ACTIVE bom with the given material lines
func SeedBOM(t *testing.T, db *gorm.DB, bomType string, productID string, outputQty float64, lines []BOMLine) *entity.BOMHeader {
	t.Helper()
	bom := &entity.BOMHeader{
		ID:        uuid.NewString(),
		BOMCode:   fmt.Sprintf("BOM-%s-%d", bomType[:3], time.Now().UnixNano()%100000),
		BOMName:   "Test " + bomType,
		BOMType:   bomType,
		ProductID: productID,
		OutputQty: outputQty,
		UOM:       "pcs",
		Status:    entity.BOMStatusActive,
		Version:   1,
		CreatedBy: "test-user-001",
	}
	if err := db.Create(bom).Error; err != nil {
		t.Fatalf("Failed to seed bom header: %v", err)
	}
	for _, line := range lines {
		detail := &entity.BOMDetail{
			ID:           uuid.NewString(),
			BOMHeaderID:  bom.ID,
			MaterialID:   line.MaterialID,
			MaterialType: entity.MaterialTypeRaw,
			Quantity:     line.Quantity,
			UOM:          "pcs",
			ScrapRate:    line.ScrapRate,
		}
		if err := db.Create(detail).Error; err != nil {
			t.Fatalf("Failed to seed bom detail: %v", err)
		}
	}
	return bom
}

// SeedLot writes a STOCK_IN ledger row, i.e. a consumable batch
func SeedLot(t *testing.T, db *gorm.DB, productID, warehouseID, batchNo string, qty float64, expiredDate *time.Time) *entity.InventoryHistory {
	t.Helper()
	lot := &entity.InventoryHistory{
		ID:           uuid.NewString(),
		MovementType: entity.MovementStockIn,
		ProductID:    productID,
		WarehouseID:  warehouseID,
		Quantity:     qty,
		Remain:       qty,
		BatchNo:      batchNo,
		UOM:          "pcs",
		ExpiredDate:  expiredDate,
		CreatedBy:    "test-user-001",
	}
	if err := db.Create(lot).Error; err != nil {
		t.Fatalf("Failed to seed lot: %v", err)
	}
	return lot
}

// Date builds a date pointer, for expiry values in tests
func Date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}
