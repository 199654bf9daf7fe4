package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/database"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/pkg/util"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates a private in-memory SQLite database with all tables.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateTestOrg creates a test organization
func CreateTestOrg(t *testing.T, db *gorm.DB) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Name: "Test Organization",
		Slug: "test-org-" + uuid.NewString()[:8],
	}
	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

// CreateTestUser creates an admin user in org.
func CreateTestUser(t *testing.T, db *gorm.DB, org *models.Organization) *models.User {
	t.Helper()
	return CreateTestUserWithRole(t, db, org, models.RoleAdmin)
}

// CreateTestUserWithRole creates an active user with the given role.
func CreateTestUserWithRole(t *testing.T, db *gorm.DB, org *models.Organization, role string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	suffix := uuid.NewString()[:8]
	user := &models.User{
		FirstName:      "Test",
		LastName:       "User",
		Username:       "user-" + suffix,
		Email:          "test-" + suffix + "@example.com",
		PasswordHash:   hash,
		OrganizationID: org.ID,
		Role:           role,
		Status:         models.UserStatusActive,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Organization = org
	return user
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.OrganizationID, user.Email, user.Role)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// SessionFor returns the session a request from user would carry.
func SessionFor(user *models.User) auth.Session {
	return auth.Session{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
		Role:           user.Role,
	}
}

// CreateTestLead creates a New lead for Acme in orgID.
func CreateTestLead(t *testing.T, db *gorm.DB, orgID uuid.UUID, mods ...func(*models.Lead)) *models.Lead {
	t.Helper()

	value := 150000.0
	lead := &models.Lead{
		OrganizationID: orgID,
		EnquiryNo:      util.NewEnquiryNo(),
		CompanyName:    "Acme Industries",
		ContactName:    "Jane Doe",
		ContactEmail:   "jane-" + uuid.NewString()[:6] + "@acme.com",
		Phone:          "555-0100",
		EnquiryStatus:  "New",
		EnquiryType:    "website",
		ProjectStatus:  "Open",
		EstimatedValue: &value,
		City:           "Pune",
		LeadScore:      40,
	}
	for _, mod := range mods {
		mod(lead)
	}
	if err := db.Create(lead).Error; err != nil {
		t.Fatalf("failed to create test lead: %v", err)
	}
	return lead
}

// CreateTestCompany creates a company named name in orgID.
func CreateTestCompany(t *testing.T, db *gorm.DB, orgID uuid.UUID, name string) *models.Company {
	t.Helper()

	company := &models.Company{
		OrganizationID: orgID,
		Name:           name,
		Email:          "info@example.com",
		City:           "Mumbai",
		Country:        "India",
	}
	if err := db.Create(company).Error; err != nil {
		t.Fatalf("failed to create test company: %v", err)
	}
	return company
}

// CreateTestProject creates a planning project, optionally for a client company.
func CreateTestProject(t *testing.T, db *gorm.DB, orgID uuid.UUID, clientID *uuid.UUID) *models.Project {
	t.Helper()

	project := &models.Project{
		OrganizationID: orgID,
		ProjectNumber:  util.NewProjectNumber(),
		Name:           "Warehouse fit-out",
		Type:           models.ProjectTypeProposal,
		Status:         models.ProjectStatusPlanning,
		ClientID:       clientID,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	return project
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Org        *models.Organization
	User       *models.User
	Token      string
	Logger     *slog.Logger
}

// NewTestContext creates a complete test setup with DB, org, admin user, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	org := CreateTestOrg(t, db)
	user := CreateTestUser(t, db, org)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Org:        org,
		User:       user,
		Token:      GenerateTestToken(t, jwtService, user),
		Logger:     DiscardLogger(),
	}
}

// Session returns the admin user's session.
func (ts *TestSetup) Session() auth.Session {
	return SessionFor(ts.User)
}

// TokenFor creates a user with role in the setup's org and returns its token.
func (ts *TestSetup) TokenFor(t *testing.T, role string) (*models.User, string) {
	t.Helper()
	user := CreateTestUserWithRole(t, ts.DB, ts.Org, role)
	return user, GenerateTestToken(t, ts.JWTService, user)
}
