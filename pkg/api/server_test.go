package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/flowdeck/pkg/access"
	"github.com/platinummonkey/flowdeck/pkg/grants"
	"github.com/platinummonkey/flowdeck/pkg/lifecycle"
	"github.com/platinummonkey/flowdeck/pkg/middleware"
	"github.com/platinummonkey/flowdeck/pkg/storage"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			projects_creatable INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id INTEGER,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			projects_creatable INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			public_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			creator_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE flows (
			id TEXT PRIMARY KEY,
			project_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			creator_id INTEGER NOT NULL,
			document TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE user_project_grants (
			user_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			deletable_project INTEGER NOT NULL DEFAULT 1,
			creatable_flows INTEGER NOT NULL DEFAULT 1,
			deletable_flows INTEGER NOT NULL DEFAULT 1,
			readable_flows INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (user_id, project_id)
		);

		CREATE TABLE group_project_grants (
			group_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			deletable_project INTEGER NOT NULL DEFAULT 0,
			creatable_flows INTEGER NOT NULL DEFAULT 0,
			deletable_flows INTEGER NOT NULL DEFAULT 0,
			readable_flows INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (group_id, project_id)
		);

		CREATE TABLE user_flow_grants (
			user_id INTEGER NOT NULL,
			flow_id TEXT NOT NULL,
			readable_flow INTEGER NOT NULL DEFAULT 1,
			updatable_flow INTEGER NOT NULL DEFAULT 1,
			executable_flow INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (user_id, flow_id)
		);

		CREATE TABLE group_flow_grants (
			group_id INTEGER NOT NULL,
			flow_id TEXT NOT NULL,
			readable_flow INTEGER NOT NULL DEFAULT 1,
			updatable_flow INTEGER NOT NULL DEFAULT 0,
			executable_flow INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (group_id, flow_id)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return db
}

type testServer struct {
	server *Server
	db     *sql.DB
	users  *storage.UserStore
	groups *storage.GroupStore
}

func newTestServer(t *testing.T) *testServer {
	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	users := storage.NewUserStore(db)
	projects := storage.NewProjectStore(db)
	grantStore := grants.NewStore(db)
	resolver := access.NewResolver(users, grantStore)
	service := access.NewService(resolver, nil, projects)
	coordinator := lifecycle.NewCoordinator(db, resolver, nil)

	return &testServer{
		server: NewServer(service, coordinator, ServerOptions{}),
		db:     db,
		users:  users,
		groups: storage.NewGroupStore(db),
	}
}

func (ts *testServer) createUser(t *testing.T, email string, groupID *int64, projectsCreatable bool) int64 {
	user := &storage.User{Name: email, Email: email, GroupID: groupID, ProjectsCreatable: projectsCreatable}
	if err := ts.users.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user.ID
}

func (ts *testServer) createGroup(t *testing.T, name string) int64 {
	group := &storage.Group{Name: name}
	if err := ts.groups.CreateGroup(context.Background(), group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return group.ID
}

// do performs a request as the given principal; principal 0 omits the
// identity header.
func (ts *testServer) do(t *testing.T, principal int64, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if principal != 0 {
		req.Header.Set(middleware.PrincipalHeader, strconv.FormatInt(principal, 10))
	}

	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Response is not valid JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestMissingPrincipalIsRejected(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, 0, "GET", "/v1/projects", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
}

func TestMalformedPrincipalIsRejected(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest("GET", "/v1/projects", nil)
	req.Header.Set(middleware.PrincipalHeader, "not-a-number")
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
}

func TestCreateAndListProjects(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.createUser(t, "alice@example.com", nil, true)

	rec := ts.do(t, userID, "POST", "/v1/projects", `{"name":"alpha"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	publicID, _ := created["id"].(string)
	if publicID == "" {
		t.Fatal("Expected the created project to carry its public id")
	}

	rec = ts.do(t, userID, "GET", "/v1/projects", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	listed := decodeBody(t, rec)
	projects, _ := listed["projects"].([]interface{})
	if len(projects) != 1 {
		t.Fatalf("Expected 1 visible project, got %d", len(projects))
	}
}

func TestCreateProject_MissingName(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.createUser(t, "alice@example.com", nil, true)

	rec := ts.do(t, userID, "POST", "/v1/projects", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestCreateProject_FlagDenied(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.createUser(t, "carol@example.com", nil, false)

	rec := ts.do(t, userID, "POST", "/v1/projects", `{"name":"nope"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProjectPermission(t *testing.T) {
	ts := newTestServer(t)
	groupID := ts.createGroup(t, "platform")
	creatorID := ts.createUser(t, "alice@example.com", &groupID, true)
	memberID := ts.createUser(t, "bob@example.com", &groupID, true)
	strangerID := ts.createUser(t, "mallory@example.com", nil, true)

	rec := ts.do(t, creatorID, "POST", "/v1/projects", `{"name":"alpha"}`)
	publicID := decodeBody(t, rec)["id"].(string)

	// The creator's own grant allows everything
	rec = ts.do(t, creatorID, "GET", "/v1/projects/"+publicID+"/permission", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	grant, _ := decodeBody(t, rec)["grant"].(map[string]interface{})
	if grant == nil || grant["deletable_project"] != true {
		t.Errorf("Expected the creator's grant to allow deletion, got %v", grant)
	}

	// The member resolves to the restrictive group grant
	rec = ts.do(t, memberID, "GET", "/v1/projects/"+publicID+"/permission", "")
	grant, _ = decodeBody(t, rec)["grant"].(map[string]interface{})
	if grant == nil {
		t.Fatal("Expected the member to resolve a group grant")
	}
	if grant["deletable_project"] != false || grant["readable_flows"] != true {
		t.Errorf("Expected a restrictive group grant, got %v", grant)
	}

	// A stranger resolves to null, not an error
	rec = ts.do(t, strangerID, "GET", "/v1/projects/"+publicID+"/permission", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for a no-signal resolution, got %d", rec.Code)
	}
	if decodeBody(t, rec)["grant"] != nil {
		t.Error("Expected a null grant for a stranger")
	}

	// An unknown project is a hard 404
	rec = ts.do(t, creatorID, "GET", "/v1/projects/no-such/permission", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown project, got %d", rec.Code)
	}
}

func TestDeleteProject_OutcomeMapping(t *testing.T) {
	ts := newTestServer(t)
	groupID := ts.createGroup(t, "platform")
	creatorID := ts.createUser(t, "alice@example.com", &groupID, true)
	memberID := ts.createUser(t, "bob@example.com", &groupID, true)

	rec := ts.do(t, creatorID, "POST", "/v1/projects", `{"name":"alpha"}`)
	publicID := decodeBody(t, rec)["id"].(string)

	// Member holds only the group grant: 403 with deleted=false
	rec = ts.do(t, memberID, "DELETE", "/v1/projects/"+publicID, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rec.Code)
	}
	if decodeBody(t, rec)["deleted"] != false {
		t.Error("Expected deleted=false in the denial body")
	}

	// Creator: 200 with deleted=true
	rec = ts.do(t, creatorID, "DELETE", "/v1/projects/"+publicID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["deleted"] != true {
		t.Error("Expected deleted=true in the success body")
	}

	// Repeat delete: 404
	rec = ts.do(t, creatorID, "DELETE", "/v1/projects/"+publicID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on repeat delete, got %d", rec.Code)
	}
}

func TestDeleteProject_StorageFailureHidesDetails(t *testing.T) {
	ts := newTestServer(t)
	creatorID := ts.createUser(t, "alice@example.com", nil, true)

	rec := ts.do(t, creatorID, "POST", "/v1/projects", `{"name":"alpha"}`)
	publicID := decodeBody(t, rec)["id"].(string)

	// Break the flow cascade so the delete fails inside the transaction.
	if _, err := ts.db.Exec("DROP TABLE flows"); err != nil {
		t.Fatalf("Failed to drop the flows table: %v", err)
	}

	rec = ts.do(t, creatorID, "DELETE", "/v1/projects/"+publicID, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["deleted"] != false {
		t.Error("Expected deleted=false in the failure body")
	}
	if body["error"] != "project deletion failed" {
		t.Errorf("Expected a generic failure message, got %q", body["error"])
	}
	if strings.Contains(rec.Body.String(), "no such table") {
		t.Error("Storage error details must not reach the client")
	}
}

func TestFlowLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	groupID := ts.createGroup(t, "platform")
	creatorID := ts.createUser(t, "alice@example.com", &groupID, true)
	memberID := ts.createUser(t, "bob@example.com", &groupID, true)

	rec := ts.do(t, creatorID, "POST", "/v1/projects", `{"name":"alpha"}`)
	publicID := decodeBody(t, rec)["id"].(string)

	rec = ts.do(t, creatorID, "POST", "/v1/projects/"+publicID+"/flows",
		`{"name":"nightly","document":{"retries":3,"schedule":"0 2 * * *"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	flowID := decodeBody(t, rec)["id"].(string)

	// Both creator and member see the flow
	for _, principal := range []int64{creatorID, memberID} {
		rec = ts.do(t, principal, "GET", "/v1/projects/"+publicID+"/flows", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200 listing flows, got %d", rec.Code)
		}
		flows, _ := decodeBody(t, rec)["flows"].([]interface{})
		if len(flows) != 1 {
			t.Fatalf("Expected 1 visible flow for user %d, got %d", principal, len(flows))
		}
	}

	// The member's group flow grant does not allow update
	rec = ts.do(t, memberID, "PATCH", "/v1/flows/"+flowID+"/document", `{"retries":9}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for a group-sourced update, got %d", rec.Code)
	}

	// The creator merges: overridden key changes, absent keys survive
	rec = ts.do(t, creatorID, "PATCH", "/v1/flows/"+flowID+"/document", `{"retries":9}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, creatorID, "GET", "/v1/projects/"+publicID+"/flows", "")
	flows, _ := decodeBody(t, rec)["flows"].([]interface{})
	flow := flows[0].(map[string]interface{})["flow"].(map[string]interface{})
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(flow["document"].(string)), &doc); err != nil {
		t.Fatalf("Merged document is not valid JSON: %v", err)
	}
	if doc["retries"] != float64(9) {
		t.Errorf("Expected retries merged to 9, got %v", doc["retries"])
	}
	if doc["schedule"] != "0 2 * * *" {
		t.Errorf("Expected schedule preserved, got %v", doc["schedule"])
	}

	// The member cannot delete; the creator can
	rec = ts.do(t, memberID, "DELETE", "/v1/flows/"+flowID, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rec.Code)
	}
	rec = ts.do(t, creatorID, "DELETE", "/v1/flows/"+flowID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, creatorID, "DELETE", "/v1/flows/"+flowID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on repeat delete, got %d", rec.Code)
	}
}

func TestUpdateFlowDocument_NonObjectBody(t *testing.T) {
	ts := newTestServer(t)
	creatorID := ts.createUser(t, "alice@example.com", nil, true)

	rec := ts.do(t, creatorID, "POST", "/v1/projects", `{"name":"alpha"}`)
	publicID := decodeBody(t, rec)["id"].(string)
	rec = ts.do(t, creatorID, "POST", "/v1/projects/"+publicID+"/flows", `{"name":"nightly"}`)
	flowID := decodeBody(t, rec)["id"].(string)

	rec = ts.do(t, creatorID, "PATCH", "/v1/flows/"+flowID+"/document", `[1,2,3]`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a non-object document, got %d", rec.Code)
	}
}

func TestWrongContentTypeRejected(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.createUser(t, "alice@example.com", nil, true)

	req := httptest.NewRequest("POST", "/v1/projects", strings.NewReader(`{"name":"alpha"}`))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set(middleware.PrincipalHeader, strconv.FormatInt(userID, 10))
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}
