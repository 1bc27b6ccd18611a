package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fleetdesk.org/internal/audit"
	"fleetdesk.org/internal/auth"
	"fleetdesk.org/internal/fleet"
	"fleetdesk.org/internal/inventory"
	"fleetdesk.org/internal/rbac"
	"fleetdesk.org/internal/store"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	token   string
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("FLEETDESK_AUTH_SECRET", "test-secret")
	t.Setenv("FLEETDESK_ISSUER_KEY", testIssuerKey)
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	s := store.NewMemory()
	log := audit.New(s, auth.ActorFromContext)
	users := rbac.NewRegistry(s, log, auth.ActorFromContext)
	vehicles := fleet.NewVehicleRegistry(s, log, users, auth.ActorFromContext)
	warehouses := fleet.NewWarehouseRegistry(s, log, users, vehicles)
	campaigns := inventory.NewEngine(s, log, users, vehicles, auth.ActorFromContext)

	api := New(ReadyProbe{}, "test", Services{
		Audit:      log,
		Users:      users,
		Campaigns:  campaigns,
		Vehicles:   vehicles,
		Warehouses: warehouses,
	})
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	c := &apiClient{baseURL: srv.URL, client: srv.Client(), t: t}
	c.token = c.issueToken("u-admin", "Dana")
	return c
}

const testIssuerKey = "test-issuer-key"

func (c *apiClient) mintToken(id, name, issuerKey string) *http.Response {
	c.t.Helper()
	payload, err := json.Marshal(map[string]string{"id": id, "name": name})
	if err != nil {
		c.t.Fatalf("marshal token request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v1/auth/token", bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new token request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if issuerKey != "" {
		req.Header.Set("X-Issuer-Key", issuerKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("token request: %v", err)
	}
	return resp
}

func (c *apiClient) issueToken(id, name string) string {
	c.t.Helper()
	resp := c.mintToken(id, name, testIssuerKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("token request: %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.t.Fatalf("decode token: %v", err)
	}
	return body.Token
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *apiClient) authed(method, path string, body any) *http.Response {
	return c.do(method, path, body, c.token)
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthEndpointsArePublic(t *testing.T) {
	c := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.do(http.MethodGet, path, nil, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: %d", path, resp.StatusCode)
		}
	}
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodGet, "/v1/campaigns", nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", resp.StatusCode)
	}

	resp = c.do(http.MethodGet, "/v1/campaigns", nil, "not-a-token")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: %d", resp.StatusCode)
	}
}

func TestTokenMintRequiresIssuerKey(t *testing.T) {
	c := newTestAPI(t)

	// The fixture already bootstrapped u-admin. A caller without the issuer
	// key must not be able to claim that identity.
	resp := c.mintToken("u-admin", "Mallory", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("mint without issuer key: %d", resp.StatusCode)
	}

	resp = c.mintToken("u-admin", "Mallory", "wrong-key")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("mint with wrong issuer key: %d", resp.StatusCode)
	}

	// And without a token of their own, they cannot touch user management.
	resp = c.do(http.MethodPost, "/v1/users", map[string]string{"id": "u-evil", "role": "admin"}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("user creation without token: %d", resp.StatusCode)
	}
}

func TestCampaignLifecycleOverHTTP(t *testing.T) {
	c := newTestAPI(t)

	resp := c.authed(http.MethodPost, "/v1/campaigns", map[string]string{
		"name":        "Q1 2024",
		"startDate":   "2024-01-01",
		"endDate":     "2024-03-31",
		"warehouseId": "all",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}
	created := decodeBody[inventory.Campaign](t, resp)
	if created.Status != inventory.StatusScheduled {
		t.Fatalf("new campaign: %+v", created)
	}

	// Approving before completion must be rejected.
	resp = c.authed(http.MethodPost, "/v1/campaigns/"+created.ID+"/approve", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("early approve: %d", resp.StatusCode)
	}

	resp = c.authed(http.MethodPost, "/v1/campaigns/"+created.ID+"/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.authed(http.MethodPut, "/v1/campaigns/"+created.ID+"/results", map[string]string{
		"vehicleId": "V1",
		"status":    "found",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record result: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.authed(http.MethodPost, "/v1/campaigns/"+created.ID+"/complete", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.authed(http.MethodPost, "/v1/campaigns/"+created.ID+"/approve", map[string]string{"notes": "ok"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: %d", resp.StatusCode)
	}
	approved := decodeBody[inventory.Campaign](t, resp)
	if approved.Status != inventory.StatusApproved || approved.ApprovedBy != "Dana" {
		t.Fatalf("approved campaign: %+v", approved)
	}

	results := decodeBody[map[string]inventory.Result](t, c.authed(http.MethodGet, "/v1/campaigns/"+created.ID+"/results", nil))
	if results["V1"].Status != inventory.ResultFound {
		t.Fatalf("results: %+v", results)
	}

	resp = c.authed(http.MethodGet, "/v1/campaigns/missing", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown campaign: %d", resp.StatusCode)
	}
}

func TestCampaignCompareOverHTTP(t *testing.T) {
	c := newTestAPI(t)

	mk := func() inventory.Campaign {
		resp := c.authed(http.MethodPost, "/v1/campaigns", map[string]string{
			"name": "Count", "startDate": "2024-01-01", "endDate": "2024-01-31",
		})
		created := decodeBody[inventory.Campaign](t, resp)
		c.authed(http.MethodPost, "/v1/campaigns/"+created.ID+"/start", nil).Body.Close()
		return created
	}
	c1 := mk()
	c2 := mk()
	c.authed(http.MethodPut, "/v1/campaigns/"+c1.ID+"/results", map[string]string{"vehicleId": "V1", "status": "found"}).Body.Close()
	c.authed(http.MethodPut, "/v1/campaigns/"+c2.ID+"/results", map[string]string{"vehicleId": "V1", "status": "missing"}).Body.Close()

	cmp := decodeBody[inventory.Comparison](t, c.authed(http.MethodGet, "/v1/campaigns/compare?a="+c1.ID+"&b="+c2.ID, nil))
	if len(cmp.NowMissing) != 1 || cmp.NowMissing[0] != "V1" {
		t.Fatalf("comparison: %+v", cmp)
	}

	resp := c.authed(http.MethodGet, "/v1/campaigns/compare?a="+c1.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing b: %d", resp.StatusCode)
	}
}

func TestUserEndpoints(t *testing.T) {
	c := newTestAPI(t)

	resp := c.authed(http.MethodPost, "/v1/users", map[string]string{
		"id": "u-staff", "role": "inventory_staff", "email": "staff@example.com",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add user: %d", resp.StatusCode)
	}

	resp = c.authed(http.MethodPut, "/v1/users/u-staff/role", map[string]string{
		"role": "warehouse_manager", "warehouse": "WH001",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign role: %d", resp.StatusCode)
	}

	users := decodeBody[[]userResponse](t, c.authed(http.MethodGet, "/v1/users", nil))
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	// The caller's own id must never be deletable.
	resp = c.authed(http.MethodDelete, "/v1/users/u-admin", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("self delete: %d", resp.StatusCode)
	}

	resp = c.authed(http.MethodDelete, "/v1/users/u-staff", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete user: %d", resp.StatusCode)
	}

	roles := decodeBody[[]roleResponse](t, c.authed(http.MethodGet, "/v1/roles", nil))
	if len(roles) != 4 {
		t.Fatalf("expected 4 roles, got %d", len(roles))
	}
}

func TestAuditEndpoints(t *testing.T) {
	c := newTestAPI(t)

	// Campaign creation leaves a trace to query for.
	c.authed(http.MethodPost, "/v1/campaigns", map[string]string{
		"name": "Trace", "startDate": "2024-01-01", "endDate": "2024-01-31",
	}).Body.Close()

	entries := decodeBody[[]audit.Entry](t, c.authed(http.MethodGet, "/v1/audit?action=campaign_created", nil))
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	resp := c.authed(http.MethodPost, "/v1/audit/prune", map[string]int{"daysToKeep": 0})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("prune with zero days: %d", resp.StatusCode)
	}

	result := decodeBody[map[string]int](t, c.authed(http.MethodPost, "/v1/audit/prune", map[string]int{"daysToKeep": 30}))
	if result["removed"] != 0 {
		t.Fatalf("fresh entries pruned: %v", result)
	}
}

func TestWarehouseAndVehicleEndpoints(t *testing.T) {
	c := newTestAPI(t)

	warehouses := decodeBody[[]fleet.Warehouse](t, c.authed(http.MethodGet, "/v1/warehouses", nil))
	if len(warehouses) != 3 {
		t.Fatalf("expected 3 seeded warehouses, got %d", len(warehouses))
	}

	resp := c.authed(http.MethodPost, "/v1/vehicles", map[string]any{
		"id": "V1", "make": "Volvo", "model": "FH16", "year": 2021, "warehouseId": "WH001",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add vehicle: %d", resp.StatusCode)
	}

	rec := decodeBody[fleet.TransferRecord](t, c.authed(http.MethodPost, "/v1/vehicles/V1/transfer", map[string]string{
		"toWarehouseId": "WH002", "notes": "rebalance",
	}))
	if rec.FromWarehouse != "WH001" || rec.ToWarehouse != "WH002" {
		t.Fatalf("transfer: %+v", rec)
	}

	stats := decodeBody[[]fleet.Occupancy](t, c.authed(http.MethodGet, "/v1/warehouses/stats", nil))
	if len(stats) != 3 {
		t.Fatalf("stats: %+v", stats)
	}

	resp = c.authed(http.MethodDelete, "/v1/vehicles/V1", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete vehicle: %d", resp.StatusCode)
	}
}
