//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coffee-order/api/internal/config"
	"github.com/coffee-order/api/internal/database"
	"github.com/coffee-order/api/internal/router"
	"github.com/coffee-order/api/internal/service"
	"github.com/coffee-order/api/internal/ws"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testEnv is a running API backed by a real PostgreSQL container.
type testEnv struct {
	pool   *pgxpool.Pool
	server *httptest.Server
	hub    *ws.Hub
}

func setupIntegration(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	t.Cleanup(cleanup)

	// Path relative to this package directory (internal/handler/).
	if err := database.Migrate(connStr, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := database.Connect(ctx, connStr, database.PoolConfig{MaxConns: 20})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	hubCtx, stopHub := context.WithCancel(context.Background())
	t.Cleanup(stopHub)
	hub := ws.NewHub()
	go hub.Run(hubCtx)

	cfg := &config.Config{Port: "0", DatabaseURL: connStr}
	orders := service.NewOrderService(pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		service.WithLockTimeout(5*time.Second),
		service.WithPublisher(hub),
	)
	t.Cleanup(func() { orders.Close(context.Background()) }) //nolint:errcheck
	r := router.New(cfg, router.Deps{
		Queries:   database.New(pool),
		Pool:      pool,
		Orders:    orders,
		WebSocket: ws.Handler(hub, nil),
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testEnv{pool: pool, server: server, hub: hub}
}

// TestIntegrationOrderLifecycle creates a catalog through the admin API,
// places an order, drives it through the status machine and checks stock.
func TestIntegrationOrderLifecycle(t *testing.T) {
	env := setupIntegration(t)

	latte := env.createMenu(t, "Latte", 4000, 10)
	americano := env.createMenu(t, "Americano", 3000, 3)
	extraShot := env.createOption(t, latte, "Extra shot", 500)
	oatMilk := env.createOption(t, latte, "Oat milk", 700)
	large := env.createOption(t, americano, "Large", 1000)

	conn := env.dialBoard(t)
	defer conn.Close()

	// 2 x (4000 + 500 + 700) + 1 x (3000 + 1000) = 14400
	status, body := env.do(t, "POST", "/api/orders", map[string]interface{}{
		"items": []map[string]interface{}{
			{"menuId": latte, "quantity": 2, "options": []map[string]interface{}{{"optionId": extraShot}, {"optionId": oatMilk}}},
			{"menuId": americano, "quantity": 1, "options": []map[string]interface{}{{"optionId": large}}},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("create order: status %d, body %v", status, body)
	}
	order := body["data"].(map[string]interface{})
	orderID := int32(order["orderId"].(float64))
	if order["totalAmount"].(float64) != 14400 {
		t.Fatalf("totalAmount: got %v, want 14400", order["totalAmount"])
	}
	if order["status"] != "received" {
		t.Fatalf("status: got %v, want received", order["status"])
	}

	msg := readBoardEvent(t, conn)
	if msg["eventType"] != "order.created" {
		t.Errorf("expected order.created on the board, got %v", msg["eventType"])
	}

	env.assertStock(t, latte, 8)
	env.assertStock(t, americano, 2)

	// A later price change must not touch the stored order.
	status, _ = env.do(t, "PUT", fmt.Sprintf("/api/admin/menus/%d", latte), map[string]interface{}{"name": "Latte", "price": 9999})
	if status != http.StatusOK {
		t.Fatalf("update menu: status %d", status)
	}
	status, body = env.do(t, "GET", fmt.Sprintf("/api/orders/%d", orderID), nil)
	if status != http.StatusOK {
		t.Fatalf("get order: status %d", status)
	}
	detail := body["data"].(map[string]interface{})
	if detail["totalAmount"].(float64) != 14400 {
		t.Errorf("stored total changed: %v", detail["totalAmount"])
	}
	firstItem := detail["items"].([]interface{})[0].(map[string]interface{})
	if firstItem["price"].(float64) != 4000 || firstItem["subtotal"].(float64) != 10400 {
		t.Errorf("stored item not frozen: %v", firstItem)
	}

	// received -> inProgress -> completed; completed -> cancelled is rejected.
	env.patchStatus(t, orderID, "inProgress", http.StatusOK)
	if msg := readBoardEvent(t, conn); msg["eventType"] != "order.status_changed" {
		t.Errorf("expected order.status_changed, got %v", msg["eventType"])
	}
	env.patchStatus(t, orderID, "completed", http.StatusOK)
	env.patchStatus(t, orderID, "cancelled", http.StatusBadRequest)
	env.assertStock(t, latte, 8)

	status, body = env.do(t, "GET", "/api/admin/statistics", nil)
	if status != http.StatusOK {
		t.Fatalf("statistics: status %d", status)
	}
	stats := body["data"].(map[string]interface{})
	if stats["total"].(float64) != 1 || stats["completed"].(float64) != 1 {
		t.Errorf("unexpected statistics: %v", stats)
	}

	// Menus referenced by orders cannot be deleted.
	status, _ = env.do(t, "DELETE", fmt.Sprintf("/api/admin/menus/%d", latte), nil)
	if status != http.StatusConflict {
		t.Errorf("delete referenced menu: got %d, want 409", status)
	}
}

// TestIntegrationRejectedOrderWritesNothing checks that a failing item rolls
// back the whole order.
func TestIntegrationRejectedOrderWritesNothing(t *testing.T) {
	env := setupIntegration(t)

	latte := env.createMenu(t, "Latte", 4000, 10)
	americano := env.createMenu(t, "Americano", 3000, 3)
	large := env.createOption(t, americano, "Large", 1000)

	tests := []struct {
		name  string
		items []map[string]interface{}
		want  string
	}{
		{
			name: "insufficient stock on second item",
			items: []map[string]interface{}{
				{"menuId": latte, "quantity": 1},
				{"menuId": americano, "quantity": 4},
			},
			want: "Insufficient stock",
		},
		{
			name: "option from another menu",
			items: []map[string]interface{}{
				{"menuId": latte, "quantity": 1, "options": []map[string]interface{}{{"optionId": large}}},
			},
			want: "Invalid option",
		},
		{
			name: "unknown menu",
			items: []map[string]interface{}{
				{"menuId": latte, "quantity": 1},
				{"menuId": 99999, "quantity": 1},
			},
			want: "menu not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, "POST", "/api/orders", map[string]interface{}{"items": tt.items})
			if status != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400; body %v", status, body)
			}
			if msg, _ := body["error"].(string); !strings.Contains(msg, tt.want) {
				t.Errorf("error: got %q, want %q", msg, tt.want)
			}
		})
	}

	env.assertStock(t, latte, 10)
	env.assertStock(t, americano, 3)
	env.assertOrderCount(t, 0)
}

// TestIntegrationConcurrentOrdersNeverOversell races more orders than the
// stock can cover and checks that exactly the stock's worth succeed.
func TestIntegrationConcurrentOrdersNeverOversell(t *testing.T) {
	env := setupIntegration(t)

	const stock = 5
	const attempts = 12
	mocha := env.createMenu(t, "Mocha", 4500, stock)
	latte := env.createMenu(t, "Latte", 4000, 100)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[int]int{}
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Alternate item order so lock acquisition order is exercised.
			items := []map[string]interface{}{{"menuId": mocha, "quantity": 1}, {"menuId": latte, "quantity": 1}}
			if i%2 == 1 {
				items[0], items[1] = items[1], items[0]
			}
			status, _ := env.do(t, "POST", "/api/orders", map[string]interface{}{"items": items})
			mu.Lock()
			results[status]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if results[http.StatusCreated] != stock {
		t.Errorf("created orders: got %d, want %d (results %v)", results[http.StatusCreated], stock, results)
	}
	if results[http.StatusCreated]+results[http.StatusBadRequest] != attempts {
		t.Errorf("unexpected statuses: %v", results)
	}
	env.assertStock(t, mocha, 0)
	env.assertStock(t, latte, 100-stock)
	env.assertOrderCount(t, stock)
}

// TestIntegrationCancelRestoresStock checks that cancelling returns stock
// exactly once, including under concurrent cancels.
func TestIntegrationCancelRestoresStock(t *testing.T) {
	env := setupIntegration(t)

	latte := env.createMenu(t, "Latte", 4000, 10)

	status, body := env.do(t, "POST", "/api/orders", map[string]interface{}{
		"items": []map[string]interface{}{
			{"menuId": latte, "quantity": 2},
			{"menuId": latte, "quantity": 3},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("create order: status %d, body %v", status, body)
	}
	orderID := int32(body["data"].(map[string]interface{})["orderId"].(float64))
	env.assertStock(t, latte, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	codes := map[int]int{}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := env.do(t, "PATCH", fmt.Sprintf("/api/admin/orders/%d/status", orderID), map[string]string{"status": "cancelled"})
			mu.Lock()
			codes[status]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if codes[http.StatusOK] != 1 || codes[http.StatusBadRequest] != 3 {
		t.Errorf("unexpected cancel results: %v", codes)
	}
	env.assertStock(t, latte, 10)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("coffee_test"),
		tcpostgres.WithUsername("coffee"),
		tcpostgres.WithPassword("coffee"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
	return connStr, cleanup
}

func (e *testEnv) createMenu(t *testing.T, name string, price int64, stock int32) int32 {
	t.Helper()
	status, body := e.do(t, "POST", "/api/admin/menus", map[string]interface{}{"name": name, "price": price, "stock": stock})
	if status != http.StatusCreated {
		t.Fatalf("create menu %s: status %d, body %v", name, status, body)
	}
	return int32(body["data"].(map[string]interface{})["menuId"].(float64))
}

func (e *testEnv) createOption(t *testing.T, menuID int32, name string, price int64) int32 {
	t.Helper()
	status, body := e.do(t, "POST", "/api/admin/options", map[string]interface{}{"menuId": menuID, "name": name, "price": price})
	if status != http.StatusCreated {
		t.Fatalf("create option %s: status %d, body %v", name, status, body)
	}
	return int32(body["data"].(map[string]interface{})["optionId"].(float64))
}

func (e *testEnv) patchStatus(t *testing.T, orderID int32, status string, want int) {
	t.Helper()
	got, body := e.do(t, "PATCH", fmt.Sprintf("/api/admin/orders/%d/status", orderID), map[string]string{"status": status})
	if got != want {
		t.Fatalf("status -> %s: got %d, want %d; body %v", status, got, want, body)
	}
}

func (e *testEnv) assertStock(t *testing.T, menuID int32, want int32) {
	t.Helper()
	var stock int32
	if err := e.pool.QueryRow(context.Background(), `SELECT stock FROM menus WHERE menu_id = $1`, menuID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != want {
		t.Errorf("menu %d stock: got %d, want %d", menuID, stock, want)
	}
}

func (e *testEnv) assertOrderCount(t *testing.T, want int) {
	t.Helper()
	var n int
	if err := e.pool.QueryRow(context.Background(), `SELECT count(*) FROM orders`).Scan(&n); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if n != want {
		t.Errorf("orders: got %d, want %d", n, want)
	}
}

func (e *testEnv) dialBoard(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/orders"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial board: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for e.hub.ClientCount(ws.TopicAll) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("board client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readBoardEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read board event: %v", err)
	}
	var evt map[string]interface{}
	if err := json.Unmarshal(msg, &evt); err != nil {
		t.Fatalf("decode board event: %v", err)
	}
	return evt
}

// --- HTTP helpers ---

// do sends a JSON request and returns the status and decoded envelope. It is
// safe to call from multiple goroutines.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Errorf("marshal body: %v", err)
			return 0, nil
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Errorf("create request: %v", err)
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Errorf("do request: %v", err)
		return 0, nil
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Errorf("decode %s %s response: %v", method, path, err)
	}
	return resp.StatusCode, result
}
