package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-delivery-bot/internal/cart"
	"github.com/tbourn/go-delivery-bot/internal/catalog"
	"github.com/tbourn/go-delivery-bot/internal/domain"
	"github.com/tbourn/go-delivery-bot/internal/keyboard"
	"github.com/tbourn/go-delivery-bot/internal/repo"
	"github.com/tbourn/go-delivery-bot/internal/services"
	"github.com/tbourn/go-delivery-bot/internal/session"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]domain.Product{
		{ID: 1, Title: "Pizza Diablo", Category: "Pizza", Subcategory: "30cm", Price: decimal.RequireFromString("9"), Composition: "spicy salami, chili"},
		{ID: 2, Title: "Philadelphia", Category: "Sushi", Price: decimal.RequireFromString("7"), Composition: "salmon, cream cheese"},
		{ID: 3, Title: "Cola", Category: "Drinks", Price: decimal.RequireFromString("1.5")},
	})
}

// newAPI wires handlers to real services over a fresh database holding
// three orders for user 10 and one for user 20.
func newAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	return newAPIWith(t, nil)
}

// newAPIWith is newAPI with a hook to wire the order service's collaborators.
func newAPIWith(t *testing.T, configure func(*services.OrderService)) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	ctx := context.Background()

	for _, u := range []domain.User{{ID: 10, FirstName: "Ivan"}, {ID: 20, FirstName: "Olga"}} {
		u := u
		if err := repo.AddUser(ctx, db, &u); err != nil {
			t.Fatalf("add user: %v", err)
		}
	}
	for _, uid := range []int64{10, 10, 10, 20} {
		o := &domain.Order{
			UserID:       uid,
			Cart:         "1 x Pizza Diablo 30cm = 9.00",
			DeliveryType: domain.SelfPick,
			PaymentType:  domain.PayCash,
			Status:       domain.OrderInitial,
			Price:        decimal.RequireFromString("9"),
		}
		if err := repo.AddOrder(ctx, db, o); err != nil {
			t.Fatalf("add order: %v", err)
		}
	}

	cat := testCatalog()
	orders := services.NewOrderService(db, cat, cart.Pricing{Fee: decimal.NewFromInt(2), Currency: "$"})
	if configure != nil {
		configure(orders)
	}
	h := New(orders, services.NewUserService(db), cat)
	h.DB = db

	r := gin.New()
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/report.csv", h.OrdersReport)
	r.GET("/orders/:id", h.GetOrder)
	r.POST("/orders/:id/status", h.UpdateOrderStatus)
	r.GET("/users", h.ListUsers)
	r.GET("/products", h.ListProducts)
	return r, db
}

func call(r http.Handler, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("json: %v; body=%s", err, w.Body.String())
	}
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var er ErrorResponse
	decode(t, w, &er)
	return er.Code
}

func TestListOrders_PaginationAndFilters(t *testing.T) {
	r, _ := newAPI(t)

	w := call(r, http.MethodGet, "/orders?page=1&page_size=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp ListOrdersResponse
	decode(t, w, &resp)
	if len(resp.Orders) != 2 || resp.Pagination.Total != 4 || resp.Pagination.TotalPages != 2 || !resp.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", resp.Pagination)
	}
	if resp.Orders[0].ID < resp.Orders[1].ID {
		t.Fatalf("expected newest first, got %d then %d", resp.Orders[0].ID, resp.Orders[1].ID)
	}

	w = call(r, http.MethodGet, "/orders?user_id=20", "", nil)
	decode(t, w, &resp)
	if resp.Pagination.Total != 1 || resp.Orders[0].UserID != 20 {
		t.Fatalf("user filter: %+v", resp)
	}

	w = call(r, http.MethodGet, "/orders?status=confirmed", "", nil)
	decode(t, w, &resp)
	if resp.Pagination.Total != 0 || len(resp.Orders) != 0 {
		t.Fatalf("status filter: %+v", resp)
	}

	if w := call(r, http.MethodGet, "/orders?status=shipped", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status: %d", w.Code)
	}
	if w := call(r, http.MethodGet, "/orders?user_id=abc", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad user_id: %d", w.Code)
	}
}

func TestListOrders_ETag(t *testing.T) {
	r, _ := newAPI(t)

	w := call(r, http.MethodGet, "/orders", "", nil)
	etag := w.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"orders:`) {
		t.Fatalf("etag=%q", etag)
	}
	w = call(r, http.MethodGet, "/orders", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}
	// A different page is a different representation.
	w = call(r, http.MethodGet, "/orders?page=2", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for another page, got %d", w.Code)
	}
}

func TestGetOrder(t *testing.T) {
	r, _ := newAPI(t)

	w := call(r, http.MethodGet, "/orders/1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var o domain.Order
	decode(t, w, &o)
	if o.ID != 1 || o.Status != domain.OrderInitial || !o.Price.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("unexpected order: %+v", o)
	}

	if w := call(r, http.MethodGet, "/orders/99", "", nil); w.Code != http.StatusNotFound || errCode(t, w) != ErrCodeNotFound {
		t.Fatalf("missing order: %d", w.Code)
	}
	if w := call(r, http.MethodGet, "/orders/zero", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", w.Code)
	}
}

func TestUpdateOrderStatus_ExactlyOnce(t *testing.T) {
	r, _ := newAPI(t)

	w := call(r, http.MethodPost, "/orders/2/status", `{"status":"confirmed"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var o domain.Order
	decode(t, w, &o)
	if o.Status != domain.OrderConfirmed || o.FinalizedAt == nil {
		t.Fatalf("not finalized: %+v", o)
	}

	w = call(r, http.MethodPost, "/orders/2/status", `{"status":"cancelled"}`, nil)
	if w.Code != http.StatusConflict || errCode(t, w) != ErrCodeConflict {
		t.Fatalf("second finalize: %d %s", w.Code, w.Body.String())
	}

	w = call(r, http.MethodGet, "/orders/2", "", nil)
	decode(t, w, &o)
	if o.Status != domain.OrderConfirmed {
		t.Fatalf("status changed after conflict: %s", o.Status)
	}
}

type sentText struct {
	chatID int64
	text   string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentText
}

func (f *fakeMessenger) NotifyUser(_ context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{userID, text})
	return nil
}

func (f *fakeMessenger) NotifyAdmin(_ context.Context, text string, _ *keyboard.Inline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{-1, text})
	return nil
}

func TestUpdateOrderStatus_NotifiesCustomer(t *testing.T) {
	ctx := context.Background()
	msgr := &fakeMessenger{}
	sessions := session.NewMemoryStore(0)

	sess := session.New(10)
	sess.PendingOrderID = 3
	if err := sessions.Save(ctx, sess); err != nil {
		t.Fatalf("save session: %v", err)
	}

	r, _ := newAPIWith(t, func(o *services.OrderService) {
		o.Notifier = msgr
		o.Customer = msgr
		o.Sessions = sessions
		o.Texts = services.DecisionTexts{
			Confirmed:      "thanks",
			Cancelled:      "cancelled",
			AdminConfirmed: "order %d confirmed",
			AdminCancelled: "order %d cancelled",
		}
	})

	if w := call(r, http.MethodPost, "/orders/3/status", `{"status":"cancelled"}`, nil); w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	want := []sentText{{10, "cancelled"}, {-1, "order 3 cancelled"}}
	if fmt.Sprint(msgr.sent) != fmt.Sprint(want) {
		t.Fatalf("sent=%v want=%v", msgr.sent, want)
	}
	got, err := sessions.Get(ctx, 10)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.PendingOrderID != 0 {
		t.Fatalf("pending order not cleared: %d", got.PendingOrderID)
	}

	// A conflict finalizes nothing and tells nobody.
	if w := call(r, http.MethodPost, "/orders/3/status", `{"status":"confirmed"}`, nil); w.Code != http.StatusConflict {
		t.Fatalf("second finalize: %d", w.Code)
	}
	if len(msgr.sent) != 2 {
		t.Fatalf("notified after conflict: %v", msgr.sent)
	}
}

func TestUpdateOrderStatus_KeepsOtherPendingOrder(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewMemoryStore(0)
	sess := session.New(10)
	sess.PendingOrderID = 2
	if err := sessions.Save(ctx, sess); err != nil {
		t.Fatalf("save session: %v", err)
	}
	r, _ := newAPIWith(t, func(o *services.OrderService) { o.Sessions = sessions })

	if w := call(r, http.MethodPost, "/orders/1/status", `{"status":"confirmed"}`, nil); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	got, err := sessions.Get(ctx, 10)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.PendingOrderID != 2 {
		t.Fatalf("pending order changed: %d", got.PendingOrderID)
	}
}

func TestUpdateOrderStatus_Validation(t *testing.T) {
	r, _ := newAPI(t)

	cases := []struct {
		name, target, body string
		want               int
	}{
		{"initial is not final", "/orders/1/status", `{"status":"initial"}`, http.StatusBadRequest},
		{"unknown status", "/orders/1/status", `{"status":"shipped"}`, http.StatusBadRequest},
		{"missing status", "/orders/1/status", `{}`, http.StatusBadRequest},
		{"not json", "/orders/1/status", `status=confirmed`, http.StatusBadRequest},
		{"unknown order", "/orders/99/status", `{"status":"cancelled"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := call(r, http.MethodPost, tc.target, tc.body, nil)
			if w.Code != tc.want {
				t.Fatalf("status=%d want=%d body=%s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestOrdersReport(t *testing.T) {
	r, _ := newAPI(t)

	w := call(r, http.MethodGet, "/orders/report.csv?user_id=10", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content-type=%q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "orders.csv") {
		t.Fatalf("content-disposition=%q", cd)
	}
	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(records) != 4 || records[0][0] != "id" || records[1][1] != "10" {
		t.Fatalf("unexpected report: %v", records)
	}
}

func TestListUsers(t *testing.T) {
	r, _ := newAPI(t)

	w := call(r, http.MethodGet, "/users?page_size=1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ListUsersResponse
	decode(t, w, &resp)
	if len(resp.Users) != 1 || resp.Pagination.Total != 2 || !resp.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", resp)
	}

	etag := w.Header().Get("ETag")
	w = call(r, http.MethodGet, "/users?page_size=1", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}
}

func TestListProducts(t *testing.T) {
	r, _ := newAPI(t)

	var resp ListProductsResponse
	decode(t, call(r, http.MethodGet, "/products", "", nil), &resp)
	if len(resp.Products) != 3 || resp.Products[0].Title != "Pizza Diablo" || len(resp.Hits) != 0 {
		t.Fatalf("unexpected menu: %+v", resp)
	}

	resp = ListProductsResponse{}
	decode(t, call(r, http.MethodGet, "/products?q=salmon&limit=5", "", nil), &resp)
	if len(resp.Hits) == 0 || resp.Hits[0].Title != "Philadelphia" || resp.Hits[0].Score <= 0 {
		t.Fatalf("unexpected hits: %+v", resp.Hits)
	}
}

func TestPaginationHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var page, size int
	r.GET("/p", func(c *gin.Context) { page, size = clampPagination(c) })

	for _, tc := range []struct {
		q              string
		wantP, wantSiz int
	}{
		{"", 1, defaultPageSize},
		{"page=0&page_size=0", 1, 1},
		{"page=3&page_size=500", 3, maxPageSize},
		{"page=x&page_size=y", 1, defaultPageSize},
	} {
		call(r, http.MethodGet, "/p?"+tc.q, "", nil)
		if page != tc.wantP || size != tc.wantSiz {
			t.Fatalf("%q: got (%d,%d)", tc.q, page, size)
		}
	}

	if p := paginate(2, 10, 0); p.TotalPages != 0 || p.HasNext {
		t.Fatalf("empty: %+v", p)
	}
	if p := paginate(1, 10, 21); p.TotalPages != 3 || !p.HasNext {
		t.Fatalf("partial: %+v", p)
	}
}
