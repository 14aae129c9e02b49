package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"feastflow-api/apperrors"
	"feastflow-api/config"
	"feastflow-api/delivery"
	"feastflow-api/models"
	"feastflow-api/payments"
	"feastflow-api/statemachine"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	config.DB = db

	quiet := logrus.New()
	quiet.SetLevel(logrus.PanicLevel)
	Init(Deps{
		Log:       quiet,
		Gateway:   payments.NewDevGateway(quiet),
		Estimator: delivery.NewEstimator(delivery.StraightLineRoute(30)),
	})
	return db
}

type actors struct {
	customer models.User
	owner    models.User
	driver   models.User
}

func seedWorld(t *testing.T, db *gorm.DB) (actors, models.Restaurant, []models.MenuItem) {
	t.Helper()
	a := actors{
		customer: models.User{Name: "Cora", Email: "cora@example.com", PasswordHash: "x", Role: models.RoleCustomer},
		owner:    models.User{Name: "Omar", Email: "omar@example.com", PasswordHash: "x", Role: models.RoleRestaurant},
		driver:   models.User{Name: "Dana", Email: "dana@example.com", PasswordHash: "x", Role: models.RoleDriver},
	}
	for _, u := range []*models.User{&a.customer, &a.owner, &a.driver} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	restaurant := models.Restaurant{
		OwnerID: a.owner.ID,
		Name:    "Trattoria Uno",
		IsOpen:  true,
		Address: models.Address{
			Street: "1 Main St", City: "Springfield", State: "IL",
			Country: "US", PostalCode: "62704",
			Latitude: 39.80, Longitude: -89.64,
		},
		AvgPrepMinutes: 20,
	}
	if err := db.Create(&restaurant).Error; err != nil {
		t.Fatalf("seed restaurant: %v", err)
	}
	items := []models.MenuItem{
		{RestaurantID: restaurant.ID, Name: "Burger", Price: decimal.RequireFromString("10.00"), IsAvailable: true},
		{RestaurantID: restaurant.ID, Name: "Fries", Price: decimal.RequireFromString("5.50"), IsAvailable: true},
	}
	for i := range items {
		if err := db.Create(&items[i]).Error; err != nil {
			t.Fatalf("seed menu item: %v", err)
		}
	}
	return a, restaurant, items
}

func asUser(u models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", u.ID)
		c.Set("role", string(u.Role))
	}
}

func testRouter(a actors) *gin.Engine {
	r := gin.New()
	r.POST("/customer/orders", asUser(a.customer), PlaceOrder)
	r.GET("/customer/orders/:id", asUser(a.customer), GetOrderDetail)
	r.POST("/customer/orders/:id/pay", asUser(a.customer), PayOrder)
	r.POST("/customer/orders/:id/cancel", asUser(a.customer), CancelOrder)
	r.POST("/customer/orders/:id/rate", asUser(a.customer), RateOrder)
	r.PATCH("/restaurant/orders/:id/status", asUser(a.owner), UpdateOrderStatus)
	r.PUT("/driver/orders/:id/accept", asUser(a.driver), AcceptOrder)
	r.PUT("/driver/orders/:id/pickup", asUser(a.driver), PickupOrder)
	r.PUT("/driver/orders/:id/deliver", asUser(a.driver), DeliverOrder)
	r.PUT("/driver/orders/:id/location", asUser(a.driver), LocationPing)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type respBody struct {
	Success bool                       `json:"success"`
	Data    map[string]json.RawMessage `json:"data"`
	Error   string                     `json:"error"`
	Fields  []apperrors.FieldError     `json:"fields"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) respBody {
	t.Helper()
	var body respBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func placeOrderBody(restaurant models.Restaurant, items []models.MenuItem) gin.H {
	return gin.H{
		"restaurant_id": restaurant.ID,
		"items": []gin.H{
			{"menu_item_id": items[0].ID, "quantity": 1},
			{"menu_item_id": items[1].ID, "quantity": 2},
		},
		"delivery_address": gin.H{
			"street": "12 Elm St", "city": "Springfield", "state": "IL",
			"country": "US", "postal_code": "62704",
			"latitude": 39.78, "longitude": -89.65,
		},
		"payment_method_id": "pm_test",
	}
}

func placeOrder(t *testing.T, r *gin.Engine, restaurant models.Restaurant, items []models.MenuItem) models.Order {
	t.Helper()
	w := do(t, r, http.MethodPost, "/customer/orders", placeOrderBody(restaurant, items))
	if w.Code != http.StatusCreated {
		t.Fatalf("place order: status %d, body %s", w.Code, w.Body.String())
	}
	var order models.Order
	if err := json.Unmarshal(decode(t, w).Data["order"], &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	return order
}

func orderPath(prefix string, id uint, action string) string {
	return prefix + "/orders/" + strconv.FormatUint(uint64(id), 10) + action
}

func orderPathID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestOrderHappyPathLifecycle(t *testing.T) {
	db := setupTestDB(t)
	a, restaurant, items := seedWorld(t, db)
	r := testRouter(a)

	order := placeOrder(t, r, restaurant, items)
	if order.Status != models.StatusPending {
		t.Fatalf("new order status = %s, want PENDING", order.Status)
	}
	if !order.Totals.Total.Equal(decimal.RequireFromString("25.68")) {
		t.Errorf("Total = %s, want 25.68", order.Totals.Total)
	}

	if w := do(t, r, http.MethodPost, orderPath("/customer", order.ID, "/pay"), nil); w.Code != http.StatusOK {
		t.Fatalf("pay: status %d, body %s", w.Code, w.Body.String())
	}

	for _, status := range []models.OrderStatus{
		models.StatusConfirmed, models.StatusPreparing, models.StatusReadyForPickup,
	} {
		w := do(t, r, http.MethodPatch, orderPath("/restaurant", order.ID, "/status"), gin.H{"status": string(status)})
		if w.Code != http.StatusOK {
			t.Fatalf("transition to %s: status %d, body %s", status, w.Code, w.Body.String())
		}
	}

	for _, action := range []string{"/accept", "/pickup", "/deliver"} {
		w := do(t, r, http.MethodPut, orderPath("/driver", order.ID, action), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("driver %s: status %d, body %s", action, w.Code, w.Body.String())
		}
	}

	final, err := loadOrder(db, orderPathID(order.ID))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.Status != models.StatusDelivered {
		t.Errorf("final status = %s, want DELIVERED", final.Status)
	}
	if final.PaymentStatus != models.PaymentCaptured {
		t.Errorf("payment status = %s, want CAPTURED", final.PaymentStatus)
	}
	if final.Delivery.ActualTime == nil {
		t.Error("ActualTime not persisted")
	}

	// Creation entry plus the five transitions.
	wantChain := []models.OrderStatus{
		models.StatusPending, models.StatusConfirmed, models.StatusPreparing,
		models.StatusReadyForPickup, models.StatusOutForDelivery, models.StatusDelivered,
	}
	if len(final.TrackingHistory) != len(wantChain) {
		t.Fatalf("history length = %d, want %d", len(final.TrackingHistory), len(wantChain))
	}
	for i, e := range final.TrackingHistory {
		if e.Status != wantChain[i] {
			t.Errorf("history[%d] = %s, want %s", i, e.Status, wantChain[i])
		}
		if i > 0 && e.FromStatus != wantChain[i-1] {
			t.Errorf("history[%d] FromStatus = %s, want %s", i, e.FromStatus, wantChain[i-1])
		}
	}
}

func TestUpdateOrderStatusRejectsSkips(t *testing.T) {
	db := setupTestDB(t)
	a, restaurant, items := seedWorld(t, db)
	r := testRouter(a)
	order := placeOrder(t, r, restaurant, items)

	w := do(t, r, http.MethodPatch, orderPath("/restaurant", order.ID, "/status"), gin.H{"status": "READY_FOR_PICKUP"})
	if w.Code != http.StatusConflict {
		t.Fatalf("skip transition: status %d, want 409; body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body.Success {
		t.Error("success = true on rejected transition")
	}

	var stored models.Order
	db.First(&stored, order.ID)
	if stored.Status != models.StatusPending {
		t.Errorf("status mutated to %s on rejected transition", stored.Status)
	}
	var count int64
	db.Model(&models.TrackingEvent{}).Where("order_id = ?", order.ID).Count(&count)
	if count != 1 {
		t.Errorf("tracking entries = %d, want only the creation entry", count)
	}
}

func TestCancelCapturedRequiresRefund(t *testing.T) {
	db := setupTestDB(t)
	a, restaurant, items := seedWorld(t, db)
	r := testRouter(a)
	order := placeOrder(t, r, restaurant, items)

	if w := do(t, r, http.MethodPost, orderPath("/customer", order.ID, "/pay"), nil); w.Code != http.StatusOK {
		t.Fatalf("pay: status %d", w.Code)
	}

	w := do(t, r, http.MethodPost, orderPath("/customer", order.ID, "/cancel"), gin.H{"reason": "too slow"})
	if w.Code != http.StatusConflict {
		t.Fatalf("cancel without refund: status %d, want 409; body %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPost, orderPath("/customer", order.ID, "/cancel"), gin.H{
		"reason": "too slow",
		"refund": gin.H{"amount": 25.68, "reason": "full refund on cancellation"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel with refund: status %d, body %s", w.Code, w.Body.String())
	}

	var stored models.Order
	db.First(&stored, order.ID)
	if stored.Status != models.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", stored.Status)
	}
	if stored.Refund.Status != models.RefundPending {
		t.Errorf("refund status = %q, want pending", stored.Refund.Status)
	}
}

func TestCasUpdateDetectsStaleVersion(t *testing.T) {
	db := setupTestDB(t)
	a, restaurant, items := seedWorld(t, db)
	r := testRouter(a)
	order := placeOrder(t, r, restaurant, items)

	first, err := loadOrder(db, orderPathID(order.ID))
	if err != nil {
		t.Fatalf("load first copy: %v", err)
	}
	second, err := loadOrder(db, orderPathID(order.ID))
	if err != nil {
		t.Fatalf("load second copy: %v", err)
	}

	if err := casUpdate(db, first, map[string]any{"status": models.StatusConfirmed}); err != nil {
		t.Fatalf("first writer: %v", err)
	}

	err = casUpdate(db, second, map[string]any{"status": models.StatusCancelled})
	var cmErr *apperrors.ConcurrentModificationError
	if !errors.As(err, &cmErr) {
		t.Fatalf("second writer: got %v, want ConcurrentModificationError", err)
	}

	var stored models.Order
	db.First(&stored, order.ID)
	if stored.Status != models.StatusConfirmed {
		t.Errorf("status = %s, want the first writer's CONFIRMED", stored.Status)
	}
	if stored.Version != order.Version+1 {
		t.Errorf("version = %d, want %d", stored.Version, order.Version+1)
	}
}

func TestPersistTransitionStaleCopyConflicts(t *testing.T) {
	db := setupTestDB(t)
	a, restaurant, items := seedWorld(t, db)
	r := testRouter(a)
	order := placeOrder(t, r, restaurant, items)

	first, _ := loadOrder(db, orderPathID(order.ID))
	second, _ := loadOrder(db, orderPathID(order.ID))

	if _, err := persistTransition(db, first, statemachine.Command{
		To:    models.StatusConfirmed,
		Actor: statemachine.ActorRestaurant,
	}); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	// The stale copy still believes the order is PENDING; its legal
	// transition loses the version race.
	_, err := persistTransition(db, second, statemachine.Command{
		To:    models.StatusCancelled,
		Actor: statemachine.ActorCustomer,
	})
	var cmErr *apperrors.ConcurrentModificationError
	if !errors.As(err, &cmErr) {
		t.Fatalf("stale transition: got %v, want ConcurrentModificationError", err)
	}
}

func TestAcceptOrderSecondDriverRejected(t *testing.T) {
	db := setupTestDB(t)
	a, restaurant, items := seedWorld(t, db)
	r := testRouter(a)
	order := placeOrder(t, r, restaurant, items)

	for _, status := range []models.OrderStatus{
		models.StatusConfirmed, models.StatusPreparing, models.StatusReadyForPickup,
	} {
		if w := do(t, r, http.MethodPatch, orderPath("/restaurant", order.ID, "/status"), gin.H{"status": string(status)}); w.Code != http.StatusOK {
			t.Fatalf("transition to %s: %d", status, w.Code)
		}
	}
	if w := do(t, r, http.MethodPut, orderPath("/driver", order.ID, "/accept"), nil); w.Code != http.StatusOK {
		t.Fatalf("first accept: %d", w.Code)
	}

	other := models.User{Name: "Drew", Email: "drew@example.com", PasswordHash: "x", Role: models.RoleDriver}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed second driver: %v", err)
	}
	r2 := gin.New()
	r2.PUT("/driver/orders/:id/accept", asUser(other), AcceptOrder)

	w := do(t, r2, http.MethodPut, orderPath("/driver", order.ID, "/accept"), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second accept: status %d, want 409; body %s", w.Code, w.Body.String())
	}
}

func TestLocationPingPersistsAndRefreshesEta(t *testing.T) {
	db := setupTestDB(t)
	a, restaurant, items := seedWorld(t, db)
	r := testRouter(a)
	order := placeOrder(t, r, restaurant, items)

	for _, status := range []models.OrderStatus{
		models.StatusConfirmed, models.StatusPreparing, models.StatusReadyForPickup,
	} {
		if w := do(t, r, http.MethodPatch, orderPath("/restaurant", order.ID, "/status"), gin.H{"status": string(status)}); w.Code != http.StatusOK {
			t.Fatalf("transition to %s: %d", status, w.Code)
		}
	}
	for _, action := range []string{"/accept", "/pickup"} {
		if w := do(t, r, http.MethodPut, orderPath("/driver", order.ID, action), nil); w.Code != http.StatusOK {
			t.Fatalf("driver %s: %d", action, w.Code)
		}
	}

	w := do(t, r, http.MethodPut, orderPath("/driver", order.ID, "/location"), gin.H{
		"latitude": 39.79, "longitude": -89.66,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ping: status %d, body %s", w.Code, w.Body.String())
	}

	var stored models.Order
	db.First(&stored, order.ID)
	if loc := stored.Delivery.DriverLocation(); loc == nil || loc.Latitude != 39.79 {
		t.Errorf("stored driver location = %v, want the ping", loc)
	}
	if stored.Delivery.EstimatedTime == nil {
		t.Error("estimated time not refreshed by ping")
	}
	if stored.Delivery.EstimatedTime != nil && !stored.Delivery.EstimatedTime.After(time.Now().Add(-time.Minute)) {
		t.Error("estimated time is in the past")
	}

	// Creation plus four transitions; the ping added nothing.
	var count int64
	db.Model(&models.TrackingEvent{}).Where("order_id = ?", order.ID).Count(&count)
	if count != 5 {
		t.Errorf("tracking entries = %d, pings must not add history", count)
	}
}

func TestLocationPingRejectedBeforePickup(t *testing.T) {
	db := setupTestDB(t)
	a, restaurant, items := seedWorld(t, db)
	r := testRouter(a)
	order := placeOrder(t, r, restaurant, items)

	// Assign the driver directly so ownership passes but the status gate fails.
	db.Model(&models.Order{}).Where("id = ?", order.ID).Update("driver_id", a.driver.ID)

	w := do(t, r, http.MethodPut, orderPath("/driver", order.ID, "/location"), gin.H{
		"latitude": 39.79, "longitude": -89.66,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("ping before pickup: status %d, want 422; body %s", w.Code, w.Body.String())
	}
}

func TestRateOrderOnlyAfterDelivery(t *testing.T) {
	db := setupTestDB(t)
	a, restaurant, items := seedWorld(t, db)
	r := testRouter(a)
	order := placeOrder(t, r, restaurant, items)

	rate := gin.H{"food_rating": 5, "delivery_rating": 4, "comment": "great"}
	if w := do(t, r, http.MethodPost, orderPath("/customer", order.ID, "/rate"), rate); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("rate before delivery: status %d, want 422", w.Code)
	}

	db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", models.StatusDelivered)

	if w := do(t, r, http.MethodPost, orderPath("/customer", order.ID, "/rate"), rate); w.Code != http.StatusOK {
		t.Fatalf("rate after delivery: status %d", w.Code)
	}
	// Second rating is rejected.
	if w := do(t, r, http.MethodPost, orderPath("/customer", order.ID, "/rate"), rate); w.Code != http.StatusConflict {
		t.Fatalf("second rating: status %d, want 409", w.Code)
	}
}

func TestPlaceOrderValidationEnvelope(t *testing.T) {
	db := setupTestDB(t)
	a, restaurant, _ := seedWorld(t, db)
	r := testRouter(a)

	w := do(t, r, http.MethodPost, "/customer/orders", gin.H{
		"restaurant_id":     restaurant.ID,
		"items":             []gin.H{},
		"payment_method_id": "pm_test",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400; body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body.Success {
		t.Error("success = true on validation failure")
	}
	if len(body.Fields) == 0 {
		t.Error("no field errors surfaced")
	}
}

func TestGetOrderDetailNotFound(t *testing.T) {
	db := setupTestDB(t)
	a, _, _ := seedWorld(t, db)
	r := testRouter(a)

	w := do(t, r, http.MethodGet, "/customer/orders/9999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404; body %s", w.Code, w.Body.String())
	}
	if decode(t, w).Success {
		t.Error("success = true on missing order")
	}
}
