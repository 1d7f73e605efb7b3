package notifications_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/features/notifications"
	notificationstore "github.com/dalemusser/taskhub/internal/app/store/notifications"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type inbox struct {
	router   chi.Router
	store    *notificationstore.Store
	org      models.Organization
	ed, bo   models.User
	outsider models.User
}

func setup(t *testing.T) *inbox {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	in := &inbox{store: notificationstore.New(db)}
	in.org = fx.CreateOrganization(ctx, "Acme")
	other := fx.CreateOrganization(ctx, "Globex")
	in.ed = fx.CreateEmployee(ctx, "Ed", "ed@acme.test", in.org.ID)
	in.bo = fx.CreateEmployee(ctx, "Bo", "bo@acme.test", in.org.ID)
	in.outsider = fx.CreateEmployee(ctx, "Oz", "oz@globex.test", other.ID)

	sm, _ := testutil.NewSessionManager(t)
	in.router = notifications.Routes(notifications.NewHandler(db, zap.NewNop()), sm)
	return in
}

// seed stores one notification for u, created at the given offset from now.
func (in *inbox) seed(t *testing.T, u models.User, title string, age time.Duration) models.Notification {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := in.store.Create(ctx, models.Notification{
		UserID:            u.ID,
		OrganizationID:    *u.OrganizationID,
		Type:              models.NotificationTaskAssigned,
		Title:             title,
		TriggeredByUserID: primitive.NewObjectID(),
		CreatedAt:         time.Now().UTC().Add(-age),
	})
	if err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	return n
}

func (in *inbox) do(t *testing.T, method, target string, u models.User) *testutil.ResponseRecorder {
	t.Helper()
	rec := testutil.NewRecorder()
	in.router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(method, target, testutil.FromModel(u)))
	return rec
}

func TestServeList_NewestFirstAndOwnOnly(t *testing.T) {
	in := setup(t)
	in.seed(t, in.ed, "old", time.Hour)
	in.seed(t, in.ed, "new", time.Minute)
	in.seed(t, in.bo, "bo's", time.Minute)

	rec := in.do(t, http.MethodGet, "/", in.ed)
	rec.AssertStatus(t, http.StatusOK)
	var list []models.Notification
	rec.DecodeJSON(t, &list)
	if len(list) != 2 || list[0].Title != "new" || list[1].Title != "old" {
		t.Fatalf("list: %+v", list)
	}

	rec = in.do(t, http.MethodGet, "/?limit=1", in.ed)
	list = nil
	rec.DecodeJSON(t, &list)
	if len(list) != 1 {
		t.Errorf("limit=1 returned %d", len(list))
	}

	in.do(t, http.MethodGet, "/?limit=zero", in.ed).AssertStatus(t, http.StatusBadRequest)

	rec = in.do(t, http.MethodGet, "/", in.outsider)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "[]")
}

func TestMarkRead_AndUnreadCount(t *testing.T) {
	in := setup(t)
	a := in.seed(t, in.ed, "a", time.Minute)
	in.seed(t, in.ed, "b", time.Minute)

	var count struct {
		Count int64 `json:"count"`
	}
	in.do(t, http.MethodGet, "/unread-count", in.ed).DecodeJSON(t, &count)
	if count.Count != 2 {
		t.Fatalf("unread = %d, want 2", count.Count)
	}

	// Someone else's notification looks missing.
	in.do(t, http.MethodPost, "/"+a.ID.Hex()+"/read", in.bo).AssertStatus(t, http.StatusNotFound)
	in.do(t, http.MethodPost, "/"+a.ID.Hex()+"/read", in.ed).AssertStatus(t, http.StatusNoContent)
	in.do(t, http.MethodPost, "/garbage/read", in.ed).AssertStatus(t, http.StatusNotFound)

	in.do(t, http.MethodGet, "/unread-count", in.ed).DecodeJSON(t, &count)
	if count.Count != 1 {
		t.Errorf("unread after mark = %d, want 1", count.Count)
	}

	rec := in.do(t, http.MethodGet, "/?unread=true", in.ed)
	var list []models.Notification
	rec.DecodeJSON(t, &list)
	if len(list) != 1 || list[0].Title != "b" {
		t.Errorf("unread list: %+v", list)
	}
}

func TestMarkAllRead(t *testing.T) {
	in := setup(t)
	in.seed(t, in.ed, "a", time.Minute)
	in.seed(t, in.ed, "b", time.Minute)
	in.seed(t, in.bo, "c", time.Minute)

	var res struct {
		Updated int64 `json:"updated"`
	}
	rec := in.do(t, http.MethodPost, "/read-all", in.ed)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &res)
	if res.Updated != 2 {
		t.Errorf("updated = %d, want 2", res.Updated)
	}

	var count struct {
		Count int64 `json:"count"`
	}
	in.do(t, http.MethodGet, "/unread-count", in.bo).DecodeJSON(t, &count)
	if count.Count != 1 {
		t.Errorf("bo's unread changed: %d", count.Count)
	}
}

func TestDelete(t *testing.T) {
	in := setup(t)
	n := in.seed(t, in.ed, "a", time.Minute)

	in.do(t, http.MethodDelete, "/"+n.ID.Hex(), in.bo).AssertStatus(t, http.StatusNotFound)
	in.do(t, http.MethodDelete, "/"+n.ID.Hex(), in.ed).AssertStatus(t, http.StatusNoContent)
	in.do(t, http.MethodDelete, "/"+n.ID.Hex(), in.ed).AssertStatus(t, http.StatusNotFound)
}

func TestRequiresSignIn(t *testing.T) {
	in := setup(t)
	rec := testutil.NewRecorder()
	in.router.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/unread-count"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}
