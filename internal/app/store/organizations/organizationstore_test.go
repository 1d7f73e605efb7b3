package organizationstore_test

import (
	"errors"
	"testing"

	organizationstore "github.com/dalemusser/taskhub/internal/app/store/organizations"
	"github.com/dalemusser/taskhub/internal/app/system/indexes"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org, err := store.Create(ctx, models.Organization{Name: "  Acme   Corp "})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if org.ID == primitive.NilObjectID {
		t.Error("expected ID")
	}
	if org.Status != models.StatusActive {
		t.Errorf("Status: got %q", org.Status)
	}

	byID, err := store.GetByID(ctx, org.ID)
	if err != nil || byID.Name != org.Name {
		t.Fatalf("GetByID: %+v %v", byID, err)
	}
	byName, err := store.GetByName(ctx, "ACME corp")
	if err != nil || byName.ID != org.ID {
		t.Fatalf("GetByName: %+v %v", byName, err)
	}
	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("missing: got %v", err)
	}
}

func TestStore_Create_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	store := organizationstore.New(db)

	if _, err := store.Create(ctx, models.Organization{Name: "Acme"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create(ctx, models.Organization{Name: "acme"}); !errors.Is(err, organizationstore.ErrDuplicateOrganization) {
		t.Errorf("duplicate: got %v", err)
	}
}
