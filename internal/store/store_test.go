// ABOUTME: Contract tests run against both backends
// ABOUTME: Verifies identical create/get/update/delete/filter semantics regardless of backend

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return s
}

// withEachBackend runs the same assertions against a fresh instance of every
// backend. Semantics covered here must hold identically for both.
func withEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore(time.Hour)
		defer s.Close()
		fn(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s := newTestSQLiteStore(t)
		defer s.Close()
		fn(t, s)
	})
}

func strPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }

// seedFarmer creates a farmer so dependent records satisfy the SQLite
// foreign keys.
func seedFarmer(t *testing.T, s Store) *Farmer {
	t.Helper()
	f, err := s.CreateFarmer(context.Background(), &Farmer{
		FullName: "A. Dupont",
		Address:  "12 Rue du Lac",
		Phone:    "0601020304",
	})
	if err != nil {
		t.Fatalf("CreateFarmer failed: %v", err)
	}
	return f
}

func seedFarm(t *testing.T, s Store, ownerID int64) *Farm {
	t.Helper()
	f, err := s.CreateFarm(context.Background(), &Farm{
		OwnerID: ownerID,
		Address: "Ferme Nord",
		Zone:    "Z1",
	})
	if err != nil {
		t.Fatalf("CreateFarm failed: %v", err)
	}
	return f
}

func seedCow(t *testing.T, s Store, nationalID string, ownerID, farmID int64) *Cow {
	t.Helper()
	c, err := s.CreateCow(context.Background(), &Cow{
		NationalID: nationalID,
		OwnerID:    ownerID,
		FarmID:     farmID,
		Breed:      "Holstein",
		BirthDate:  "2020-01-01",
	})
	if err != nil {
		t.Fatalf("CreateCow failed: %v", err)
	}
	return c
}

func TestCreateFarmer_ReadYourWrite(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created := seedFarmer(t, s)
		if created.ID != 1 {
			t.Errorf("first farmer ID = %d, want 1", created.ID)
		}

		got, err := s.GetFarmer(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetFarmer failed: %v", err)
		}
		if *got != *created {
			t.Errorf("GetFarmer = %+v, want %+v", got, created)
		}
	})
}

func TestCreateFarm_ReadYourWrite(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmer := seedFarmer(t, s)
		created := seedFarm(t, s, farmer.ID)
		if created.ID != 1 {
			t.Errorf("first farm ID = %d, want 1", created.ID)
		}

		got, err := s.GetFarm(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetFarm failed: %v", err)
		}
		if *got != *created {
			t.Errorf("GetFarm = %+v, want %+v", got, created)
		}
	})
}

func TestCreateCow_ReadYourWrite(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmer := seedFarmer(t, s)
		farm := seedFarm(t, s, farmer.ID)
		created := seedCow(t, s, "FR001", farmer.ID, farm.ID)

		got, err := s.GetCow(ctx, "FR001")
		if err != nil {
			t.Fatalf("GetCow failed: %v", err)
		}
		if *got != *created {
			t.Errorf("GetCow = %+v, want %+v", got, created)
		}
	})
}

func TestCreateCow_OptionalFields(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmer := seedFarmer(t, s)
		farm := seedFarm(t, s, farmer.ID)

		created, err := s.CreateCow(ctx, &Cow{
			NationalID:      "FR002",
			OwnerID:         farmer.ID,
			FarmID:          farm.ID,
			Breed:           "Montbeliarde",
			BirthDate:       "2019-03-15",
			LastCalvingDate: "2023-02-01",
			Father:          "FR900",
			Origin:          "local",
		})
		if err != nil {
			t.Fatalf("CreateCow failed: %v", err)
		}

		got, err := s.GetCow(ctx, "FR002")
		if err != nil {
			t.Fatalf("GetCow failed: %v", err)
		}
		if *got != *created {
			t.Errorf("GetCow = %+v, want %+v", got, created)
		}
		if got.Mother != "" || got.BullBreed != "" {
			t.Errorf("unset optional fields should stay empty, got %+v", got)
		}
	})
}

func TestCreateCow_DuplicateNationalID(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmer := seedFarmer(t, s)
		farm := seedFarm(t, s, farmer.ID)
		first := seedCow(t, s, "FR001", farmer.ID, farm.ID)

		_, err := s.CreateCow(ctx, &Cow{
			NationalID: "FR001",
			OwnerID:    farmer.ID,
			FarmID:     farm.ID,
			Breed:      "Charolaise",
			BirthDate:  "2021-06-01",
		})
		if !errors.Is(err, ErrDuplicateCow) {
			t.Fatalf("second CreateCow error = %v, want ErrDuplicateCow", err)
		}

		// First cow must remain unchanged and retrievable
		got, err := s.GetCow(ctx, "FR001")
		if err != nil {
			t.Fatalf("GetCow failed: %v", err)
		}
		if *got != *first {
			t.Errorf("first cow changed after conflicting create: %+v", got)
		}
	})
}

func TestCreateAct_ReadYourWrite(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmer := seedFarmer(t, s)
		farm := seedFarm(t, s, farmer.ID)
		seedCow(t, s, "FR001", farmer.ID, farm.ID)

		created, err := s.CreateAct(ctx, &Act{InseminationDate: "2023-05-01", NationalID: "FR001"})
		if err != nil {
			t.Fatalf("CreateAct failed: %v", err)
		}
		if created.ID != 1 {
			t.Errorf("first act ID = %d, want 1", created.ID)
		}

		got, err := s.GetAct(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetAct failed: %v", err)
		}
		if *got != *created {
			t.Errorf("GetAct = %+v, want %+v", got, created)
		}
	})
}

func TestGet_Absent(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if _, err := s.GetFarmer(ctx, 42); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetFarmer(42) error = %v, want ErrNotFound", err)
		}
		if _, err := s.GetFarm(ctx, 42); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetFarm(42) error = %v, want ErrNotFound", err)
		}
		if _, err := s.GetCow(ctx, "FR999"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetCow(FR999) error = %v, want ErrNotFound", err)
		}
		if _, err := s.GetAct(ctx, 42); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetAct(42) error = %v, want ErrNotFound", err)
		}
		if _, err := s.GetUser(ctx, 42); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetUser(42) error = %v, want ErrNotFound", err)
		}
	})
}

func TestUpdateFarmer_PartialMerge(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmer := seedFarmer(t, s)

		updated, err := s.UpdateFarmer(ctx, farmer.ID, FarmerPatch{Phone: strPtr("0707070707")})
		if err != nil {
			t.Fatalf("UpdateFarmer failed: %v", err)
		}
		if updated.Phone != "0707070707" {
			t.Errorf("Phone = %q, want updated value", updated.Phone)
		}
		if updated.FullName != farmer.FullName || updated.Address != farmer.Address {
			t.Errorf("unpatched fields changed: %+v", updated)
		}

		got, err := s.GetFarmer(ctx, farmer.ID)
		if err != nil {
			t.Fatalf("GetFarmer failed: %v", err)
		}
		if *got != *updated {
			t.Errorf("stored farmer = %+v, want %+v", got, updated)
		}
	})
}

func TestUpdate_EmptyPatchIsNoOp(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmer := seedFarmer(t, s)
		farm := seedFarm(t, s, farmer.ID)
		cow := seedCow(t, s, "FR001", farmer.ID, farm.ID)

		gotFarmer, err := s.UpdateFarmer(ctx, farmer.ID, FarmerPatch{})
		if err != nil {
			t.Fatalf("UpdateFarmer with empty patch failed: %v", err)
		}
		if *gotFarmer != *farmer {
			t.Errorf("empty patch changed farmer: %+v", gotFarmer)
		}

		gotFarm, err := s.UpdateFarm(ctx, farm.ID, FarmPatch{})
		if err != nil {
			t.Fatalf("UpdateFarm with empty patch failed: %v", err)
		}
		if *gotFarm != *farm {
			t.Errorf("empty patch changed farm: %+v", gotFarm)
		}

		gotCow, err := s.UpdateCow(ctx, "FR001", CowPatch{})
		if err != nil {
			t.Fatalf("UpdateCow with empty patch failed: %v", err)
		}
		if *gotCow != *cow {
			t.Errorf("empty patch changed cow: %+v", gotCow)
		}
	})
}

func TestUpdate_AbsentKey(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if _, err := s.UpdateFarmer(ctx, 42, FarmerPatch{Phone: strPtr("0")}); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateFarmer(42) error = %v, want ErrNotFound", err)
		}
		if _, err := s.UpdateFarm(ctx, 42, FarmPatch{Zone: strPtr("Z9")}); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateFarm(42) error = %v, want ErrNotFound", err)
		}
		if _, err := s.UpdateCow(ctx, "FR999", CowPatch{Breed: strPtr("x")}); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateCow(FR999) error = %v, want ErrNotFound", err)
		}

		// Empty patches still report the missing key
		if _, err := s.UpdateFarmer(ctx, 42, FarmerPatch{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("empty-patch UpdateFarmer(42) error = %v, want ErrNotFound", err)
		}
	})
}

func TestUpdateCow_MergesOverSnapshot(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmer := seedFarmer(t, s)
		farm := seedFarm(t, s, farmer.ID)
		seedCow(t, s, "FR001", farmer.ID, farm.ID)

		updated, err := s.UpdateCow(ctx, "FR001", CowPatch{
			LastCalvingDate: strPtr("2024-01-10"),
			Origin:          strPtr("import"),
		})
		if err != nil {
			t.Fatalf("UpdateCow failed: %v", err)
		}
		if updated.LastCalvingDate != "2024-01-10" || updated.Origin != "import" {
			t.Errorf("patched fields not applied: %+v", updated)
		}
		if updated.Breed != "Holstein" || updated.BirthDate != "2020-01-01" {
			t.Errorf("unpatched fields changed: %+v", updated)
		}
		if updated.NationalID != "FR001" {
			t.Errorf("national ID must be immutable, got %q", updated.NationalID)
		}
	})
}

func TestDelete_Idempotent(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmer := seedFarmer(t, s)

		for i := 0; i < 2; i++ {
			if err := s.DeleteFarmer(ctx, farmer.ID); err != nil {
				t.Fatalf("DeleteFarmer call %d failed: %v", i+1, err)
			}
		}
		if _, err := s.GetFarmer(ctx, farmer.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetFarmer after delete error = %v, want ErrNotFound", err)
		}

		// Deleting a key that never existed is also a no-op
		if err := s.DeleteAct(ctx, 42); err != nil {
			t.Errorf("DeleteAct(42) failed: %v", err)
		}
		if err := s.DeleteCow(ctx, "FR999"); err != nil {
			t.Errorf("DeleteCow(FR999) failed: %v", err)
		}
	})
}

func TestListFarms_OwnerFilter(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		dupont := seedFarmer(t, s)
		martin, err := s.CreateFarmer(ctx, &Farmer{FullName: "B. Martin", Address: "3 Rue Haute", Phone: "0611223344"})
		if err != nil {
			t.Fatalf("CreateFarmer failed: %v", err)
		}

		seedFarm(t, s, dupont.ID)
		seedFarm(t, s, dupont.ID)
		seedFarm(t, s, martin.ID)

		all, err := s.ListFarms(ctx, FarmFilter{})
		if err != nil {
			t.Fatalf("ListFarms failed: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("unfiltered ListFarms returned %d farms, want 3", len(all))
		}

		mine, err := s.ListFarms(ctx, FarmFilter{OwnerID: &dupont.ID})
		if err != nil {
			t.Fatalf("filtered ListFarms failed: %v", err)
		}
		if len(mine) != 2 {
			t.Fatalf("filtered ListFarms returned %d farms, want 2", len(mine))
		}
		for _, f := range mine {
			if f.OwnerID != dupont.ID {
				t.Errorf("farm %d has owner %d, want %d", f.ID, f.OwnerID, dupont.ID)
			}
		}

		none, err := s.ListFarms(ctx, FarmFilter{OwnerID: int64Ptr(99)})
		if err != nil {
			t.Fatalf("ListFarms with unmatched filter failed: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("unmatched filter returned %d farms, want empty", len(none))
		}
	})
}

func TestListCows_OwnerFilter(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		dupont := seedFarmer(t, s)
		martin, err := s.CreateFarmer(ctx, &Farmer{FullName: "B. Martin", Address: "3 Rue Haute", Phone: "0611223344"})
		if err != nil {
			t.Fatalf("CreateFarmer failed: %v", err)
		}
		farm := seedFarm(t, s, dupont.ID)
		otherFarm := seedFarm(t, s, martin.ID)

		seedCow(t, s, "FR001", dupont.ID, farm.ID)
		seedCow(t, s, "FR002", martin.ID, otherFarm.ID)

		mine, err := s.ListCows(ctx, CowFilter{OwnerID: &dupont.ID})
		if err != nil {
			t.Fatalf("filtered ListCows failed: %v", err)
		}
		if len(mine) != 1 || mine[0].NationalID != "FR001" {
			t.Errorf("filtered ListCows = %+v, want exactly FR001", mine)
		}
	})
}

func TestListActs_NationalIDFilter(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmer := seedFarmer(t, s)
		farm := seedFarm(t, s, farmer.ID)
		seedCow(t, s, "FR001", farmer.ID, farm.ID)
		seedCow(t, s, "FR002", farmer.ID, farm.ID)

		if _, err := s.CreateAct(ctx, &Act{InseminationDate: "2023-05-01", NationalID: "FR001"}); err != nil {
			t.Fatalf("CreateAct failed: %v", err)
		}
		if _, err := s.CreateAct(ctx, &Act{InseminationDate: "2023-06-01", NationalID: "FR002"}); err != nil {
			t.Fatalf("CreateAct failed: %v", err)
		}

		acts, err := s.ListActs(ctx, ActFilter{NationalID: strPtr("FR001")})
		if err != nil {
			t.Fatalf("filtered ListActs failed: %v", err)
		}
		if len(acts) != 1 || acts[0].NationalID != "FR001" {
			t.Errorf("filtered ListActs = %+v, want exactly the FR001 act", acts)
		}
	})
}

func TestList_EmptyCollections(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmers, err := s.ListFarmers(ctx)
		if err != nil {
			t.Fatalf("ListFarmers failed: %v", err)
		}
		if len(farmers) != 0 {
			t.Errorf("fresh store listed %d farmers", len(farmers))
		}

		cows, err := s.ListCows(ctx, CowFilter{})
		if err != nil {
			t.Fatalf("ListCows failed: %v", err)
		}
		if len(cows) != 0 {
			t.Errorf("fresh store listed %d cows", len(cows))
		}
	})
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created, err := s.CreateUser(ctx, &User{Username: "dupont", Password: "hash"})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}

		if _, err := s.CreateUser(ctx, &User{Username: "dupont", Password: "other"}); !errors.Is(err, ErrDuplicateUsername) {
			t.Fatalf("second CreateUser error = %v, want ErrDuplicateUsername", err)
		}

		got, err := s.GetUserByUsername(ctx, "dupont")
		if err != nil {
			t.Fatalf("GetUserByUsername failed: %v", err)
		}
		if *got != *created {
			t.Errorf("user changed after conflicting create: %+v", got)
		}
	})
}

func TestGetUserByUsername_Absent(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		if _, err := s.GetUserByUsername(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetUserByUsername error = %v, want ErrNotFound", err)
		}
	})
}

// TestBreedingScenario walks the canonical flow: one farmer, one farm, one
// cow, one insemination act, then the filtered reads a summary view relies on.
func TestBreedingScenario(t *testing.T) {
	withEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		farmer, err := s.CreateFarmer(ctx, &Farmer{FullName: "A. Dupont", Address: "12 Rue du Lac", Phone: "0601020304"})
		if err != nil {
			t.Fatalf("CreateFarmer failed: %v", err)
		}
		if farmer.ID != 1 {
			t.Errorf("farmer ID = %d, want 1", farmer.ID)
		}

		farm, err := s.CreateFarm(ctx, &Farm{OwnerID: farmer.ID, Address: "Ferme Nord", Zone: "Z1", CowCount: 0})
		if err != nil {
			t.Fatalf("CreateFarm failed: %v", err)
		}
		if farm.ID != 1 {
			t.Errorf("farm ID = %d, want 1", farm.ID)
		}

		if _, err := s.CreateCow(ctx, &Cow{NationalID: "FR001", OwnerID: farmer.ID, FarmID: farm.ID, Breed: "Holstein", BirthDate: "2020-01-01"}); err != nil {
			t.Fatalf("CreateCow failed: %v", err)
		}

		act, err := s.CreateAct(ctx, &Act{InseminationDate: "2023-05-01", NationalID: "FR001"})
		if err != nil {
			t.Fatalf("CreateAct failed: %v", err)
		}
		if act.ID != 1 {
			t.Errorf("act ID = %d, want 1", act.ID)
		}

		acts, err := s.ListActs(ctx, ActFilter{NationalID: strPtr("FR001")})
		if err != nil {
			t.Fatalf("ListActs failed: %v", err)
		}
		if len(acts) != 1 || acts[0].ID != 1 {
			t.Errorf("ListActs(FR001) = %+v, want exactly act 1", acts)
		}

		cows, err := s.ListCows(ctx, CowFilter{OwnerID: &farmer.ID})
		if err != nil {
			t.Fatalf("ListCows failed: %v", err)
		}
		if len(cows) != 1 || cows[0].NationalID != "FR001" {
			t.Errorf("ListCows(owner=1) = %+v, want exactly FR001", cows)
		}
	})
}
