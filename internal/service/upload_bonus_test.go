package service

import (
	"context"
	"testing"

	"github.com/taskmasterai/community-module/internal/repository"
)

func newTestBonusTracker(store repository.Store, pub EventPublisher) *UploadBonusTracker {
	return NewUploadBonusTracker(store, NewTokenLedger(store, testLogger()), DefaultEconomy(), pub, testLogger())
}

func TestOnFileUploaded_Thresholds(t *testing.T) {
	tests := []struct {
		name         string
		files        int
		wantGroups   int
		wantCredited int64
		wantBalance  int64
	}{
		{"четыре файла — без бонуса", 4, 0, 0, 0},
		{"пять файлов — один бонус", 5, 1, 50, 50},
		{"девять файлов — один бонус", 9, 1, 50, 50},
		{"десять файлов — два бонуса сразу", 10, 2, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore()
			tracker := newTestBonusTracker(store, nil)
			seedUser(t, store, "alice", 0)
			for range tt.files {
				seedFile(t, store, "alice", "doc.pdf")
			}

			res, err := tracker.OnFileUploaded(context.Background(), "alice")
			if err != nil {
				t.Fatalf("OnFileUploaded: %v", err)
			}
			if res.FileCount != tt.files {
				t.Errorf("FileCount = %d, ожидалось %d", res.FileCount, tt.files)
			}
			if res.Groups != tt.wantGroups {
				t.Errorf("Groups = %d, ожидалось %d", res.Groups, tt.wantGroups)
			}
			if res.Credited != tt.wantCredited {
				t.Errorf("Credited = %d, ожидалось %d", res.Credited, tt.wantCredited)
			}

			u := loadUser(t, store, "alice")
			if u.TokenBalance != tt.wantBalance {
				t.Errorf("TokenBalance = %d, ожидался %d", u.TokenBalance, tt.wantBalance)
			}
			if u.UploadBonusCount != tt.wantGroups {
				t.Errorf("UploadBonusCount = %d, ожидался %d", u.UploadBonusCount, tt.wantGroups)
			}
		})
	}
}

func TestOnFileUploaded_Idempotent(t *testing.T) {
	store := newTestStore()
	pub := &recordingPublisher{}
	tracker := newTestBonusTracker(store, pub)
	seedUser(t, store, "alice", 0)
	for range 5 {
		seedFile(t, store, "alice", "doc.pdf")
	}

	for i := range 3 {
		if _, err := tracker.OnFileUploaded(context.Background(), "alice"); err != nil {
			t.Fatalf("вызов %d: %v", i, err)
		}
	}

	if got := loadUser(t, store, "alice").TokenBalance; got != 50 {
		t.Errorf("TokenBalance = %d, ожидался 50 (бонус один раз)", got)
	}
	types := pub.types()
	if len(types) != 1 || types[0] != "bonus.awarded" {
		t.Errorf("события = %v, ожидалось [bonus.awarded]", types)
	}
}

func TestOnFileUploaded_NoNegativeCreditAfterDelete(t *testing.T) {
	store := newTestStore()
	tracker := newTestBonusTracker(store, nil)
	seedUser(t, store, "alice", 0)
	var last string
	for range 5 {
		last = seedFile(t, store, "alice", "doc.pdf").ID
	}
	if _, err := tracker.OnFileUploaded(context.Background(), "alice"); err != nil {
		t.Fatalf("OnFileUploaded: %v", err)
	}

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.DeleteFile(ctx, last)
	})
	if err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	res, err := tracker.OnFileUploaded(context.Background(), "alice")
	if err != nil {
		t.Fatalf("OnFileUploaded после удаления: %v", err)
	}
	if res.Credited != 0 {
		t.Errorf("Credited = %d, ожидалось 0", res.Credited)
	}
	u := loadUser(t, store, "alice")
	if u.TokenBalance != 50 || u.UploadBonusCount != 1 {
		t.Errorf("TokenBalance/UploadBonusCount = %d/%d, ожидались 50/1", u.TokenBalance, u.UploadBonusCount)
	}
}

func TestOnFileUploaded_CreatesUser(t *testing.T) {
	store := newTestStore()
	tracker := newTestBonusTracker(store, nil)

	res, err := tracker.OnFileUploaded(context.Background(), "newcomer")
	if err != nil {
		t.Fatalf("OnFileUploaded: %v", err)
	}
	if res.Balance != DefaultEconomy().StartingBalance {
		t.Errorf("Balance = %d, ожидался стартовый %d", res.Balance, DefaultEconomy().StartingBalance)
	}
	if got := loadUser(t, store, "newcomer").TokenBalance; got != DefaultEconomy().StartingBalance {
		t.Errorf("TokenBalance = %d, ожидался %d", got, DefaultEconomy().StartingBalance)
	}
}
