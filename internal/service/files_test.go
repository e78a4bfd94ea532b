package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/taskmasterai/community-module/internal/domain/model"
	"github.com/taskmasterai/community-module/internal/repository"
)

type fileFixture struct {
	store      repository.Store
	files      *FileService
	unlocks    *UnlockRegistry
	reputation *ReputationAggregator
	cache      *ReputationCache
	pub        *recordingPublisher
}

func newFileFixture() *fileFixture {
	store := newTestStore()
	pub := &recordingPublisher{}
	ledger := NewTokenLedger(store, testLogger())
	cache := NewReputationCache(16, time.Minute)
	bonus := NewUploadBonusTracker(store, ledger, DefaultEconomy(), pub, testLogger())
	return &fileFixture{
		store:      store,
		files:      NewFileService(store, bonus, cache, pub, testLogger()),
		unlocks:    NewUnlockRegistry(store, ledger, DefaultPriceTable(), pub, testLogger()),
		reputation: NewReputationAggregator(store, cache, testLogger()),
		cache:      cache,
		pub:        pub,
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newFileFixture()

	tests := []struct {
		name  string
		owner string
		file  string
		size  int64
	}{
		{"пустой владелец", "", "a.pdf", 1},
		{"пустое имя", "alice", "   ", 1},
		{"слишком длинное имя", "alice", strings.Repeat("x", 256), 1},
		{"отрицательный размер", "alice", "a.pdf", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.files.Register(context.Background(), tt.owner, tt.file, tt.size); !errors.Is(err, ErrValidation) {
				t.Errorf("ошибка %v, ожидалась ErrValidation", err)
			}
		})
	}
}

func TestRegister_BonusOnFifthUpload(t *testing.T) {
	f := newFileFixture()
	seedUser(t, f.store, "alice", 0)

	for i := 1; i <= 5; i++ {
		res, err := f.files.Register(context.Background(), "alice", " Report.PDF ", 2048)
		if err != nil {
			t.Fatalf("Register %d: %v", i, err)
		}
		if res.File.Name != "Report.PDF" || res.File.Extension != "pdf" {
			t.Errorf("Name/Extension = %q/%q", res.File.Name, res.File.Extension)
		}
		if res.Bonus == nil {
			t.Fatalf("Register %d: Bonus = nil", i)
		}
		wantCredited := int64(0)
		if i == 5 {
			wantCredited = 50
		}
		if res.Bonus.Credited != wantCredited {
			t.Errorf("Register %d: Credited = %d, ожидалось %d", i, res.Bonus.Credited, wantCredited)
		}
	}

	if got := loadUser(t, f.store, "alice").TokenBalance; got != 50 {
		t.Errorf("TokenBalance = %d, ожидался 50", got)
	}
}

func TestDelete(t *testing.T) {
	f := newFileFixture()
	ctx := context.Background()
	seedUser(t, f.store, "alice", 0)
	seedUser(t, f.store, "bob", 100)
	file := seedFile(t, f.store, "alice", "paper.pdf")

	if _, err := f.unlocks.Purchase(ctx, "bob", file.ID); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if _, err := f.reputation.ToggleLike(ctx, file.ID, "bob"); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if _, err := f.reputation.Rate(ctx, file.ID, "bob", 5); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if _, err := f.reputation.Get(ctx, file.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := f.files.Delete(ctx, "bob", false, file.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("удаление чужого файла: ошибка %v, ожидалась ErrForbidden", err)
	}

	if err := f.files.Delete(ctx, "alice", false, file.ID); err != nil {
		t.Fatalf("Delete владельцем: %v", err)
	}
	if _, err := f.files.Get(ctx, file.ID); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Get после удаления: ошибка %v, ожидалась ErrFileNotFound", err)
	}
	if hasUnlock(t, f.store, "bob", file.ID) {
		t.Error("разблокировка осталась после удаления файла")
	}
	if _, ok := f.cache.Get(file.ID); ok {
		t.Error("кэш репутации не инвалидирован")
	}
	if got := loadUser(t, f.store, "bob").TokenBalance; got != 70 {
		t.Errorf("TokenBalance покупателя = %d, ожидался 70 (возврата нет)", got)
	}

	types := f.pub.types()
	if len(types) == 0 || types[len(types)-1] != model.EventFileDeleted {
		t.Errorf("последнее событие = %v, ожидалось %s", types, model.EventFileDeleted)
	}

	if err := f.files.Delete(ctx, "alice", false, file.ID); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("повторное удаление: ошибка %v, ожидалась ErrFileNotFound", err)
	}
}

func TestDelete_Admin(t *testing.T) {
	f := newFileFixture()
	file := seedFile(t, f.store, "alice", "paper.pdf")

	if err := f.files.Delete(context.Background(), "moderator", true, file.ID); err != nil {
		t.Fatalf("Delete администратором: %v", err)
	}
	if _, err := f.files.Get(context.Background(), file.ID); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ошибка %v, ожидалась ErrFileNotFound", err)
	}
}
