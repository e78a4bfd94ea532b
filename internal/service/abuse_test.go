package service

import (
	"context"
	"testing"

	"github.com/taskmasterai/community-module/internal/domain/model"
	"github.com/taskmasterai/community-module/internal/repository"
)

// setBonusCount выставляет завышенный счётчик бонусов напрямую в хранилище.
func setBonusCount(t *testing.T, store repository.Store, userID string, groups int) {
	t.Helper()
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		u.UploadBonusCount = groups
		return tx.UpdateUser(ctx, u)
	})
	if err != nil {
		t.Fatalf("setBonusCount: %v", err)
	}
}

func TestCheckAbuse_Correction(t *testing.T) {
	store := newTestStore()
	pub := &recordingPublisher{}
	monitor := NewAbuseMonitor(store, DefaultEconomy(), pub, testLogger())
	seedUser(t, store, "alice", 100)
	for range 4 {
		seedFile(t, store, "alice", "doc.pdf")
	}
	setBonusCount(t, store, "alice", 1)

	report, err := monitor.CheckAbuse(context.Background(), "alice")
	if err != nil {
		t.Fatalf("CheckAbuse: %v", err)
	}
	if !report.Corrected || report.StoredGroups != 1 || report.ExpectedGroups != 0 || report.WarningCount != 1 {
		t.Errorf("отчёт = %+v", report)
	}
	if report.Escalate {
		t.Error("Escalate = true после первого предупреждения")
	}

	u := loadUser(t, store, "alice")
	if u.UploadBonusCount != 0 || u.AbuseWarningCount != 1 {
		t.Errorf("UploadBonusCount/AbuseWarningCount = %d/%d, ожидались 0/1", u.UploadBonusCount, u.AbuseWarningCount)
	}
	if u.TokenBalance != 100 {
		t.Errorf("TokenBalance = %d, токены не должны списываться", u.TokenBalance)
	}

	types := pub.types()
	if len(types) != 1 || types[0] != model.EventAbuseCorrected {
		t.Errorf("события = %v, ожидалось [%s]", types, model.EventAbuseCorrected)
	}

	// Повторная проверка без нового расхождения ничего не меняет
	report, err = monitor.CheckAbuse(context.Background(), "alice")
	if err != nil {
		t.Fatalf("CheckAbuse повторно: %v", err)
	}
	if report.Corrected || report.WarningCount != 1 {
		t.Errorf("повторный отчёт = %+v", report)
	}
	if len(pub.types()) != 1 {
		t.Errorf("событий = %d, ожидалось 1", len(pub.types()))
	}
}

func TestCheckAbuse_Escalation(t *testing.T) {
	store := newTestStore()
	pub := &recordingPublisher{}
	economy := DefaultEconomy()
	economy.AbuseEscalationThreshold = 2
	monitor := NewAbuseMonitor(store, economy, pub, testLogger())
	seedUser(t, store, "alice", 0)

	for round := 1; round <= 2; round++ {
		setBonusCount(t, store, "alice", 3)
		report, err := monitor.CheckAbuse(context.Background(), "alice")
		if err != nil {
			t.Fatalf("раунд %d: %v", round, err)
		}
		if report.WarningCount != round {
			t.Errorf("раунд %d: WarningCount = %d", round, report.WarningCount)
		}
		if wantEscalate := round >= 2; report.Escalate != wantEscalate {
			t.Errorf("раунд %d: Escalate = %v, ожидалось %v", round, report.Escalate, wantEscalate)
		}
	}

	types := pub.types()
	want := []string{model.EventAbuseCorrected, model.EventAbuseCorrected, model.EventEscalationRequired}
	if len(types) != len(want) {
		t.Fatalf("события = %v, ожидалось %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("событие %d = %s, ожидалось %s", i, types[i], want[i])
		}
	}
}

func TestCheckAbuse_UnknownUser(t *testing.T) {
	monitor := NewAbuseMonitor(newTestStore(), DefaultEconomy(), nil, testLogger())

	report, err := monitor.CheckAbuse(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("CheckAbuse: %v", err)
	}
	if report.UserID != "ghost" || report.Corrected || report.FileCount != 0 {
		t.Errorf("отчёт = %+v, ожидался пустой", report)
	}
}

func TestCheckAbuse_NoDiscrepancy(t *testing.T) {
	store := newTestStore()
	monitor := NewAbuseMonitor(store, DefaultEconomy(), nil, testLogger())
	seedUser(t, store, "alice", 0)
	for range 6 {
		seedFile(t, store, "alice", "doc.pdf")
	}
	setBonusCount(t, store, "alice", 1)

	report, err := monitor.CheckAbuse(context.Background(), "alice")
	if err != nil {
		t.Fatalf("CheckAbuse: %v", err)
	}
	if report.Corrected || report.ExpectedGroups != 1 || report.WarningCount != 0 {
		t.Errorf("отчёт = %+v", report)
	}
}
