// Пакет memstore — in-memory реализация repository.Store.
//
// Документы хранятся по строковым ключам с монотонной версией. Транзакция
// запоминает версии прочитанных ключей и буферизует записи; при коммите
// под мьютексом проверяется, что ни один прочитанный ключ не изменился.
// Иначе транзакция отбрасывается и fn выполняется заново.
// Используется для CM_STORE_DRIVER=memory, локального запуска и тестов.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/taskmasterai/community-module/internal/domain/model"
	"github.com/taskmasterai/community-module/internal/repository"
)

// errStale — прочитанный ключ изменён параллельной транзакцией.
var errStale = errors.New("memstore: версия прочитанного ключа устарела")

// record — версионированное значение ключа. value == nil — удалённый ключ.
type record struct {
	version uint64
	value   any
}

// idSet — множество идентификаторов во вторичном индексе.
type idSet map[string]struct{}

func (s idSet) clone() idSet {
	c := make(idSet, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

func (s idSet) sorted() []string {
	ids := make([]string, 0, len(s))
	for k := range s {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	return ids
}

// Ключи документов и индексов.
func userKey(id string) string         { return "user/" + id }
func fileKey(id string) string         { return "file/" + id }
func unlockKey(u, f string) string     { return "unlock/" + u + "/" + f }
func ratingKey(f, u string) string     { return "rating/" + f + "/" + u }
func votesKey(f string) string         { return "votes/" + f }
func ownerIndexKey(u string) string    { return "idx/owner/" + u }
func userUnlocksKey(u string) string   { return "idx/unlocks/" + u }
func fileUnlockersKey(f string) string { return "idx/unlockers/" + f }
func fileRatersKey(f string) string    { return "idx/raters/" + f }

// Store — in-memory хранилище с оптимистичными транзакциями.
type Store struct {
	mu    sync.Mutex
	data  map[string]record
	clock uint64
	retry repository.RetryPolicy
}

// New создаёт пустое хранилище.
func New(retry repository.RetryPolicy) *Store {
	return &Store{
		data:  make(map[string]record),
		retry: retry,
	}
}

// RunInTx выполняет fn в оптимистичной транзакции.
// Если fn вернула ошибку, а прочитанные данные уже устарели, ошибка
// посчитана по несогласованному снимку и fn повторяется.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return repository.RunWithRetry(ctx, s.retry, "memory", isStale, func() error {
		tx := &memTx{
			store:  s,
			reads:  make(map[string]uint64),
			writes: make(map[string]any),
		}
		if err := fn(ctx, tx); err != nil {
			if !s.validate(tx.reads) {
				return errStale
			}
			return err
		}
		return s.commit(tx)
	})
}

func isStale(err error) bool {
	return errors.Is(err, errStale)
}

// load читает ключ из закоммиченного состояния.
func (s *Store) load(key string) (any, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.data[key]
	return cloneValue(rec.value), rec.version
}

func (s *Store) validate(reads map[string]uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked(reads)
}

func (s *Store) validateLocked(reads map[string]uint64) bool {
	for key, version := range reads {
		if s.data[key].version != version {
			return false
		}
	}
	return true
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validateLocked(tx.reads) {
		return errStale
	}
	if len(tx.writes) == 0 {
		return nil
	}

	s.clock++
	for key, value := range tx.writes {
		s.data[key] = record{version: s.clock, value: value}
	}
	return nil
}

// cloneValue возвращает независимую копию значения документа.
func cloneValue(v any) any {
	switch val := v.(type) {
	case model.User:
		return val
	case model.File:
		return val
	case model.UnlockRecord:
		return val
	case model.Rating:
		return val
	case model.VoteSet:
		return val.Clone()
	case idSet:
		return val.clone()
	default:
		return v
	}
}

// memTx — транзакция memstore. Не потокобезопасна: используется одной горутиной.
type memTx struct {
	store  *Store
	reads  map[string]uint64
	writes map[string]any
}

// get возвращает значение ключа с учётом собственных записей транзакции.
func (t *memTx) get(key string) (any, bool) {
	if v, ok := t.writes[key]; ok {
		return cloneValue(v), v != nil
	}
	v, version := t.store.load(key)
	if _, seen := t.reads[key]; !seen {
		t.reads[key] = version
	}
	return v, v != nil
}

func (t *memTx) put(key string, value any) {
	t.writes[key] = cloneValue(value)
}

func (t *memTx) del(key string) {
	t.writes[key] = nil
}

func (t *memTx) index(key string) idSet {
	v, ok := t.get(key)
	if !ok {
		return idSet{}
	}
	return v.(idSet)
}

func (t *memTx) addToIndex(key, id string) {
	set := t.index(key)
	set[id] = struct{}{}
	t.put(key, set)
}

func (t *memTx) removeFromIndex(key, id string) {
	set := t.index(key)
	if _, ok := set[id]; !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		t.del(key)
		return
	}
	t.put(key, set)
}

// --- users ---

func (t *memTx) GetUser(_ context.Context, userID string) (*model.User, error) {
	v, ok := t.get(userKey(userID))
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := v.(model.User)
	return &u, nil
}

func (t *memTx) CreateUser(_ context.Context, u *model.User) error {
	if _, ok := t.get(userKey(u.ID)); ok {
		return fmt.Errorf("%w: пользователь %s уже существует", repository.ErrConflict, u.ID)
	}
	t.put(userKey(u.ID), *u)
	return nil
}

func (t *memTx) UpdateUser(_ context.Context, u *model.User) error {
	if _, ok := t.get(userKey(u.ID)); !ok {
		return repository.ErrNotFound
	}
	t.put(userKey(u.ID), *u)
	return nil
}

// --- files ---

func (t *memTx) GetFile(_ context.Context, fileID string) (*model.File, error) {
	v, ok := t.get(fileKey(fileID))
	if !ok {
		return nil, repository.ErrNotFound
	}
	f := v.(model.File)
	return &f, nil
}

func (t *memTx) CreateFile(_ context.Context, f *model.File) error {
	if _, ok := t.get(fileKey(f.ID)); ok {
		return fmt.Errorf("%w: файл %s уже зарегистрирован", repository.ErrConflict, f.ID)
	}
	t.put(fileKey(f.ID), *f)
	t.addToIndex(ownerIndexKey(f.OwnerID), f.ID)
	return nil
}

func (t *memTx) UpdateFile(_ context.Context, f *model.File) error {
	v, ok := t.get(fileKey(f.ID))
	if !ok {
		return repository.ErrNotFound
	}
	// Владелец и метаданные неизменяемы, обновляются только агрегаты
	stored := v.(model.File)
	stored.DownloadCount = f.DownloadCount
	stored.TotalRatingSum = f.TotalRatingSum
	stored.RatingCount = f.RatingCount
	t.put(fileKey(f.ID), stored)
	return nil
}

func (t *memTx) DeleteFile(_ context.Context, fileID string) error {
	v, ok := t.get(fileKey(fileID))
	if !ok {
		return repository.ErrNotFound
	}
	f := v.(model.File)

	t.del(fileKey(fileID))
	t.removeFromIndex(ownerIndexKey(f.OwnerID), fileID)
	t.del(votesKey(fileID))

	for _, userID := range t.index(fileRatersKey(fileID)).sorted() {
		t.del(ratingKey(fileID, userID))
	}
	t.del(fileRatersKey(fileID))

	for _, userID := range t.index(fileUnlockersKey(fileID)).sorted() {
		t.del(unlockKey(userID, fileID))
		t.removeFromIndex(userUnlocksKey(userID), fileID)
	}
	t.del(fileUnlockersKey(fileID))
	return nil
}

func (t *memTx) CountFilesByOwner(_ context.Context, ownerID string) (int, error) {
	return len(t.index(ownerIndexKey(ownerID))), nil
}

// --- unlocks ---

func (t *memTx) GetUnlock(_ context.Context, userID, fileID string) (*model.UnlockRecord, error) {
	v, ok := t.get(unlockKey(userID, fileID))
	if !ok {
		return nil, repository.ErrNotFound
	}
	rec := v.(model.UnlockRecord)
	return &rec, nil
}

func (t *memTx) CreateUnlock(_ context.Context, rec *model.UnlockRecord) error {
	key := unlockKey(rec.UserID, rec.FileID)
	if _, ok := t.get(key); ok {
		return fmt.Errorf("%w: файл %s уже разблокирован пользователем %s",
			repository.ErrConflict, rec.FileID, rec.UserID)
	}
	t.put(key, *rec)
	t.addToIndex(userUnlocksKey(rec.UserID), rec.FileID)
	t.addToIndex(fileUnlockersKey(rec.FileID), rec.UserID)
	return nil
}

func (t *memTx) ListUnlocksByUser(_ context.Context, userID string) ([]*model.UnlockRecord, error) {
	var result []*model.UnlockRecord
	for _, fileID := range t.index(userUnlocksKey(userID)).sorted() {
		v, ok := t.get(unlockKey(userID, fileID))
		if !ok {
			continue
		}
		rec := v.(model.UnlockRecord)
		result = append(result, &rec)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UnlockedAt.After(result[j].UnlockedAt)
	})
	return result, nil
}

// --- ratings ---

func (t *memTx) GetRating(_ context.Context, fileID, userID string) (*model.Rating, error) {
	v, ok := t.get(ratingKey(fileID, userID))
	if !ok {
		return nil, repository.ErrNotFound
	}
	r := v.(model.Rating)
	return &r, nil
}

func (t *memTx) PutRating(_ context.Context, r *model.Rating) error {
	t.put(ratingKey(r.FileID, r.UserID), *r)
	t.addToIndex(fileRatersKey(r.FileID), r.UserID)
	return nil
}

// --- votes ---

func (t *memTx) GetVotes(_ context.Context, fileID string) (model.VoteSet, error) {
	v, ok := t.get(votesKey(fileID))
	if !ok {
		return model.VoteSet{}, nil
	}
	return v.(model.VoteSet), nil
}

func (t *memTx) PutVote(ctx context.Context, fileID, userID string, kind model.VoteKind) error {
	votes, _ := t.GetVotes(ctx, fileID)
	votes[userID] = kind
	t.put(votesKey(fileID), votes)
	return nil
}

func (t *memTx) DeleteVote(ctx context.Context, fileID, userID string) error {
	votes, _ := t.GetVotes(ctx, fileID)
	if _, ok := votes[userID]; !ok {
		return nil
	}
	delete(votes, userID)
	if len(votes) == 0 {
		t.del(votesKey(fileID))
		return nil
	}
	t.put(votesKey(fileID), votes)
	return nil
}
