package orchestrator

import (
	"fmt"

	"github.com/cluster1900/eip7702-fulldemo-sub000/model"
	"github.com/cluster1900/eip7702-fulldemo-sub000/storage"
)

var submissionCounterKey = []byte("ct:submission")

// SubmissionStore persists submission records and keeps a key-only pending
// index so the sweeper never scans completed records.
type SubmissionStore struct {
	db storage.Storage
}

func NewSubmissionStore(db storage.Storage) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func pendingKey(id string) string {
	return fmt.Sprintf("pending:%s", id)
}

// Create persists a new submission and marks it pending.
func (s *SubmissionStore) Create(sub *model.Submission) error {
	data, err := sub.ToJSON()
	if err != nil {
		return err
	}

	updates := map[string][]byte{
		string(sub.StorageKey()): data,
		pendingKey(sub.ID):       []byte(sub.ID),
	}
	if err := s.db.BatchWrite(updates); err != nil {
		return err
	}

	_, err = s.db.IncCounter(submissionCounterKey, 0)
	return err
}

// Update rewrites a submission, dropping the pending marker once it reached
// a final status.
func (s *SubmissionStore) Update(sub *model.Submission) error {
	data, err := sub.ToJSON()
	if err != nil {
		return err
	}
	if err := s.db.Set(sub.StorageKey(), data); err != nil {
		return err
	}

	if sub.Status != model.SubmissionPending {
		return s.db.Delete([]byte(pendingKey(sub.ID)))
	}
	return nil
}

func (s *SubmissionStore) Get(id string) (*model.Submission, error) {
	data, err := s.db.GetKey(model.SubmissionStorageKey(id))
	if err != nil {
		return nil, err
	}
	return model.SubmissionFromJSON(data)
}

// ListPending returns submissions the sweeper still has to resolve, in
// creation order thanks to the ulid keys.
func (s *SubmissionStore) ListPending() ([]*model.Submission, error) {
	ids, err := s.db.ListKeys("pending:*")
	if err != nil {
		return nil, err
	}

	subs := make([]*model.Submission, 0, len(ids))
	for _, key := range ids {
		id := key[len("pending:"):]
		sub, err := s.Get(id)
		if err != nil {
			// the marker outlived its record, drop it
			_ = s.db.Delete([]byte(key))
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// List returns every stored submission in creation order.
func (s *SubmissionStore) List() ([]*model.Submission, error) {
	items, err := s.db.GetByPrefix(model.SubmissionKeyPrefix())
	if err != nil {
		return nil, err
	}

	subs := make([]*model.Submission, 0, len(items))
	for _, item := range items {
		sub, err := model.SubmissionFromJSON(item.Value)
		if err != nil {
			return nil, fmt.Errorf("corrupt submission record at %s: %w", item.Key, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Total returns how many submissions were ever created.
func (s *SubmissionStore) Total() (uint64, error) {
	return s.db.GetCounter(submissionCounterKey, 0)
}

// PendingCount is a key-only count of unresolved submissions.
func (s *SubmissionStore) PendingCount() (int64, error) {
	return s.db.CountKeysByPrefix([]byte("pending:"))
}
