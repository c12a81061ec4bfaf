package journal

import (
	"errors"
	"fmt"
	"log"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrInFlight           = errors.New("a submission is already in flight for this session")
)

var (
	inFlightPrefix   = []byte("/inflight/")
	submissionPrefix = []byte("/submissions/")
)

type Journal struct {
	db  *badger.DB
	now func() time.Time
}

type Config struct {
	// Badger database to use
	DB *badger.DB
	// Clock. Defaults to time.Now
	Now func() time.Time
}

func New(config Config) (j *Journal) {
	j = &Journal{
		db:  config.DB,
		now: config.Now,
	}
	if j.now == nil {
		j.now = time.Now
	}
	return j
}

// Begin records s as in flight. It fails with ErrInFlight while another
// submission of the same session has not finished. Beginning a marker that
// was already recorded moves its previous outcome to Attempts.
func (j *Journal) Begin(s Submission) (err error) {
	s.Status = StatusInFlight
	s.StartedAt = j.now()

	return j.db.Update(func(txn *badger.Txn) (err error) {
		_, err = txn.Get(InFlightKey(s.Session))
		switch {
		case err == nil:
			return ErrInFlight
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("failed to query in flight key: %w", err)
		}

		previous, err := get(txn, s.Marker)
		switch {
		case err == nil:
			s.Attempts = append(previous.Attempts, Attempt{
				Status:     previous.Status,
				Category:   previous.Category,
				Error:      previous.Error,
				StartedAt:  previous.StartedAt,
				FinishedAt: previous.FinishedAt,
			})
		case !errors.Is(err, ErrSubmissionNotFound):
			return err
		}

		err = txn.Set(InFlightKey(s.Session), s.Marker[:])
		if err != nil {
			return fmt.Errorf("failed to add in flight key: %w", err)
		}

		err = txn.Set(SubmissionKey(s.Marker), s.Bytes())
		if err != nil {
			return fmt.Errorf("failed to set submission: %w", err)
		}
		return nil
	})
}

func get(txn *badger.Txn, marker uuid.UUID) (s Submission, err error) {
	entry, err := txn.Get(SubmissionKey(marker))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return s, ErrSubmissionNotFound
		}
		return s, fmt.Errorf("failed to query existing submission: %w", err)
	}

	err = entry.Value(func(val []byte) (err error) {
		err = s.FromBytes(val)
		if err != nil {
			return fmt.Errorf("failed to unmarshal submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return s, fmt.Errorf("failed to retrieve value: %w", err)
	}
	return s, nil
}

// Finish stores the outcome of the submission and releases its session.
// A submission retried under the same marker is updated in place.
func (j *Journal) Finish(marker uuid.UUID, outcome Outcome) (s Submission, err error) {
	err = j.db.Update(func(txn *badger.Txn) (err error) {
		s, err = get(txn, marker)
		if err != nil {
			return err
		}

		s.Status = outcome.Status
		s.TransactionId = outcome.TransactionId
		s.Category = outcome.Category
		s.Error = outcome.Error
		s.FinishedAt = j.now()

		err = txn.Set(SubmissionKey(marker), s.Bytes())
		if err != nil {
			return fmt.Errorf("failed to set submission: %w", err)
		}

		err = txn.Delete(InFlightKey(s.Session))
		if err != nil {
			return fmt.Errorf("failed to delete in flight key: %w", err)
		}
		return nil
	})
	if err != nil {
		return s, fmt.Errorf("failed to finish submission: %w", err)
	}
	return s, nil
}

// Query a submission by its idempotency marker
func (j *Journal) Query(marker uuid.UUID) (s Submission, err error) {
	err = j.db.View(func(txn *badger.Txn) (err error) {
		s, err = get(txn, marker)
		return err
	})
	if err != nil {
		return s, fmt.Errorf("failed to query entry from the database: %w", err)
	}
	return s, nil
}

// Streams the submissions still in flight. Entries left behind by a crash show up here.
// Both channels must be consumed.
func (j *Journal) StreamInFlight() (submissions chan Submission, err chan error) {
	submissions = make(chan Submission, 1_000)
	err = make(chan error, 1)
	go func() {
		defer close(submissions)
		defer close(err)

		err <- j.db.View(func(txn *badger.Txn) (err error) {
			options := badger.DefaultIteratorOptions
			options.Prefix = inFlightPrefix
			it := txn.NewIterator(options)
			defer it.Close()

			for it.Rewind(); it.ValidForPrefix(inFlightPrefix); it.Next() {
				var marker uuid.UUID
				err = it.Item().Value(func(val []byte) (err error) {
					copy(marker[:], val)
					return nil
				})
				if err != nil {
					log.Println("ERROR|STREAMING|INFLIGHT", err) // We can't return but even then we need to try the others
					continue
				}

				s, err := get(txn, marker)
				if err != nil {
					log.Println("ERROR|STREAMING|INFLIGHT", marker, err)
					continue
				}
				submissions <- s
			}
			return nil
		})
	}()
	return submissions, err
}

// Streams every recorded submission in key order. Both channels must be consumed.
func (j *Journal) StreamAll() (submissions chan Submission, err chan error) {
	submissions = make(chan Submission, 1_000)
	err = make(chan error, 1)
	go func() {
		defer close(submissions)
		defer close(err)

		err <- j.db.View(func(txn *badger.Txn) (err error) {
			options := badger.DefaultIteratorOptions
			options.Prefix = submissionPrefix
			it := txn.NewIterator(options)
			defer it.Close()

			for it.Rewind(); it.ValidForPrefix(submissionPrefix); it.Next() {
				var s Submission
				err = it.Item().Value(func(val []byte) (err error) {
					return s.FromBytes(val)
				})
				if err != nil {
					log.Println("ERROR|STREAMING|SUBMISSIONS", err)
					continue
				}
				submissions <- s
			}
			return nil
		})
	}()
	return submissions, err
}
