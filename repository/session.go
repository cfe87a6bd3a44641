/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/tomoncle/uow/database"
	"github.com/uptrace/bun"
)

// EntryState is the pending operation recorded for an entity.
type EntryState int

const (
	Added EntryState = iota + 1
	Modified
	Deleted
)

func (s EntryState) String() string {
	switch s {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unchanged"
	}
}

type identity struct {
	typ reflect.Type
	key string
}

type entry struct {
	id    identity
	desc  *Descriptor
	model any
	state EntryState
}

// FlushResult reports the outcome of Session.Flush.
type FlushResult struct {
	// Affected is the sum of rows affected by every executed statement.
	Affected int64
	// Applied is the number of leading staged entries that were executed
	// successfully.
	Applied int
}

// Session is the storage session shared by the repositories of one unit of
// work. It records staged inserts, updates and removals in order and keeps
// an identity map so that every entity loaded through it is represented by
// a single instance. A Session is meant for one logical caller.
type Session struct {
	db     *bun.DB
	logger database.Logger
	clock  func() time.Time

	mu      sync.Mutex
	entries []*entry
	index   map[identity]*entry
	tracked map[identity]any
	closed  bool
}

// NewSession binds a session to db. A nil logger discards output and a nil
// clock uses time.Now.
func NewSession(db *bun.DB, logger database.Logger, clock func() time.Time) *Session {
	if logger == nil {
		logger = database.NopLogger()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		db:      db,
		logger:  logger,
		clock:   clock,
		index:   make(map[identity]*entry),
		tracked: make(map[identity]any),
	}
}

func (s *Session) DB() *bun.DB { return s.db }

func (s *Session) Logger() database.Logger { return s.logger }

func (s *Session) now() time.Time { return s.clock() }

func (s *Session) checkOpen(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newError(op, KindClosed, ErrSessionClosed)
	}
	return nil
}

// lookup returns the tracked instance with the given identity.
func (s *Session) lookup(id identity) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	model, ok := s.tracked[id]
	return model, ok
}

// attach returns the tracked instance sharing model's identity, tracking
// model first if there is none.
func (s *Session) attach(desc *Descriptor, model any) any {
	id := desc.identityOf(model)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model
	}
	if tracked, ok := s.tracked[id]; ok {
		return tracked
	}
	s.tracked[id] = model
	return model
}

// stageAdd records models for insertion. Either every model is staged or,
// on error, none is.
func (s *Session) stageAdd(op string, desc *Descriptor, models []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newError(op, KindClosed, ErrSessionClosed)
	}

	ids := make([]identity, len(models))
	seen := make(map[identity]struct{}, len(models))
	for i, model := range models {
		id := desc.identityOf(model)
		if e, ok := s.index[id]; ok && e.state != Deleted {
			return newError(op, KindInvalidArgument, fmt.Errorf("%w: %s %s", ErrAlreadyStaged, desc.Table, id.key))
		}
		if _, dup := seen[id]; dup {
			return newError(op, KindInvalidArgument, fmt.Errorf("%w: %s %s", ErrAlreadyStaged, desc.Table, id.key))
		}
		seen[id] = struct{}{}
		ids[i] = id
	}

	for i, model := range models {
		id := ids[i]
		if e, ok := s.index[id]; ok {
			// Re-adding a removed entity turns the removal into an update.
			e.model = model
			e.state = Modified
		} else {
			s.push(&entry{id: id, desc: desc, model: model, state: Added})
		}
		s.tracked[id] = model
	}
	return nil
}

// stageUpdate records models for update, attaching untracked ones.
func (s *Session) stageUpdate(op string, desc *Descriptor, models []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newError(op, KindClosed, ErrSessionClosed)
	}

	for _, model := range models {
		id := desc.identityOf(model)
		if e, ok := s.index[id]; ok {
			e.model = model
			if e.state == Deleted {
				e.state = Modified
			}
		} else {
			s.push(&entry{id: id, desc: desc, model: model, state: Modified})
		}
		s.tracked[id] = model
	}
	return nil
}

// stageRemove records models for physical deletion. Removing an entity that
// was only staged for insertion forgets it instead.
func (s *Session) stageRemove(op string, desc *Descriptor, models []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newError(op, KindClosed, ErrSessionClosed)
	}

	for _, model := range models {
		id := desc.identityOf(model)
		if e, ok := s.index[id]; ok {
			if e.state == Added {
				s.drop(e)
				delete(s.tracked, id)
				continue
			}
			e.model = model
			e.state = Deleted
		} else {
			s.push(&entry{id: id, desc: desc, model: model, state: Deleted})
		}
		s.tracked[id] = model
	}
	return nil
}

func (s *Session) push(e *entry) {
	s.entries = append(s.entries, e)
	s.index[e.id] = e
}

func (s *Session) drop(e *entry) {
	delete(s.index, e.id)
	for i, cur := range s.entries {
		if cur == e {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// HasChanges reports whether anything is staged.
func (s *Session) HasChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) > 0
}

// Pending returns the number of staged entries.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StateOf returns the staged state of model, or 0 when nothing is staged.
func (s *Session) StateOf(desc *Descriptor, model any) EntryState {
	id := desc.identityOf(model)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.index[id]; ok {
		return e.state
	}
	return 0
}

// Flush executes the staged statements in order against idb, which is
// either the session's DB or a transaction on it. It stops at the first
// failure. Staged entries are left in place; the caller accepts them once
// the outcome is durable.
func (s *Session) Flush(ctx context.Context, idb bun.IDB) (FlushResult, error) {
	const op = "Flush"
	var result FlushResult

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return result, newError(op, KindClosed, ErrSessionClosed)
	}

	for _, e := range s.entries {
		var res sql.Result
		var err error
		switch e.state {
		case Added:
			res, err = idb.NewInsert().Model(e.model).Exec(ctx)
		case Modified:
			res, err = idb.NewUpdate().Model(e.model).WherePK().Exec(ctx)
		case Deleted:
			res, err = idb.NewDelete().Model(e.model).WherePK().Exec(ctx)
		}
		if err != nil {
			s.logger.Warn("Failed to flush staged change",
				"table", e.desc.Table, "state", e.state.String(), "key", e.id.key, "error", err)
			return result, storageError(op, fmt.Errorf("%s %s: %w", e.state, e.desc.Table, err))
		}
		if n, rerr := res.RowsAffected(); rerr == nil {
			result.Affected += n
		}
		result.Applied++
	}
	return result, nil
}

// AcceptChanges marks the first n staged entries as persisted: inserted and
// updated entities stay tracked, deleted ones are forgotten. A negative n
// accepts everything.
func (s *Session) AcceptChanges(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	for _, e := range s.entries[:n] {
		delete(s.index, e.id)
		delete(s.tracked, e.id)
		switch e.state {
		case Added, Modified:
			// Inserts may have filled in a generated key.
			s.tracked[e.desc.identityOf(e.model)] = e.model
		}
	}
	s.entries = append([]*entry(nil), s.entries[n:]...)
}

// Discard drops every staged change and forgets tracked entities.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Session) reset() {
	s.entries = nil
	s.index = make(map[identity]*entry)
	s.tracked = make(map[identity]any)
}

// Close discards staged changes. Later operations fail with
// ErrSessionClosed. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if n := len(s.entries); n > 0 {
		s.logger.Debug("Discarding staged changes on close", "pending", n)
	}
	s.reset()
	s.closed = true
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
