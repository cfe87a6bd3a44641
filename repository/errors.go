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
	"errors"
	"fmt"

	"github.com/tomoncle/uow/database"
)

// Kind classifies repository failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindNoOp
	KindInvalidArgument
	KindStorage
	KindTransaction
	KindClosed
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindNotFound:        "not found",
	KindNoOp:            "no-op",
	KindInvalidArgument: "invalid argument",
	KindStorage:         "storage failure",
	KindTransaction:     "transaction failure",
	KindClosed:          "closed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

var (
	ErrNotFound        = errors.New("record not found")
	ErrNoOp            = errors.New("nothing to do")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyStaged   = errors.New("entity is already staged for insert or update")
	ErrUnknownRelation = errors.New("unknown relation")
	ErrSessionClosed   = errors.New("session is closed")
	ErrStorage         = errors.New("storage failure")
	ErrTransaction     = errors.New("transaction failure")
)

var kindSentinels = map[Kind]error{
	KindNotFound:        ErrNotFound,
	KindNoOp:            ErrNoOp,
	KindInvalidArgument: ErrInvalidArgument,
	KindStorage:         ErrStorage,
	KindTransaction:     ErrTransaction,
	KindClosed:          ErrSessionClosed,
}

// Error is returned by repositories, sessions and the unit of work.
// errors.Is matches both the sentinel of its Kind and the wrapped cause.
type Error struct {
	Op   string
	Kind Kind
	Err  error
	// SQL classifies Err when it came from the database driver.
	SQL database.SQLError
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// storageError wraps a driver error and records its SQL classification.
func storageError(op string, err error) *Error {
	_, sqlErr := database.IsSqlError(err)
	return &Error{Op: op, Kind: KindStorage, Err: err, SQL: sqlErr}
}

// TransactionError wraps err as a KindTransaction failure, keeping the SQL
// classification of a wrapped storage error.
func TransactionError(op string, err error) *Error {
	var inner *Error
	if errors.As(err, &inner) {
		return &Error{Op: op, Kind: KindTransaction, Err: err, SQL: inner.SQL}
	}
	_, sqlErr := database.IsSqlError(err)
	return &Error{Op: op, Kind: KindTransaction, Err: err, SQL: sqlErr}
}
