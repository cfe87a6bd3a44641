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

package types

import (
	"fmt"
	"strings"
)

// RecordStatus selects records by their soft-delete state. The zero value is
// ActiveOnly.
type RecordStatus int

const (
	ActiveOnly RecordStatus = iota
	DeletedOnly
	All
)

// Values reported by an enum outside its defined range.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum is implemented by the int-backed enums of this package.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

var _ BaseEnum = ActiveOnly

var recordStatusNames = map[RecordStatus]string{
	ActiveOnly:  "active_only",
	DeletedOnly: "deleted_only",
	All:         "all",
}

var recordStatusDescs = map[RecordStatus]string{
	ActiveOnly:  "records that are not soft-deleted",
	DeletedOnly: "soft-deleted records",
	All:         "all records regardless of soft-delete state",
}

func (s RecordStatus) IsValid() bool {
	_, ok := recordStatusNames[s]
	return ok
}

func (s RecordStatus) Number() int {
	if !s.IsValid() {
		return IllegalValue
	}
	return int(s)
}

func (s RecordStatus) Name() string {
	if name, ok := recordStatusNames[s]; ok {
		return name
	}
	return IllegalName
}

func (s RecordStatus) String() string { return s.Name() }

func (s RecordStatus) Desc() string {
	if desc, ok := recordStatusDescs[s]; ok {
		return desc
	}
	return IllegalDesc
}

// Normalize maps invalid values to ActiveOnly.
func (s RecordStatus) Normalize() RecordStatus {
	if !s.IsValid() {
		return ActiveOnly
	}
	return s
}

// Matches reports whether a record with the given deleted flag is selected.
func (s RecordStatus) Matches(deleted bool) bool {
	switch s.Normalize() {
	case DeletedOnly:
		return deleted
	case All:
		return true
	default:
		return !deleted
	}
}

// ParseRecordStatus accepts the enum name ("active_only", "deleted-only",
// "ALL", ...) or its number.
func ParseRecordStatus(s string) (RecordStatus, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	for status, name := range recordStatusNames {
		if key == name || key == fmt.Sprint(int(status)) {
			return status, nil
		}
	}
	switch key {
	case "active":
		return ActiveOnly, nil
	case "deleted":
		return DeletedOnly, nil
	}
	return ActiveOnly, fmt.Errorf("invalid record status: %q", s)
}
