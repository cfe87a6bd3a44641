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

// Package model contains the mentoring domain used by the demo command and
// the tests: mentors with their work history, and students.
package model

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tomoncle/uow/database"
	"github.com/tomoncle/uow/types"
	"github.com/uptrace/bun"
)

// Audit holds creation and update timestamps.
type Audit struct {
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

var _ bun.BeforeAppendModelHook = (*Audit)(nil)

// BeforeAppendModel stamps the audit columns on insert and update.
func (a *Audit) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
	}
	return nil
}

// Company is one entry of a mentor's work history. It is removed physically.
type Company struct {
	bun.BaseModel `bun:"table:companies,alias:c"`

	ID              uuid.UUID      `bun:"id,pk,type:varchar(36)" json:"id"`
	MentorProfileID uuid.UUID      `bun:"mentor_profile_id,type:varchar(36),notnull" json:"mentor_profile_id"`
	Name            string         `bun:"name,notnull" json:"name"`
	City            string         `bun:"city" json:"city,omitempty"`
	Country         string         `bun:"country" json:"country,omitempty"`
	Industry        string         `bun:"industry" json:"industry,omitempty"`
	WebsiteURL      string         `bun:"website_url" json:"website_url,omitempty"`
	StartWork       time.Time      `bun:"start_work,notnull" json:"start_work"`
	EndWork         *time.Time     `bun:"end_work,nullzero" json:"end_work,omitempty"`
	IsCurrent       bool           `bun:"is_current,notnull,default:false" json:"is_current"`
	Mentor          *MentorProfile `bun:"rel:belongs-to,join:mentor_profile_id=id" json:"-"`
	Audit
}

// MentorProfile is soft-deletable.
type MentorProfile struct {
	bun.BaseModel `bun:"table:mentor_profiles,alias:mp"`

	ID              uuid.UUID         `bun:"id,pk,type:varchar(36)" json:"id"`
	UserID          uuid.UUID         `bun:"user_id,type:varchar(36),notnull" json:"user_id"`
	CurrentJobTitle string            `bun:"current_job_title" json:"current_job_title,omitempty"`
	Bio             string            `bun:"bio" json:"bio,omitempty"`
	Skills          types.StringArray `bun:"skills,type:text" json:"skills"`
	Companies       []*Company        `bun:"rel:has-many,join:id=mentor_profile_id" json:"companies,omitempty"`
	Audit
	types.SoftDelete
}

// StudentProfile is soft-deletable.
type StudentProfile struct {
	bun.BaseModel `bun:"table:student_profiles,alias:sp"`

	ID          uuid.UUID         `bun:"id,pk,type:varchar(36)" json:"id"`
	UserID      uuid.UUID         `bun:"user_id,type:varchar(36),notnull" json:"user_id"`
	University  string            `bun:"university" json:"university,omitempty"`
	Major       string            `bun:"major" json:"major,omitempty"`
	YearOfStudy int               `bun:"year_of_study" json:"year_of_study,omitempty"`
	Bio         string            `bun:"bio" json:"bio,omitempty"`
	Interests   types.StringArray `bun:"interests,type:text" json:"interests"`
	Audit
	types.SoftDelete
}

// NewMentor returns a mentor with fresh ids.
func NewMentor(title string, skills ...string) *MentorProfile {
	return &MentorProfile{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		CurrentJobTitle: title,
		Skills:          skills,
	}
}

// NewStudent returns a student with fresh ids.
func NewStudent(university, major string, year int) *StudentProfile {
	return &StudentProfile{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		University:  university,
		Major:       major,
		YearOfStudy: year,
	}
}

// NewCompany returns a current job at name for mentor.
func NewCompany(mentor *MentorProfile, name string, start time.Time) *Company {
	return &Company{
		ID:              uuid.New(),
		MentorProfileID: mentor.ID,
		Name:            name,
		StartWork:       start,
		IsCurrent:       true,
	}
}

// Models lists the tables of the domain; profiles come before companies.
func Models() []database.SQLModel {
	return []database.SQLModel{
		database.NewModelAdapter((*MentorProfile)(nil), 10),
		database.NewModelAdapter((*StudentProfile)(nil), 10),
		database.NewModelAdapter((*Company)(nil), 20),
	}
}
