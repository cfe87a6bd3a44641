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

package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerIsRegistered(t *testing.T) {
	a := NewLogger("registry-test")
	if NewLogger("registry-test") != a {
		t.Fatalf("the same name should return the same logger")
	}
	if !SetLoggerLevel("registry-test", "error") || a.GetLevel() != logrus.ErrorLevel {
		t.Fatalf("SetLoggerLevel did not apply, level=%s", a.GetLevel())
	}
	if SetLoggerLevel("never-created", "debug") {
		t.Fatalf("unknown logger reported as updated")
	}
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	l := NewLogger("output-test")
	l.SetLevel(logrus.InfoLevel)
	l.WithField("table", "tags").Info("saved")
	out := buf.String()
	if !strings.Contains(out, "saved") || !strings.Contains(out, "table=tags") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		" WARN ":  logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLog4jColorFormatter(t *testing.T) {
	f := &Log4jColorFormatter{LoggerName: "repository", NameWidth: 6, CallerWidth: 20}
	entry := &logrus.Entry{
		Time:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "query failed",
		Data:    logrus.Fields{"b": 2, "a": 1},
	}
	b, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	line := string(b)
	if !strings.HasPrefix(line, "2025-01-02 03:04:05.000") || !strings.Contains(line, "reposi") {
		t.Fatalf("unexpected line %q", line)
	}
	if !strings.HasSuffix(line, "query failed a=1 b=2\n") {
		t.Fatalf("fields should be sorted: %q", line)
	}
}

func TestJSONLogFormatter(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "uow"}
	entry := &logrus.Entry{
		Time:    time.Now(),
		Level:   logrus.InfoLevel,
		Message: "saved",
		Data:    logrus.Fields{"error": errors.New("boom"), "rows": 2},
	}
	b, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	var rec map[string]interface{}
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	fields, _ := rec["fields"].(map[string]interface{})
	if rec["logger"] != "uow" || fields["error"] != "boom" || fields["rows"] != float64(2) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestCallerPath(t *testing.T) {
	got := callerPath("/home/dev/uow/repository/base.go", 42, 22)
	if got != " repository/base.go:42" {
		t.Fatalf("callerPath = %q", got)
	}
	if got := callerPath("/home/dev/uow/repository/base.go", 42, 12); strings.TrimSpace(got) != "base.go:42" {
		t.Fatalf("narrow callerPath = %q", got)
	}
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("UOW_TEST_STR", "value")
	t.Setenv("UOW_TEST_BOOL", "false")
	t.Setenv("UOW_TEST_BAD_BOOL", "maybe")
	if EnvDefaultString("UOW_TEST_STR", "x") != "value" || EnvDefaultString("UOW_TEST_UNSET", "x") != "x" {
		t.Fatalf("EnvDefaultString")
	}
	if EnvDefaultBool("UOW_TEST_BOOL", true) || !EnvDefaultBool("UOW_TEST_BAD_BOOL", true) {
		t.Fatalf("EnvDefaultBool")
	}
}

func TestElapsed(t *testing.T) {
	d, err := time.ParseDuration(Elapsed(time.Now().Add(-1500 * time.Millisecond)))
	if err != nil || d < 1500*time.Millisecond {
		t.Fatalf("Elapsed = %v, %v", d, err)
	}
}
