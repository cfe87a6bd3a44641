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

package main

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRunScenarioInMemory(t *testing.T) {
	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	envPrefix = "UOWDEMO_TEST"
	for _, tx := range []bool{true, false} {
		useTx = tx
		if err := runScenario(context.Background()); err != nil {
			t.Fatalf("runScenario(tx=%v): %v", tx, err)
		}
	}
}

func TestCommandsExecute(t *testing.T) {
	dir := t.TempDir()
	rootCmd.SetArgs([]string{"config", "--config", filepath.Join(dir, "absent.yaml"), "--env-prefix", "UOWDEMO_TEST"})
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("config: %v", err)
	}
	rootCmd.SetArgs([]string{"health", "--config", filepath.Join(dir, "absent.yaml"), "--env-prefix", "UOWDEMO_TEST"})
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}
