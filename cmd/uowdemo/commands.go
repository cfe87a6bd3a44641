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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomoncle/uow"
	"github.com/tomoncle/uow/database"
	"github.com/tomoncle/uow/model"
	"github.com/tomoncle/uow/types"
	"github.com/tomoncle/uow/utils"
)

var (
	cfgFile   string
	envPrefix string
	logLevel  string
	logFormat string
	useTx     bool
)

var rootCmd = &cobra.Command{
	Use:   "uowdemo",
	Short: "Exercise the unit of work against a configured database",
	Long: `uowdemo loads database settings from a YAML file and DB_* environment
variables (DB_CONNECTION__TYPE, DB_CONNECTION__DBNAME, ...), then runs a small
mentoring scenario through the repositories.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logFormat != "" {
			utils.ConfigureConsoleLogFormat(logFormat)
		}
		utils.ConfigureLogLevel(logLevel)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the add / soft delete / restore scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd.Context())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := database.LoadConfig(cfgFile, envPrefix)
		if err != nil {
			return err
		}
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Connect and print health and pool statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := database.LoadConfig(cfgFile, envPrefix)
		if err != nil {
			return err
		}
		cfg.Schema.EnsureTables = false
		manager, err := database.Open(cmd.Context(), cfg, database.NewLogger("database"))
		if err != nil {
			return err
		}
		defer func() { _ = manager.Disconnect() }()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Health *database.HealthStatus `json:"health"`
			Stats  *database.DBStats      `json:"stats"`
		}{manager.HealthCheck(cmd.Context()), manager.GetStats()})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envPrefix, "env-prefix", database.DefaultEnvPrefix, "environment variable prefix")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", utils.EnvDefaultString("LOG_LEVEL", "info"), "log level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "console log format: text or json")
	runCmd.Flags().BoolVar(&useTx, "tx", true, "save inside a transaction")

	rootCmd.AddCommand(runCmd, configCmd, healthCmd)
}

func runScenario(ctx context.Context) error {
	logger := database.NewLogger("uowdemo")

	cfg, err := database.LoadConfig(cfgFile, envPrefix)
	if err != nil {
		return err
	}
	cfg.Schema.EnsureTables = true

	manager, err := database.Open(ctx, cfg, database.NewLogger("database"), model.Models()...)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Disconnect() }()

	u := uow.New(manager.GetDB(), uow.WithLogger(database.NewLogger("uow")))
	defer func() { _ = u.Close() }()

	mentors := uow.GetRepository[model.MentorProfile](u)
	companies := uow.GetRepository[model.Company](u)
	students := uow.GetRepository[model.StudentProfile](u)

	mentor := model.NewMentor("Staff Engineer", "go", "postgres")
	if err := mentors.Add(ctx, mentor); err != nil {
		return err
	}
	jobs := []*model.Company{
		model.NewCompany(mentor, "Initech", time.Now().AddDate(-6, 0, 0)),
		model.NewCompany(mentor, "Globex", time.Now().AddDate(-2, 0, 0)),
	}
	jobs[0].IsCurrent = false
	if err := companies.AddRange(ctx, jobs); err != nil {
		return err
	}
	if err := students.Add(ctx, model.NewStudent("MIT", "Computer Science", 2)); err != nil {
		return err
	}

	n, err := u.SaveChanges(ctx, useTx)
	if err != nil {
		return err
	}
	logger.Info("Saved new records", "affected", n)

	if err := mentors.Delete(ctx, mentor.ID, true); err != nil {
		return err
	}
	if _, err := u.SaveChanges(ctx, useTx); err != nil {
		return err
	}
	active, err := mentors.Count(ctx, types.ActiveOnly)
	if err != nil {
		return err
	}
	deleted, err := mentors.GetDeleted(ctx)
	if err != nil {
		return err
	}
	logger.Info("Mentor soft-deleted", "active", active, "deleted", len(deleted))

	if err := mentors.Restore(ctx, mentor.ID); err != nil {
		return err
	}
	if _, err := u.SaveChanges(ctx, useTx); err != nil {
		return err
	}

	withJobs, err := mentors.GetAllIncluding(ctx, types.ActiveOnly, "Companies")
	if err != nil {
		return err
	}
	for _, m := range withJobs {
		logger.Info("Mentor", "id", m.ID, "title", m.CurrentJobTitle, "skills", m.Skills, "companies", len(m.Companies))
	}

	page, err := students.Page(ctx, types.NewPageRequestWithOrders(1, 10, []string{"university ASC"}), types.All)
	if err != nil {
		return err
	}
	logger.Info("Students", "total", page.Total, "pages", page.TotalPages())
	return nil
}
