package migrations

import (
	"context"
	"fmt"

	"github.com/quatton/paydesk/pkg/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Print(" [up migration] ")

		if _, err := db.NewRaw("CREATE SCHEMA IF NOT EXISTS payroll").Exec(ctx); err != nil {
			return err
		}

		tables := []struct {
			model any
			fks   []string
		}{
			{model: (*models.Org)(nil)},
			{model: (*models.Employee)(nil), fks: []string{`("org_id") REFERENCES payroll.orgs ("id") ON DELETE CASCADE`}},
			{model: (*models.Account)(nil)},
			{model: (*models.Membership)(nil), fks: []string{
				`("wallet") REFERENCES payroll.accounts ("wallet") ON DELETE CASCADE`,
				`("org_id") REFERENCES payroll.orgs ("id") ON DELETE CASCADE`,
			}},
			{model: (*models.Schedule)(nil), fks: []string{`("org_id") REFERENCES payroll.orgs ("id") ON DELETE CASCADE`}},
			{model: (*models.Run)(nil), fks: []string{`("org_id") REFERENCES payroll.orgs ("id") ON DELETE CASCADE`}},
			{model: (*models.Claim)(nil), fks: []string{`("run_id") REFERENCES payroll.runs ("id") ON DELETE CASCADE`}},
		}
		for _, t := range tables {
			q := db.NewCreateTable().Model(t.model).IfNotExists()
			for _, fk := range t.fks {
				q = q.ForeignKey(fk)
			}
			if _, err := q.Exec(ctx); err != nil {
				return err
			}
		}

		_, err := db.NewRaw("CREATE INDEX IF NOT EXISTS payroll_schedules_due_idx ON payroll.schedules (next_run_at) WHERE enabled").Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Print(" [down migration] ")

		for _, model := range []any{
			(*models.Claim)(nil),
			(*models.Run)(nil),
			(*models.Schedule)(nil),
			(*models.Membership)(nil),
			(*models.Account)(nil),
			(*models.Employee)(nil),
			(*models.Org)(nil),
		} {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		_, err := db.NewRaw("DROP SCHEMA IF EXISTS payroll").Exec(ctx)
		return err
	})
}
