package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"propcheck/internal/app"
	"propcheck/internal/calendar"
	"propcheck/internal/config"
	"propcheck/internal/db"
	"propcheck/internal/domain"
	"propcheck/internal/engine"
	"propcheck/internal/migrate"
	"propcheck/internal/repo"
	"propcheck/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pck",
	Short: "Propcheck CLI",
	Long: `Propcheck schedules property compliance inspections and tracks certificate validity.
- Workspace: your .propcheck directory holding only the database; config is stored in the DB and imported explicitly.
- Org: the portfolio owner; properties, blocks, templates, and documents all belong to it.
- Templates: recurring inspection requirements (fire doors, gas safety) scoped to properties or blocks.
- Inspections: concrete dated instances that flow scheduled -> in_progress -> completed.
- Documents: dated certificates; the newest document per type is the authoritative one.
- Report: the 12-month calendar per template with completed/overdue/due statuses and compliance rates.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PROPCHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("org", "", "org id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("org", rootCmd.PersistentFlags().Lookup("org"))
}

func registerCommands() {
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(propertyCmd())
	rootCmd.AddCommand(blockCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(inspectionCmd())
	rootCmd.AddCommand(documentCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func orgCmd() *cobra.Command {
	org := &cobra.Command{Use: "org", Short: "Manage the org"}
	org.AddCommand(orgInitCmd())
	org.AddCommand(orgConfigCmd())
	return org
}

func orgInitCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize an org in this workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg := config.Default(id)
			e := engine.New(conn, cfg)
			if err := e.InitOrg(cmd.Context(), id, name, viper.GetString("actor-id")); err != nil {
				return err
			}
			return printJSONOrTable(map[string]string{"org_id": id, "name": name, "db": db.Path(workspace)})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "org id")
	cmd.Flags().StringVar(&name, "name", "", "org name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func orgConfigCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage org config"}
	cfg.AddCommand(orgConfigShowCmd())
	cfg.AddCommand(orgConfigImportCmd())
	cfg.AddCommand(orgConfigGenerateCmd())
	cfg.AddCommand(orgConfigCheckCmd())
	return cfg
}

func orgConfigCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the workspace propcheck.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(map[string]string{"status": "ok", "org_id": cfg.Org.ID})
		},
	}
	return cmd
}

func orgConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show org config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func orgConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import org config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			orgID := cfg.Org.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if orgID == "" {
					orgID = e.Config.Org.ID
				}
				if err := e.Repo.UpsertOrgConfig(ctx, orgID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func orgConfigGenerateCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a default propcheck.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				id = "default-org"
			}
			fmt.Print(config.GenerateDefault(id))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "org id")
	return cmd
}

func propertyCmd() *cobra.Command {
	prop := &cobra.Command{Use: "property", Short: "Manage properties"}
	prop.AddCommand(propertyCreateCmd())
	prop.AddCommand(propertyListCmd())
	prop.AddCommand(propertyShowCmd())
	return prop
}

func propertyCreateCmd() *cobra.Command {
	var id, name, address string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a property",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProperty(ctx, engine.PropertyCreateOptions{
					ID:      id,
					OrgID:   e.Config.Org.ID,
					Name:    name,
					Address: address,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "property id (optional)")
	cmd.Flags().StringVar(&name, "name", "", "property name")
	cmd.Flags().StringVar(&address, "address", "", "address")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func propertyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProperties(ctx, e.Config.Org.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Address", "Created"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Address, p.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func propertyShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProperty(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func blockCmd() *cobra.Command {
	blk := &cobra.Command{Use: "block", Short: "Manage blocks"}
	blk.AddCommand(blockCreateCmd())
	blk.AddCommand(blockListCmd())
	blk.AddCommand(blockShowCmd())
	return blk
}

func blockCreateCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a block",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.CreateBlock(ctx, engine.BlockCreateOptions{
					ID:      id,
					OrgID:   e.Config.Org.ID,
					Name:    name,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "block id (optional)")
	cmd.Flags().StringVar(&name, "name", "", "block name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func blockListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListBlocks(ctx, e.Config.Org.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, b := range items {
					tw.AppendRow(table.Row{b.ID, b.Name, b.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func blockShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.Repo.GetBlock(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	return cmd
}

func templateCmd() *cobra.Command {
	tpl := &cobra.Command{
		Use:   "template",
		Short: "Manage inspection templates",
		Long:  "Templates are recurring inspection requirements. Each is scoped to properties or blocks, and a disabled template stops accepting new schedules without losing history.",
	}
	tpl.AddCommand(templateCreateCmd())
	tpl.AddCommand(templateListCmd())
	tpl.AddCommand(templateShowCmd())
	tpl.AddCommand(templateUpdateCmd())
	return tpl
}

func templateCreateCmd() *cobra.Command {
	var id, name, scope string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an inspection template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTemplate(ctx, engine.TemplateCreateOptions{
					ID:      id,
					OrgID:   e.Config.Org.ID,
					Name:    name,
					Scope:   domain.EntityKind(scope),
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "template id (optional)")
	cmd.Flags().StringVar(&name, "name", "", "template name")
	cmd.Flags().StringVar(&scope, "scope", "property", "scope (property or block)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func templateListCmd() *cobra.Command {
	var scope string
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inspection templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListTemplates(ctx, e.Config.Org.ID, domain.EntityKind(scope), activeOnly)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Scope", "Active"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Scope, t.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "scope filter (property or block)")
	cmd.Flags().BoolVar(&activeOnly, "active-only", false, "only active templates")
	return cmd
}

func templateShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func templateUpdateCmd() *cobra.Command {
	var name string
	var active bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or toggle a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var namePtr *string
				var activePtr *bool
				if cmd.Flags().Changed("name") {
					namePtr = &name
				}
				if cmd.Flags().Changed("active") {
					activePtr = &active
				}
				t, err := e.UpdateTemplate(ctx, args[0], namePtr, activePtr, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().BoolVar(&active, "active", true, "active flag")
	return cmd
}

func inspectionCmd() *cobra.Command {
	ins := &cobra.Command{Use: "inspection", Short: "Manage inspection instances"}
	ins.AddCommand(inspectionScheduleCmd())
	ins.AddCommand(inspectionListCmd())
	ins.AddCommand(inspectionShowCmd())
	ins.AddCommand(inspectionSetStatusCmd())
	return ins
}

func inspectionScheduleCmd() *cobra.Command {
	var opts engine.InspectionCreateOptions
	var entityKind string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule one inspection",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			opts.EntityKind = domain.EntityKind(entityKind)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.InspectionType == "" {
					opts.InspectionType = e.Config.Inspections.Defaults.Type
				}
				in, err := e.ScheduleInspection(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(in)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "inspection id (optional)")
	cmd.Flags().StringVar(&opts.TemplateID, "template", "", "template id")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "property", "entity kind (property or block)")
	cmd.Flags().StringVar(&opts.EntityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&opts.InspectionType, "type", "", "inspection type (defaults from config)")
	cmd.Flags().StringVar(&opts.ScheduledDate, "date", "", "scheduled date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("entity-id")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func inspectionListCmd() *cobra.Command {
	var entityKind, entityID string
	var year int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inspections for an entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListInstancesByEntity(ctx, domain.EntityKind(entityKind), entityID, year)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Template", "Type", "Scheduled", "Completed", "Status"})
				for _, in := range items {
					completed := ""
					if in.CompletedDate != nil {
						completed = *in.CompletedDate
					}
					tw.AppendRow(table.Row{in.ID, in.TemplateID, in.InspectionType, in.ScheduledDate, completed, in.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityKind, "entity-kind", "property", "entity kind (property or block)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.Flags().IntVar(&year, "year", 0, "restrict to a year")
	_ = cmd.MarkFlagRequired("entity-id")
	return cmd
}

func inspectionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an inspection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in, err := e.Repo.GetInstance(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(in)
			})
		},
	}
	return cmd
}

func inspectionSetStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Advance an inspection's lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in, err := e.SetInspectionStatus(ctx, args[0], domain.InspectionStatus(status), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(in)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (scheduled, in_progress, completed)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func documentCmd() *cobra.Command {
	doc := &cobra.Command{Use: "document", Short: "Manage compliance documents"}
	doc.AddCommand(documentAddCmd())
	doc.AddCommand(documentListCmd())
	doc.AddCommand(documentShowCmd())
	doc.AddCommand(documentLatestCmd())
	return doc
}

func documentLatestCmd() *cobra.Command {
	var entityKind, entityID, docType string
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the authoritative document of a type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.Repo.LatestDocumentByType(ctx, domain.EntityKind(entityKind), entityID, docType)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&entityKind, "entity-kind", "property", "entity kind (property or block)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&docType, "type", "", "document type")
	_ = cmd.MarkFlagRequired("entity-id")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func documentAddCmd() *cobra.Command {
	var id, entityKind, entityID, docType, expiry string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a compliance document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.DocumentCreateOptions{
					ID:           id,
					OrgID:        e.Config.Org.ID,
					EntityKind:   domain.EntityKind(entityKind),
					EntityID:     entityID,
					DocumentType: docType,
					ActorID:      viper.GetString("actor-id"),
				}
				if expiry != "" {
					opts.ExpiryDate = &expiry
				}
				d, err := e.AddDocument(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "document id (optional)")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "property", "entity kind (property or block)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&docType, "type", "", "document type (e.g. gas_certificate)")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiry date (YYYY-MM-DD, omit for permanently valid)")
	_ = cmd.MarkFlagRequired("entity-id")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func documentListCmd() *cobra.Command {
	var entityKind, entityID string
	var latestOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents for an entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				kind := domain.EntityKind(entityKind)
				var items []domain.ComplianceDocument
				var err error
				if latestOnly {
					items, err = e.Repo.ListLatestDocuments(ctx, kind, entityID)
				} else {
					items, err = e.Repo.ListDocuments(ctx, kind, entityID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Expiry", "Created"})
				for _, d := range items {
					expiry := "never"
					if d.ExpiryDate != nil {
						expiry = *d.ExpiryDate
					}
					tw.AppendRow(table.Row{d.ID, d.DocumentType, expiry, d.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityKind, "entity-kind", "property", "entity kind (property or block)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.Flags().BoolVar(&latestOnly, "latest-only", false, "only the authoritative document per type")
	_ = cmd.MarkFlagRequired("entity-id")
	return cmd
}

func documentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.Repo.GetDocument(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	return cmd
}

var monthHeaders = []any{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{
		Use:   "report",
		Short: "Compliance reports",
		Long:  "The yearly calendar view: per template, each month resolves to completed, overdue, due, scheduled, or not_scheduled; documents project valid/expiring_soon/expired across the same months.",
	}
	rep.AddCommand(reportCalendarCmd())
	rep.AddCommand(reportDocumentsCmd())
	return rep
}

func reportCalendarCmd() *cobra.Command {
	var entityKind, entityID string
	var year int
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Yearly inspection calendar for an entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rep, err := e.ComplianceReport(ctx, domain.EntityKind(entityKind), entityID, year)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				header := append(table.Row{"Template"}, monthHeaders...)
				header = append(header, "Rate")
				tw.AppendHeader(header)
				for _, tr := range rep.Templates {
					row := table.Row{tr.Template.Name}
					for _, cell := range tr.Months {
						row = append(row, monthGlyph(cell.Status))
					}
					row = append(row, fmt.Sprintf("%d%%", tr.ComplianceRate))
					tw.AppendRow(row)
				}
				tw.Render()
				fmt.Printf("Overall: %d%% (%d/%d inspections completed)\n",
					rep.OverallComplianceRate, rep.TotalCompleted, rep.TotalScheduled)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityKind, "entity-kind", "property", "entity kind (property or block)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "report year")
	_ = cmd.MarkFlagRequired("entity-id")
	return cmd
}

func monthGlyph(s calendar.MonthStatus) string {
	switch s {
	case calendar.StatusCompleted:
		return "ok"
	case calendar.StatusOverdue:
		return "OVR"
	case calendar.StatusDue:
		return "due"
	case calendar.StatusScheduled:
		return "sch"
	default:
		return "-"
	}
}

func reportDocumentsCmd() *cobra.Command {
	var entityKind, entityID string
	var year int
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Yearly document validity projection for an entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ProjectDocuments(ctx, domain.EntityKind(entityKind), entityID, year)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(append(table.Row{"Document"}, monthHeaders...))
				for _, item := range items {
					row := table.Row{item.DocumentType}
					for _, cell := range item.Months {
						row = append(row, docGlyph(cell))
					}
					tw.AppendRow(row)
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityKind, "entity-kind", "property", "entity kind (property or block)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "report year")
	_ = cmd.MarkFlagRequired("entity-id")
	return cmd
}

func docGlyph(cell calendar.DocMonthCell) string {
	if !cell.HasDocument {
		return "-"
	}
	switch cell.Status {
	case calendar.DocValid:
		return "ok"
	case calendar.DocExpiringSoon:
		return "soon"
	case calendar.DocExpired:
		return "EXP"
	default:
		return "inf"
	}
}

func scheduleCmd() *cobra.Command {
	var entityKind, entityID, inspectionType string
	var year, dayOfMonth int
	var selections []string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Atomically schedule a batch of inspections",
		Long: `Bulk-schedule inspections for one entity and year. Each --select takes
template-id:month-index (month 0 is January). The whole batch commits or none
of it does; a month that already has an inspection for that template rejects
the batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sels, err := parseSelections(selections)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.BulkSchedule(ctx, engine.BulkScheduleOptions{
					EntityKind:     domain.EntityKind(entityKind),
					EntityID:       entityID,
					Year:           year,
					InspectionType: inspectionType,
					DayOfMonth:     dayOfMonth,
					Selections:     sels,
					ActorID:        viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]int{"created": created})
			})
		},
	}
	cmd.Flags().StringVar(&entityKind, "entity-kind", "property", "entity kind (property or block)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "target year")
	cmd.Flags().StringVar(&inspectionType, "type", "routine", "inspection type")
	cmd.Flags().IntVar(&dayOfMonth, "day", 0, "day of month (defaults from config)")
	cmd.Flags().StringArrayVar(&selections, "select", []string{}, "template-id:month-index (repeatable)")
	_ = cmd.MarkFlagRequired("entity-id")
	_ = cmd.MarkFlagRequired("select")
	return cmd
}

func parseSelections(raw []string) ([]engine.Selection, error) {
	var sels []engine.Selection
	for _, s := range raw {
		idx := strings.LastIndex(s, ":")
		if idx <= 0 || idx == len(s)-1 {
			return nil, fmt.Errorf("invalid selection %q: want template-id:month-index", s)
		}
		month, err := strconv.Atoi(s[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q: month must be a number", s)
		}
		sels = append(sels, engine.Selection{TemplateID: s[:idx], MonthIndex: month})
	}
	return sels, nil
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (prints the secret once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				secret := uuid.New().String() + uuid.New().String()
				key := domain.APIKey{
					ID:      uuid.New().String(),
					ActorID: actor,
					Name:    name,
					KeyHash: repo.HashAPIKey(secret),
				}
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{
					"id":      key.ID,
					"actor":   actor,
					"api_key": secret,
				})
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: creations, schedules, status changes, and documents.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.TailEvents(ctx, e.Config.Org.ID, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveOrgAndConfig(cmd.Context(), workspace, viper.GetString("org"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("PROPCHECK_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("PROPCHECK_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Propcheck API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveOrgAndConfig(ctx, workspace, viper.GetString("org"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
