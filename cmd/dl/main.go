package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docline/internal/access"
	"docline/internal/config"
	"docline/internal/db"
	"docline/internal/domain"
	"docline/internal/engine"
	"docline/internal/migrate"
	"docline/internal/repo"
	"docline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "dl",
	Short: "Docline CLI",
	Long: `Docline registers and routes official correspondence between a central
CEO office and its departments. Every document gets a gapless reference number
like "A/1/17 EC" and moves through a routing scenario derived from its type,
source and target offices. CC offices acknowledge; receiving offices record
custody receipts; everything lands in a per-document activity log.`,
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
	viper.SetEnvPrefix("DOCLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("role", domain.RoleSuperAdmin, "actor role")
	rootCmd.PersistentFlags().String("as-department", "", "actor department id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("as-department", rootCmd.PersistentFlags().Lookup("as-department"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(documentCmd())
	rootCmd.AddCommand(departmentCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(serveCmd())
}

func cliActor() access.Actor {
	a := access.Actor{
		ID:   viper.GetString("actor-id"),
		Role: viper.GetString("role"),
	}
	if dep := viper.GetString("as-department"); dep != "" {
		a.Department = &dep
	}
	return a
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default docline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})
	return cfg
}

func documentCmd() *cobra.Command {
	doc := &cobra.Command{Use: "document", Short: "Register and route documents"}
	doc.AddCommand(documentRegisterCmd())
	doc.AddCommand(documentListCmd())
	doc.AddCommand(documentShowCmd())
	doc.AddCommand(documentStatusCmd())
	doc.AddCommand(documentAckCmd())
	doc.AddCommand(documentReceiveCmd())
	doc.AddCommand(documentRoutingCmd())
	doc.AddCommand(documentAttachCmd())
	doc.AddCommand(documentLogCmd())
	return doc
}

func documentRegisterCmd() *cobra.Command {
	var opts engine.DocumentCreateOptions
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a document and allocate its reference number",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CreateDocument(ctx, cliActor(), opts)
				if err != nil {
					return err
				}
				if !viper.GetBool("json") {
					fmt.Println("registered", d.RefNo)
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.DocType, "type", "", "INCOMING, OUTGOING or MEMO")
	cmd.Flags().StringVar(&opts.Source, "source", "", "EXTERNAL or INTERNAL")
	cmd.Flags().StringVar(&opts.DepartmentID, "department", "", "owning department id (empty for central)")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject line")
	cmd.Flags().StringVar(&opts.Summary, "summary", "", "summary")
	cmd.Flags().StringVar(&opts.CompanyOfficeName, "company", "", "external company or office name")
	cmd.Flags().StringVar(&opts.SenderName, "sender", "", "sender name")
	cmd.Flags().StringVar(&opts.ReceiverName, "receiver", "", "receiver name")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority")
	cmd.Flags().BoolVar(&opts.Confidential, "confidential", false, "confidential")
	cmd.Flags().BoolVar(&opts.RequiresCEODirection, "requires-ceo-direction", false, "route through CEO direction")
	cmd.Flags().StringSliceVar(&opts.CoOffices, "co-office", nil, "CC office department id (repeatable)")
	cmd.Flags().StringSliceVar(&opts.DirectedOffices, "directed-office", nil, "target office department id (repeatable)")
	cmd.Flags().StringVar(&opts.ReceivedDate, "received-date", "", "received date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.WrittenDate, "written-date", "", "written date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.MemoDate, "memo-date", "", "memo date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.DueDate, "due-date", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.SignatureName, "signature", "", "signing official")
	cmd.Flags().IntVar(&opts.ECYear, "ec-year", 0, "Ethiopian calendar year (default: derived from today)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func documentListCmd() *cobra.Command {
	var f repo.DocumentFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				docs, err := e.ListDocuments(ctx, cliActor(), f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(docs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Ref No", "Type", "Source", "Department", "Status", "Subject"})
				for _, d := range docs {
					dep := "central"
					if d.DepartmentID != nil {
						dep = *d.DepartmentID
					}
					tw.AppendRow(table.Row{d.RefNo, d.DocType, d.Source, dep, d.Status, d.Subject})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Query, "q", "", "search ref no, subject, sender or receiver")
	cmd.Flags().StringVar(&f.DocType, "type", "", "doc type filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.DepartmentID, "department", "", "owning department filter")
	cmd.Flags().StringVar(&f.CoOffice, "co-office", "", "CC office filter")
	cmd.Flags().StringVar(&f.DirectedOffice, "directed-office", "", "target office filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func documentShowCmd() *cobra.Command {
	var refNo string
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a document by id or --ref",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var d domain.Document
				var err error
				switch {
				case refNo != "":
					d, err = e.Repo.GetDocumentByRefNo(ctx, refNo)
				case len(args) == 1:
					d, err = e.GetDocument(ctx, cliActor(), args[0])
				default:
					return fmt.Errorf("document id or --ref required")
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&refNo, "ref", "", "reference number, e.g. A/1/17 EC")
	return cmd
}

func documentStatusCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "status <id> <STATUS>",
		Short: "Move a document along its workflow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.SetStatus(ctx, cliActor(), args[0], strings.ToUpper(args[1]), note)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note for the activity log (CEO note when directing)")
	return cmd
}

func documentAckCmd() *cobra.Command {
	var department string
	cmd := &cobra.Command{
		Use:   "ack <id>",
		Short: "Acknowledge as a CC office",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ack, err := e.Acknowledge(ctx, cliActor(), engine.AcknowledgeOptions{
					DocumentID:   args[0],
					DepartmentID: department,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(ack)
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "acknowledging department (defaults to --as-department)")
	return cmd
}

func documentReceiveCmd() *cobra.Command {
	var department string
	cmd := &cobra.Command{
		Use:   "receive <id>",
		Short: "Record a custody receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.Receive(ctx, cliActor(), engine.ReceiveOptions{
					DocumentID:   args[0],
					DepartmentID: department,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "receiving department (defaults to --as-department)")
	return cmd
}

func documentRoutingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routing <id>",
		Short: "Show the derived routing state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.RoutingStateOf(ctx, cliActor(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
}

func documentAttachCmd() *cobra.Command {
	var name, storageKey string
	var size int64
	cmd := &cobra.Command{
		Use:   "attach <id>",
		Short: "Register attachment metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.AddAttachments(ctx, cliActor(), args[0], []engine.AttachmentInput{{
					OriginalName: name,
					Size:         size,
					StorageKey:   storageKey,
				}})
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "original file name")
	cmd.Flags().Int64Var(&size, "size", 0, "file size in bytes")
	cmd.Flags().StringVar(&storageKey, "storage-key", "", "external storage key")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func documentLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <id>",
		Short: "Show a document's activity log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.GetDocument(ctx, cliActor(), args[0]); err != nil {
					return err
				}
				items, err := e.Repo.ListActivities(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Action", "Actor", "Notes"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.CreatedAt, a.Action, a.ActorID, a.Notes})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func departmentCmd() *cobra.Command {
	dep := &cobra.Command{Use: "department", Short: "Manage the office directory"}
	dep.AddCommand(departmentAddCmd())
	dep.AddCommand(departmentListCmd())
	dep.AddCommand(departmentSeedCmd())
	dep.AddCommand(departmentRuleCmd())
	return dep
}

func departmentAddCmd() *cobra.Command {
	var code, name, parent string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a department",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CreateDepartment(ctx, cliActor(), engine.DepartmentCreateOptions{
					Code:     code,
					Name:     name,
					ParentID: parent,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "short code used in reference numbers")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&parent, "parent", "", "parent department id")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func departmentListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListDepartments(ctx, activeOnly)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Code", "Name", "Active"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.Code, d.Name, d.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "active departments only")
	return cmd
}

func departmentSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the default office directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.SeedDepartments(ctx, cliActor())
				if err != nil {
					return err
				}
				fmt.Printf("created %d department(s)\n", len(items))
				return printJSONOrTable(items)
			})
		},
	}
}

func departmentRuleCmd() *cobra.Command {
	var departmentID, docType, prefix string
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Set a numbering rule for (department, doc type)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if !access.CanManageDirectory(viper.GetString("role")) {
					return access.PermissionError{Capability: "department.manage"}
				}
				rule := domain.NumberingRule{
					ID:           uuid.NewString(),
					DepartmentID: departmentID,
					DocType:      strings.ToUpper(docType),
					Prefix:       prefix,
					Active:       true,
				}
				if err := r.UpsertNumberingRule(ctx, rule); err != nil {
					return err
				}
				return printJSONOrTable(rule)
			})
		},
	}
	cmd.Flags().StringVar(&departmentID, "department", "", "department id")
	cmd.Flags().StringVar(&docType, "type", "", "doc type")
	cmd.Flags().StringVar(&prefix, "prefix", "", "reference number prefix")
	_ = cmd.MarkFlagRequired("department")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("prefix")
	return cmd
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage users"}
	usr.AddCommand(userAddCmd())
	usr.AddCommand(userListCmd())
	return usr
}

func userAddCmd() *cobra.Command {
	var username, fullName, role, department string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, cliActor(), engine.UserCreateOptions{
					Username:     username,
					FullName:     fullName,
					Role:         strings.ToUpper(role),
					DepartmentID: department,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&fullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&role, "user-role", "", "SUPER_ADMIN, CEO_SECRETARY, CXO_SECRETARY, CEO or CXO")
	cmd.Flags().StringVar(&department, "department", "", "department id for department-bound roles")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("user-role")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Username", "Role", "Department"})
				for _, u := range items {
					dep := ""
					if u.DepartmentID != nil {
						dep = *u.DepartmentID
					}
					tw.AppendRow(table.Row{u.ID, u.Username, u.Role, dep})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key (plaintext shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, plaintext, err := e.IssueAPIKey(ctx, cliActor(), userID, name)
				if err != nil {
					return err
				}
				fmt.Println("key:", plaintext)
				return printJSONOrTable(key)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "filter by user id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var username string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.Repo.GetUserByUsername(ctx, username)
				if err != nil {
					return err
				}
				secret, err := jwtSecret(e.Config)
				if err != nil {
					return err
				}
				token, err := server.MintToken(secret, u, ttl)
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "user to mint for")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Document counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				counts, err := r.CountDocumentsByStatus(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(counts)
			})
		},
	}
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
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			secret, err := jwtSecret(cfg)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret},
			})
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
			fmt.Printf("Serving Docline API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
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

func jwtSecret(cfg *config.Config) (string, error) {
	env := "DOCLINE_JWT_SECRET"
	if cfg != nil && cfg.Auth.JWTSecretEnv != "" {
		env = cfg.Auth.JWTSecretEnv
	}
	secret := os.Getenv(env)
	if secret == "" {
		return "", fmt.Errorf("%s is required for bearer auth", env)
	}
	return secret, nil
}

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
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
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
