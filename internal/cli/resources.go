package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"margem/internal/adminapi"
	"margem/internal/apierror"
)

func notFoundError(message string) *ExitError {
	return NewExitError(ExitFailure, string(apierror.CodeNotFound), message)
}

func NewStoresCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "Query stores",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <cnpj>",
		Short: "Show a store by CNPJ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := requireSession(ctx, rootOpts)
			if err != nil {
				return err
			}
			store, err := app.Admin.GetStore(ctx, args[0])
			if err != nil {
				return apiFailure(err)
			}
			if store == nil {
				return notFoundError("Loja nao encontrada.")
			}
			return rootOpts.formatter().Success(store, storeTable(store))
		},
	})
	return cmd
}

func storeTable(s *adminapi.Store) Table {
	t := Table{Header: []string{"FIELD", "VALUE"}}
	t.add("id", s.ID)
	t.add("cnpj", s.CNPJ)
	t.add("serial", s.Serial)
	t.add("company", s.Company)
	t.add("tradeName", s.TradeName)
	t.add("city", s.City+"/"+s.State)
	t.add("partner", s.Partner)
	t.add("segment", s.Segment)
	t.add("size", s.Size)
	t.add("active", yesNo(s.Active))
	t.add("modules", modules(s.Offerta, s.Oppinar, s.Prazzo, s.Scanner.Active))
	t.add("users", strconv.Itoa(len(s.Users)))
	return t
}

func modules(offerta, oppinar, prazzo, scanner bool) string {
	var m []string
	if offerta {
		m = append(m, "offerta")
	}
	if oppinar {
		m = append(m, "oppinar")
	}
	if prazzo {
		m = append(m, "prazzo")
	}
	if scanner {
		m = append(m, "scanner")
	}
	if len(m) == 0 {
		return "-"
	}
	return strings.Join(m, ",")
}

// MobileOptions holds flags for the mobile get command.
type MobileOptions struct {
	*RootOptions
	Email string
	Phone string
}

func NewMobileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MobileOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "mobile",
		Short: "Query app users",
	}
	get := &cobra.Command{
		Use:   "get",
		Short: "Show an app user and the stores it operates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.Email == "") == (opts.Phone == "") {
				return NewExitError(ExitCommandError, reasonInvalidInput, "informe --email ou --phone")
			}
			ctx := cmd.Context()
			app, err := requireSession(ctx, opts.RootOptions)
			if err != nil {
				return err
			}
			var found *adminapi.MobileUserWithStores
			if opts.Email != "" {
				found, err = app.Admin.GetMobileUserWithStores(ctx, opts.Email)
			} else {
				found, err = app.Admin.GetMobileUserWithStoresByPhone(ctx, opts.Phone)
			}
			if err != nil {
				return apiFailure(err)
			}
			if found == nil {
				return notFoundError("Usuario nao encontrado.")
			}
			return opts.formatter().Success(mobileView{User: found.User, Stores: found.Stores}, mobileTable(found))
		},
	}
	get.Flags().StringVar(&opts.Email, "email", "", "user email")
	get.Flags().StringVar(&opts.Phone, "phone", "", "user phone")
	cmd.AddCommand(get)
	return cmd
}

type mobileView struct {
	User   *adminapi.MobileUser `json:"user"`
	Stores []adminapi.UserStore `json:"stores"`
}

func mobileTable(m *adminapi.MobileUserWithStores) Table {
	t := Table{Header: []string{"FIELD", "VALUE"}}
	t.add("id", m.User.ID)
	t.add("name", m.User.Name)
	t.add("email", m.User.Email)
	t.add("phone", m.User.Phone)
	t.add("type", m.User.Type)
	t.add("partner", m.User.Partner)
	t.add("active", yesNo(m.User.Active))
	for _, s := range m.Stores {
		t.add("store", s.CNPJ+" "+s.Name)
	}
	return t
}

func NewSupportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "support",
		Short: "Query support accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <email>",
		Short: "Show a support account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := requireSession(ctx, rootOpts)
			if err != nil {
				return err
			}
			user, err := app.Admin.GetSupportUser(ctx, args[0])
			if err != nil {
				return apiFailure(err)
			}
			if user == nil {
				return notFoundError("Usuario nao encontrado.")
			}
			t := Table{Header: []string{"FIELD", "VALUE"}}
			t.add("id", user.ID)
			t.add("name", user.Name)
			t.add("email", user.Email)
			t.add("partner", user.Partner)
			t.add("active", yesNo(user.Active))
			return rootOpts.formatter().Success(user, t)
		},
	})
	return cmd
}

func NewPartnersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partners",
		Short: "Query automation partners",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List partners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := requireSession(ctx, rootOpts)
			if err != nil {
				return err
			}
			partners, err := app.Admin.ListPartners(ctx)
			if err != nil {
				return apiFailure(err)
			}
			t := Table{Header: []string{"ID", "NAME", "CODE"}}
			for _, p := range partners {
				t.add(p.ID, p.Name, dash(string(p.Code)))
			}
			return rootOpts.formatter().Success(partners, t)
		},
	})
	return cmd
}

// ReferenceOptions holds flags for the reference command.
type ReferenceOptions struct {
	*RootOptions
	Cities string
}

func NewReferenceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReferenceOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Show the lookup data used by the store forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := requireSession(ctx, opts.RootOptions)
			if err != nil {
				return err
			}
			if opts.Cities != "" {
				cities, err := app.Admin.Cities(ctx, opts.Cities)
				if err != nil {
					return apiFailure(err)
				}
				t := Table{Header: []string{"CODE", "NAME", "STATE"}}
				for _, c := range cities {
					t.add(c.Code, c.Name, c.State)
				}
				return opts.formatter().Success(cities, t)
			}

			data, err := app.Admin.LoadReferenceData(ctx)
			if err != nil {
				return apiFailure(err)
			}
			t := Table{Header: []string{"KIND", "NAME", "CODE"}}
			for _, p := range data.Partners {
				t.add("partner", p.Name, dash(string(p.Code)))
			}
			for _, s := range data.States {
				t.add("state", s.Name, s.Code)
			}
			for _, s := range data.Segments {
				t.add("segment", s.Description, "-")
			}
			for _, s := range data.Sizes {
				t.add("size", s.Description, s.Value)
			}
			return opts.formatter().Success(data, t)
		},
	}
	cmd.Flags().StringVar(&opts.Cities, "cities", "", "list the cities of this state code instead")
	return cmd
}

func NewDashboardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show headline numbers and recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := requireSession(ctx, rootOpts)
			if err != nil {
				return err
			}
			overview, err := app.Admin.Overview(ctx)
			if err != nil {
				return apiFailure(err)
			}
			t := Table{Header: []string{"METRIC", "VALUE"}}
			t.add("activeStores", strconv.Itoa(overview.Stats.ActiveStores))
			t.add("mobileUsers", strconv.Itoa(overview.Stats.MobileUsers))
			t.add("totalBasics", strconv.Itoa(overview.Stats.TotalBasics))
			t.add("totalPartners", strconv.Itoa(overview.Stats.TotalPartners))
			for _, a := range overview.Activity {
				t.add("activity", a.Timestamp+" ["+a.Type+"] "+a.Message)
			}
			return rootOpts.formatter().Success(overview, t)
		},
	}
}

// ReportsOptions holds flags for the reports stores command.
type ReportsOptions struct {
	*RootOptions
	Page    int
	Limit   int
	Partner string
	Active  string
	All     bool
}

func NewReportsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportsOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Operational reports",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Store, user and module totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := requireSession(ctx, rootOpts)
			if err != nil {
				return err
			}
			sum, err := app.Admin.ReportSummary(ctx)
			if err != nil {
				return apiFailure(err)
			}
			t := Table{Header: []string{"METRIC", "VALUE"}}
			t.add("totalStores", strconv.Itoa(sum.TotalStores))
			t.add("activeStores", strconv.Itoa(sum.ActiveStores))
			t.add("inactiveStores", strconv.Itoa(sum.InactiveStores))
			t.add("mobileUsers", strconv.Itoa(sum.TotalMobileUsers))
			t.add("supportUsers", strconv.Itoa(sum.TotalSupport))
			for _, p := range sum.StoresByPartner {
				t.add("partner:"+dash(p.Partner), strconv.Itoa(p.Count))
			}
			t.add("module:offerta", strconv.Itoa(sum.ModuleStats.Offerta))
			t.add("module:oppinar", strconv.Itoa(sum.ModuleStats.Oppinar))
			t.add("module:prazzo", strconv.Itoa(sum.ModuleStats.Prazzo))
			t.add("module:scanner", strconv.Itoa(sum.ModuleStats.Scanner))
			return rootOpts.formatter().Success(sum, t)
		},
	})

	stores := &cobra.Command{
		Use:   "stores",
		Short: "Page through stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Active != "" && opts.Active != "true" && opts.Active != "false" {
				return NewExitError(ExitCommandError, reasonInvalidInput, "--active deve ser true ou false")
			}
			ctx := cmd.Context()
			app, err := requireSession(ctx, opts.RootOptions)
			if err != nil {
				return err
			}
			filters := adminapi.ReportFilters{Page: opts.Page, Limit: opts.Limit, Partner: opts.Partner, Active: opts.Active}

			var items []adminapi.StoreReportItem
			var data any
			if opts.All {
				items, err = app.Admin.AllStores(ctx, filters)
				data = items
			} else {
				var report *adminapi.StoresReport
				report, err = app.Admin.StoresReport(ctx, filters)
				if report != nil {
					items, data = report.Data, report
				}
			}
			if err != nil {
				return apiFailure(err)
			}

			t := Table{Header: []string{"CNPJ", "NAME", "PARTNER", "CITY", "ACTIVE", "MODULES"}}
			for _, s := range items {
				t.add(s.CNPJ, s.Name, dash(s.Partner), s.City+"/"+s.State, yesNo(s.Active),
					modules(s.Offerta, s.Oppinar, s.Prazzo, s.HasScanner))
			}
			return opts.formatter().Success(data, t)
		},
	}
	stores.Flags().IntVar(&opts.Page, "page", 1, "page number")
	stores.Flags().IntVar(&opts.Limit, "limit", 20, "stores per page")
	stores.Flags().StringVar(&opts.Partner, "partner", "all", "partner name, or all")
	stores.Flags().StringVar(&opts.Active, "active", "", "filter by active flag (true|false)")
	stores.Flags().BoolVar(&opts.All, "all", false, "walk every page")
	cmd.AddCommand(stores)

	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
