// Command mirrorctl provisions shops and re-baselines product mirrors.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogmirror/backend/internal/application/replication"
	"github.com/catalogmirror/backend/internal/application/shop"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/infrastructure/config"
	"github.com/catalogmirror/backend/internal/infrastructure/logger"
	"github.com/catalogmirror/backend/internal/infrastructure/persistence"
	"github.com/catalogmirror/backend/internal/infrastructure/shopify"
)

var errUsage = errors.New("usage")

type app struct {
	cfg   *config.Config
	log   *zap.Logger
	db    *persistence.Database
	shops *persistence.GormShopRepository
	out   io.Writer
}

func main() {
	logLevel := flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	log, err := logger.New(&logger.Config{Level: *logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Args(), log); err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, log *zap.Logger) error {
	if len(args) < 2 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := persistence.Open(ctx, &cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel("warn")))
	if err != nil {
		return err
	}
	defer db.Close()

	a := &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		shops: persistence.NewGormShopRepository(db.DB),
		out:   os.Stdout,
	}

	switch args[0] + " " + args[1] {
	case "shops add":
		return a.shopsAdd(ctx, args[2:])
	case "shops connect":
		return a.shopsConnect(ctx, args[2:])
	case "shops list":
		return a.shopsList(ctx)
	case "mirror refresh":
		return a.mirrorRefresh(ctx, args[2:])
	default:
		return errUsage
	}
}

func (a *app) shopService() *shop.Service {
	return shop.NewService(a.shops, persistence.NewGormConnectionRepository(a.db.DB), a.log)
}

func (a *app) shopsAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("shops add", flag.ContinueOnError)
	var in shop.AddInput
	fs.StringVar(&in.Domain, "domain", "", "Shop domain, e.g. brand-eu.myshopify.com")
	fs.StringVar(&in.Token, "token", "", "Admin API access token")
	fs.StringVar(&in.Name, "name", "", "Display name (defaults to the domain)")
	fs.StringVar(&in.APIVersion, "api-version", "", "Admin API version (defaults to the configured one)")
	fs.BoolVar(&in.IsSource, "source", false, "Shop emits product events")
	fs.BoolVar(&in.Inactive, "inactive", false, "Register the shop as inactive")
	fs.Int64Var(&in.LocationID, "location-id", 0, "Default inventory location id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if in.Domain == "" || in.Token == "" {
		return fmt.Errorf("shops add: -domain and -token are required")
	}

	s, created, err := a.shopService().Add(ctx, in)
	if err != nil {
		return err
	}
	verb := "updated"
	if created {
		verb = "created"
	}
	fmt.Fprintf(a.out, "%s %s (%s)\n", verb, s.Domain, s.ID)
	return nil
}

func (a *app) shopsConnect(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("shops connect: need a source domain and at least one target domain")
	}
	results, err := a.shopService().Connect(ctx, args[0], args[1:])
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(a.out, "%s: %v\n", r.Target, r.Err)
		case r.Created:
			fmt.Fprintf(a.out, "%s: connected\n", r.Target)
		default:
			fmt.Fprintf(a.out, "%s: already connected\n", r.Target)
		}
	}
	if failed > 0 {
		return fmt.Errorf("shops connect: %d of %d targets failed", failed, len(results))
	}
	return nil
}

func (a *app) shopsList(ctx context.Context) error {
	listings, err := a.shopService().List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOMAIN\tSOURCE\tACTIVE\tAPI\tTARGETS")
	for _, l := range listings {
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\t%s\n",
			l.Shop.ID, l.Shop.Domain, l.Shop.IsSource, l.Shop.IsActive, l.Shop.Version(), strings.Join(l.Targets, ","))
	}
	return w.Flush()
}

func (a *app) mirrorRefresh(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mirror refresh", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Report what would change without writing")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 2 {
		return fmt.Errorf("mirror refresh: need <sourceShopId|domain> <productId>")
	}

	sourceID, err := a.resolveShop(ctx, positional[0])
	if err != nil {
		return err
	}
	productID, err := strconv.ParseInt(positional[1], 10, 64)
	if err != nil || productID <= 0 {
		return fmt.Errorf("mirror refresh: invalid product id %q", positional[1])
	}

	apis, err := shopify.NewProvider(shopify.Config{
		APIVersion:     a.cfg.Shopify.APIVersion,
		AppKey:         a.cfg.Shopify.AppKey,
		AppSecret:      a.cfg.Shopify.AppSecret,
		Retries:        a.cfg.Shopify.Retries,
		RequestTimeout: a.cfg.Shopify.RequestTimeout,
	}, a.log)
	if err != nil {
		return err
	}
	refresher := replication.NewRefresher(a.shops,
		persistence.NewGormProductMirrorRepository(a.db.DB),
		persistence.NewGormVariantMirrorRepository(a.db.DB),
		apis, a.log)

	summary, err := refresher.Refresh(ctx, sourceID, productID, *dryRun)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "product %d dry-run=%t\n", summary.ProductID, summary.DryRun)
	fmt.Fprintln(w, "TARGET\tPRODUCT\tOUTCOME\tERROR")
	for _, t := range summary.Targets {
		errText := ""
		if t.Err != nil {
			errText = t.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.TargetDomain, t.TargetProductGID, t.Outcome, errText)
	}
	return w.Flush()
}

// resolveShop accepts either a shop id or a domain
func (a *app) resolveShop(ctx context.Context, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	s, err := a.shops.FindByDomain(ctx, mirror.NormalizeDomain(ref))
	if err != nil {
		return uuid.Nil, fmt.Errorf("shop %s: %w", ref, err)
	}
	return s.ID, nil
}

// parseInterspersed lets flags follow positional arguments
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `mirrorctl manages shops and product mirrors

Usage:
  mirrorctl [-log-level level] <command>

Commands:
  shops add -domain <d> -token <t> [-name n] [-api-version v] [-source] [-inactive] [-location-id id]
  shops connect <sourceDomain> <targetDomain>...
  shops list
  mirror refresh <sourceShopId|domain> <productId> [--dry-run]`)
}
